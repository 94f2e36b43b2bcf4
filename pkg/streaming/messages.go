package streaming

import (
	"encoding/json"

	"github.com/Uni298/OSMStudio/pkg/core"
)

// Message type constants for the renderer bridge protocol.
const (
	TypeConfigure = "configure"  // studio -> surface: viewport size
	TypeSetCamera = "set_camera" // studio -> surface: move the camera
	TypeSettled   = "settled"    // surface -> studio: tiles finished loading
	TypeCapture   = "capture"    // studio -> surface: capture the viewport
	TypeFrame     = "frame"      // surface -> studio: captured image
	TypeError     = "error"      // surface -> studio: surface-side failure
)

// Envelope wraps all messages exchanged with the render surface.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the surface's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// ConfigurePayload sets the surface viewport.
type ConfigurePayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SetCameraPayload moves the surface camera. MercatorX/Y carry the web
// mercator projection of the camera state so the surface does not need a
// geodesy library of its own.
type SetCameraPayload struct {
	Camera    core.CameraState `json:"camera"`
	MercatorX float64          `json:"mercatorX"`
	MercatorY float64          `json:"mercatorY"`
}

// FramePayload carries one captured image back from the surface.
type FramePayload struct {
	Image []byte `json:"image"` // base64 via encoding/json
}

// ErrorPayload reports a surface-side failure.
type ErrorPayload struct {
	Message string `json:"message"`
}
