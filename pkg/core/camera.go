// pkg/core/camera.go
package core

// CameraState is the camera position over the map at one instant.
type CameraState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// DefaultCameraState is returned when sampling a path with no keyframes.
var DefaultCameraState = CameraState{
	Latitude:  0,
	Longitude: 0,
	Zoom:      1,
}
