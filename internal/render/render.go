// Package render drives headless map render surfaces over a WebSocket
// bridge. Each Renderer owns one isolated surface instance; the Arena pools
// surfaces for the parallel capture coordinator.
package render

import (
	"context"
	"errors"

	"github.com/Uni298/OSMStudio/pkg/core"
)

var (
	// ErrSettleTimeout is returned when a surface does not report tile
	// settlement within the configured window. Callers may treat it as
	// tolerable and capture anyway.
	ErrSettleTimeout = errors.New("render: settle timeout")

	// ErrSurfaceClosed is returned when the surface connection has shut down.
	ErrSurfaceClosed = errors.New("render: surface closed")
)

// Renderer is one isolated render surface.
type Renderer interface {
	// SetCameraState moves the surface camera to the given state.
	SetCameraState(ctx context.Context, state core.CameraState) error

	// WaitSettled blocks until the surface reports that all tiles for the
	// current camera state have loaded, the settle timeout expires, or ctx
	// is cancelled.
	WaitSettled(ctx context.Context) error

	// CaptureImage requests a capture of the current viewport and returns
	// the encoded image bytes.
	CaptureImage(ctx context.Context) ([]byte, error)

	// Close shuts down the surface.
	Close() error
}

// Factory opens new render surfaces.
type Factory interface {
	Open(ctx context.Context) (Renderer, error)
}
