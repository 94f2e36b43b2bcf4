// Package encode turns ordered frame images into a video artifact.
package encode

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when frames are submitted before Configure.
var ErrNotConfigured = errors.New("encode: encoder not configured")

// Options describes one encoding run.
type Options struct {
	Width      int
	Height     int
	FPS        int
	Bitrate    string
	Codec      string
	OutputPath string
}

// Encoder consumes ordered frames and produces a video file. Implementations
// are not safe for concurrent use; callers serialize submissions.
type Encoder interface {
	// Configure starts an encoding run with the given options.
	Configure(opts Options) error

	// SubmitFrame feeds one encoded image. Frames must arrive in
	// presentation order.
	SubmitFrame(image []byte) error

	// Finalize flushes the stream and returns the output file path.
	Finalize(ctx context.Context) (string, error)

	// Abort cancels the run and removes any partial output.
	Abort() error
}

// Factory creates encoders, one per export session.
type Factory interface {
	New() Encoder
}
