// Package export renders camera paths into video artifacts. Two pipeline
// variants exist: Sequential drives one surface and streams captures
// straight into the encoder, Coordinator fans capture tasks out over a
// surface pool and encodes from durable frame storage afterwards.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/Uni298/OSMStudio/internal/timeline"
	"github.com/Uni298/OSMStudio/pkg/core"
)

var (
	// ErrCancelled is returned when an export stops because its context was
	// cancelled. Callers map it to the cancelled session status.
	ErrCancelled = errors.New("export: cancelled")

	// ErrNoKeyframes is returned when an export starts with an empty path.
	ErrNoKeyframes = errors.New("export: no keyframes")
)

// Pipeline runs one export session to completion and returns the artifact
// path.
type Pipeline interface {
	Run(ctx context.Context, sessionID string) (string, error)
}

// BuildTasks derives the capture task list for a clip. One task per output
// frame; query times sit at frameIndex/fps.
func BuildTasks(duration float64, fps int) []core.CaptureTask {
	total := timeline.FrameCount(duration, fps)
	tasks := make([]core.CaptureTask, total)
	for i := 0; i < total; i++ {
		tasks[i] = core.CaptureTask{
			FrameIndex: i,
			QueryTime:  float64(i) / float64(fps),
			State:      core.TaskPending,
		}
	}
	return tasks
}

// bitrateArg renders a kbit/s setting for the encoder. Zero means "use the
// encoder default".
func bitrateArg(kbps int) string {
	if kbps <= 0 {
		return ""
	}
	return fmt.Sprintf("%dk", kbps)
}
