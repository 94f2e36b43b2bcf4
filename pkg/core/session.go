// pkg/core/session.go
package core

import "time"

// Status is the lifecycle state of an export session.
type Status string

const (
	StatusInitiating Status = "initiating"
	StatusLoading    Status = "loading"
	StatusRendering  Status = "rendering"
	StatusEncoding   Status = "encoding"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal sessions are kept
// for a retention window and then deleted together with their frame storage.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ExportMode selects which pipeline variant renders the session.
type ExportMode string

const (
	ModeSequential ExportMode = "sequential"
	ModeParallel   ExportMode = "parallel"
)

// FrameDescriptor records one completed frame capture. Workers append these
// in completion order; consumers sort by FrameIndex before encoding.
type FrameDescriptor struct {
	FrameIndex int       `json:"frameIndex"`
	QueryTime  float64   `json:"queryTime"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"capturedAt"`
}

// ExportSession is the durable, externally visible record of one export job.
type ExportSession struct {
	ID           string            `json:"id"`
	Mode         ExportMode        `json:"mode"`
	Status       Status            `json:"status"`
	Progress     float64           `json:"progress"` // 0..100
	Message      string            `json:"message"`
	TotalFrames  int               `json:"totalFrames"`
	Frames       []FrameDescriptor `json:"frames,omitempty"`
	ArtifactPath string            `json:"artifactPath,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate stored state through a
// shared frames slice.
func (s *ExportSession) Clone() *ExportSession {
	out := *s
	if s.Frames != nil {
		out.Frames = make([]FrameDescriptor, len(s.Frames))
		copy(out.Frames, s.Frames)
	}
	return &out
}
