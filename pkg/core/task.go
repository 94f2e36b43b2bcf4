// pkg/core/task.go
package core

// TaskState tracks a capture task through its lifecycle.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskInFlight
	TaskDone
	TaskFailed
)

// CaptureTask is one unit of work: render the scene at QueryTime and produce
// the image for FrameIndex. Tasks exist only for the duration of an export.
type CaptureTask struct {
	FrameIndex int
	QueryTime  float64
	State      TaskState
}
