// Package timeline owns the playhead and frame-rate policy: the mapping
// between wall/playback time and the query times handed to the sampler.
package timeline

import (
	"errors"
	"math"
	"sync"

	"github.com/Uni298/OSMStudio/internal/observe"
)

// Event kinds emitted on playhead or configuration changes.
const (
	EventSeek    = "seek"
	EventAdvance = "advance"
	EventRetimed = "retimed"
)

// Event carries the playhead position after a change.
type Event struct {
	Kind     string
	Playhead float64
	Duration float64
}

// Timeline maps playback time to query times in [0, duration]. The playhead
// is always clamped to that range.
type Timeline struct {
	mu       sync.RWMutex
	duration float64
	fps      int
	playhead float64

	observers *observe.Registry[Event]
}

// New creates a Timeline. Duration must be positive and fps must be at
// least 1.
func New(duration float64, fps int, logger observe.Logger) (*Timeline, error) {
	if duration <= 0 {
		return nil, errors.New("timeline duration must be > 0")
	}
	if fps <= 0 {
		return nil, errors.New("timeline fps must be > 0")
	}
	return &Timeline{
		duration:  duration,
		fps:       fps,
		observers: observe.New[Event](logger),
	}, nil
}

// Observe subscribes a callback for the given event kind.
func (t *Timeline) Observe(kind string, cb observe.Callback[Event], opts ...observe.Option) {
	t.observers.Subscribe(kind, cb, opts...)
}

// Duration returns the timeline duration in seconds.
func (t *Timeline) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}

// FPS returns the output frame rate.
func (t *Timeline) FPS() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fps
}

// Playhead returns the current playhead time.
func (t *Timeline) Playhead() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.playhead
}

// Retime changes duration and fps, clamping the playhead into the new range.
func (t *Timeline) Retime(duration float64, fps int) error {
	if duration <= 0 {
		return errors.New("timeline duration must be > 0")
	}
	if fps <= 0 {
		return errors.New("timeline fps must be > 0")
	}

	t.mu.Lock()
	t.duration = duration
	t.fps = fps
	t.playhead = clamp(t.playhead, 0, duration)
	ev := Event{Kind: EventRetimed, Playhead: t.playhead, Duration: duration}
	t.mu.Unlock()

	t.observers.Emit(EventRetimed, ev)
	return nil
}

// Seek moves the playhead to the given time, clamped to [0, duration].
func (t *Timeline) Seek(to float64) {
	t.mu.Lock()
	t.playhead = clamp(to, 0, t.duration)
	ev := Event{Kind: EventSeek, Playhead: t.playhead, Duration: t.duration}
	t.mu.Unlock()

	t.observers.Emit(EventSeek, ev)
}

// Advance moves the playhead forward by dt seconds and reports whether the
// end of the timeline was reached. Used by playback and export stepping.
func (t *Timeline) Advance(dt float64) (atEnd bool) {
	t.mu.Lock()
	t.playhead = clamp(t.playhead+dt, 0, t.duration)
	atEnd = t.playhead >= t.duration
	ev := Event{Kind: EventAdvance, Playhead: t.playhead, Duration: t.duration}
	t.mu.Unlock()

	t.observers.Emit(EventAdvance, ev)
	return atEnd
}

// FrameCount returns the number of output frames: ceil(duration * fps).
func (t *Timeline) FrameCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return FrameCount(t.duration, t.fps)
}

// TimeAt returns the query time of a frame index: frameIndex / fps.
func (t *Timeline) TimeAt(frameIndex int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return float64(frameIndex) / float64(t.fps)
}

// FrameCount computes ceil(duration * fps) without a Timeline instance.
func FrameCount(duration float64, fps int) int {
	return int(math.Ceil(duration * float64(fps)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
