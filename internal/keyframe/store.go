// Package keyframe holds the ordered keyframe collection that is the ground
// truth for camera state over time, and the bracket lookup used by every
// sampler.
package keyframe

import (
	"errors"
	"sort"
	"sync"

	"github.com/Uni298/OSMStudio/internal/interp"
	"github.com/Uni298/OSMStudio/internal/observe"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// Event kinds emitted by the store on mutation.
const (
	EventAdded   = "added"
	EventUpdated = "updated"
	EventRemoved = "removed"
	EventCleared = "cleared"
)

// ErrDuplicateTime is returned when adding a keyframe at a time that is
// already occupied. Duplicate times would make the bracket lookup pick an
// arbitrary keyframe, so they are rejected at insertion; use Update to
// replace a keyframe in place.
var ErrDuplicateTime = errors.New("keyframe with identical time already exists")

// ErrKeyframeNotFound is returned by Update and Remove for an unknown time.
var ErrKeyframeNotFound = errors.New("no keyframe at the given time")

// Event describes one store mutation, delivered synchronously to observers.
type Event struct {
	Kind     string
	Keyframe core.Keyframe
}

// Store is the mutable, observable keyframe collection. Keyframes are kept
// sorted by ascending time. Callers only ever receive snapshots; the store
// retains exclusive ownership of the backing slice.
type Store struct {
	mu     sync.RWMutex
	frames []core.Keyframe

	observers *observe.Registry[Event]
}

// NewStore creates an empty keyframe store.
func NewStore(logger observe.Logger) *Store {
	return &Store{
		observers: observe.New[Event](logger),
	}
}

// Observe subscribes a callback for the given event kind. Callbacks run
// synchronously on the mutating goroutine, after the store lock is released.
func (s *Store) Observe(kind string, cb observe.Callback[Event], opts ...observe.Option) {
	s.observers.Subscribe(kind, cb, opts...)
}

// Add inserts a keyframe, keeping the collection sorted by time. Rejects
// negative times and duplicate times.
func (s *Store) Add(kf core.Keyframe) error {
	if kf.Time < 0 {
		return errors.New("keyframe time must be >= 0")
	}

	s.mu.Lock()
	if _, ok := s.indexOf(kf.Time); ok {
		s.mu.Unlock()
		return ErrDuplicateTime
	}
	s.frames = append(s.frames, kf)
	sort.Slice(s.frames, func(i, j int) bool { return s.frames[i].Time < s.frames[j].Time })
	s.mu.Unlock()

	s.observers.Emit(EventAdded, Event{Kind: EventAdded, Keyframe: kf})
	return nil
}

// Update replaces the keyframe at kf.Time with kf.
func (s *Store) Update(kf core.Keyframe) error {
	s.mu.Lock()
	i, ok := s.indexOf(kf.Time)
	if !ok {
		s.mu.Unlock()
		return ErrKeyframeNotFound
	}
	s.frames[i] = kf
	s.mu.Unlock()

	s.observers.Emit(EventUpdated, Event{Kind: EventUpdated, Keyframe: kf})
	return nil
}

// Remove deletes the keyframe at the given time.
func (s *Store) Remove(time float64) error {
	s.mu.Lock()
	i, ok := s.indexOf(time)
	if !ok {
		s.mu.Unlock()
		return ErrKeyframeNotFound
	}
	removed := s.frames[i]
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	s.mu.Unlock()

	s.observers.Emit(EventRemoved, Event{Kind: EventRemoved, Keyframe: removed})
	return nil
}

// Clear removes all keyframes.
func (s *Store) Clear() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()

	s.observers.Emit(EventCleared, Event{Kind: EventCleared})
}

// Len returns the number of keyframes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Snapshot returns a copy of the keyframes in ascending time order.
// Pipelines capture a snapshot at export start so concurrent edits cannot
// affect a running job.
func (s *Store) Snapshot() []core.Keyframe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Keyframe, len(s.frames))
	copy(out, s.frames)
	return out
}

// Bracket returns the keyframes bracketing queryTime: before is the last
// keyframe with time <= queryTime, after the first with time >= queryTime.
// With no keyframes both are nil. Past either end, the single existing
// neighbor is returned for both sides (no extrapolation).
func (s *Store) Bracket(queryTime float64) (before, after *core.Keyframe) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Bracket(s.frames, queryTime)
}

// StateAt samples the camera state at queryTime against the current
// keyframes. With no keyframes the default camera state is returned.
func (s *Store) StateAt(queryTime float64) core.CameraState {
	before, after := s.Bracket(queryTime)
	return interp.SampleBracket(before, after, queryTime)
}

// indexOf finds the keyframe with exactly the given time. Callers hold the lock.
func (s *Store) indexOf(time float64) (int, bool) {
	i := sort.Search(len(s.frames), func(i int) bool { return s.frames[i].Time >= time })
	if i < len(s.frames) && s.frames[i].Time == time {
		return i, true
	}
	return 0, false
}

// Bracket performs the bracket lookup over a slice sorted by ascending time,
// e.g. a Store snapshot held by an export pipeline. The returned pointers
// address copies, never the input slice.
func Bracket(frames []core.Keyframe, queryTime float64) (before, after *core.Keyframe) {
	if len(frames) == 0 {
		return nil, nil
	}

	// First index with time >= queryTime.
	i := sort.Search(len(frames), func(i int) bool { return frames[i].Time >= queryTime })

	if i < len(frames) {
		a := frames[i]
		after = &a
	}
	if i < len(frames) && frames[i].Time == queryTime {
		b := frames[i]
		before = &b
	} else if i > 0 {
		b := frames[i-1]
		before = &b
	}

	// Outside the keyframe range only one neighbor exists; mirror it so
	// samplers hold position instead of extrapolating.
	if before == nil {
		before = after
	}
	if after == nil {
		after = before
	}
	return before, after
}

// StateAt samples a snapshot directly, for pipelines that hold one.
func StateAt(frames []core.Keyframe, queryTime float64) core.CameraState {
	before, after := Bracket(frames, queryTime)
	return interp.SampleBracket(before, after, queryTime)
}
