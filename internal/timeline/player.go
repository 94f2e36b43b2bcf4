package timeline

import (
	"context"
	"time"

	"github.com/Uni298/OSMStudio/internal/keyframe"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// CameraSink receives sampled camera states during preview playback.
// The render surface satisfies this with its SetCameraState command.
type CameraSink interface {
	SetCameraState(ctx context.Context, state core.CameraState) error
}

// Player drives preview playback: it advances the playhead at wall-clock
// rate and pushes sampled camera states to a sink. Playback is lossy,
// ticks that the sink cannot keep up with are skipped, unlike export
// which steps frame by frame.
type Player struct {
	timeline *Timeline
	store    *keyframe.Store
	sink     CameraSink
}

// NewPlayer creates a preview player over the given timeline and keyframes.
func NewPlayer(tl *Timeline, store *keyframe.Store, sink CameraSink) *Player {
	return &Player{timeline: tl, store: store, sink: sink}
}

// Play runs playback from the current playhead until the timeline end, the
// context is cancelled, or the sink fails. The playhead is left wherever
// playback stopped.
func (p *Player) Play(ctx context.Context) error {
	interval := time.Second / time.Duration(p.timeline.FPS())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			atEnd := p.timeline.Advance(now.Sub(last).Seconds())
			last = now

			state := p.store.StateAt(p.timeline.Playhead())
			if err := p.sink.SetCameraState(ctx, state); err != nil {
				return err
			}
			if atEnd {
				return nil
			}
		}
	}
}
