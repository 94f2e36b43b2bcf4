package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uni298/OSMStudio/internal/keyframe"
	"github.com/Uni298/OSMStudio/pkg/core"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 30, nil)
	assert.Error(t, err)

	_, err = New(10, 0, nil)
	assert.Error(t, err)

	tl, err := New(10, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, tl.Duration())
	assert.Equal(t, 30, tl.FPS())
}

func TestSeek_Clamps(t *testing.T) {
	tl, err := New(10, 30, nil)
	require.NoError(t, err)

	tl.Seek(-5)
	assert.Equal(t, 0.0, tl.Playhead())

	tl.Seek(99)
	assert.Equal(t, 10.0, tl.Playhead())

	tl.Seek(4.5)
	assert.Equal(t, 4.5, tl.Playhead())
}

func TestAdvance_ReportsEnd(t *testing.T) {
	tl, err := New(1, 30, nil)
	require.NoError(t, err)

	assert.False(t, tl.Advance(0.5))
	assert.True(t, tl.Advance(0.6))
	assert.Equal(t, 1.0, tl.Playhead())
}

func TestRetime_ClampsPlayhead(t *testing.T) {
	tl, err := New(10, 30, nil)
	require.NoError(t, err)
	tl.Seek(8)

	require.NoError(t, tl.Retime(5, 24))
	assert.Equal(t, 5.0, tl.Playhead())
	assert.Equal(t, 24, tl.FPS())

	assert.Error(t, tl.Retime(0, 24))
	assert.Error(t, tl.Retime(5, 0))
}

func TestFrameCount(t *testing.T) {
	cases := []struct {
		duration float64
		fps      int
		want     int
	}{
		{10, 30, 300},
		{1, 1, 1},
		{0.5, 30, 15},
		{1.01, 30, 31}, // partial trailing frame rounds up
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FrameCount(c.duration, c.fps), "duration=%v fps=%d", c.duration, c.fps)
	}
}

func TestTimeAt(t *testing.T) {
	tl, err := New(10, 25, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tl.TimeAt(0))
	assert.Equal(t, 1.0, tl.TimeAt(25))
	assert.InDelta(t, 0.04, tl.TimeAt(1), 1e-9)
}

func TestObservers_FireOnMutation(t *testing.T) {
	tl, err := New(10, 30, nil)
	require.NoError(t, err)

	var kinds []string
	for _, k := range []string{EventSeek, EventAdvance, EventRetimed} {
		tl.Observe(k, func(e Event) { kinds = append(kinds, e.Kind) })
	}

	tl.Seek(1)
	tl.Advance(0.1)
	require.NoError(t, tl.Retime(8, 30))

	assert.Equal(t, []string{EventSeek, EventAdvance, EventRetimed}, kinds)
}

// recordingSink collects camera states pushed during playback.
type recordingSink struct {
	mu     sync.Mutex
	states []core.CameraState
}

func (r *recordingSink) SetCameraState(_ context.Context, s core.CameraState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	return nil
}

func TestPlayer_PlaysToEnd(t *testing.T) {
	tl, err := New(0.2, 20, nil)
	require.NoError(t, err)

	store := keyframe.NewStore(nil)
	require.NoError(t, store.Add(core.Keyframe{Time: 0, Zoom: 1, Curve: core.CurveLinear}))
	require.NoError(t, store.Add(core.Keyframe{Time: 0.2, Latitude: 1, Longitude: 1, Zoom: 2, Curve: core.CurveLinear}))

	sink := &recordingSink{}
	player := NewPlayer(tl, store, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, player.Play(ctx))
	assert.Equal(t, 0.2, tl.Playhead())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.states)
	last := sink.states[len(sink.states)-1]
	assert.InDelta(t, 2.0, last.Zoom, 1e-9)
}

func TestPlayer_CancelStopsPlayback(t *testing.T) {
	tl, err := New(60, 30, nil)
	require.NoError(t, err)

	store := keyframe.NewStore(nil)
	player := NewPlayer(tl, store, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, player.Play(ctx), context.Canceled)
}
