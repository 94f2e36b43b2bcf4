package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/internal/encode"
	"github.com/Uni298/OSMStudio/internal/framestore"
	"github.com/Uni298/OSMStudio/internal/render"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/pkg/core"
)

var _ Pipeline = (*Sequential)(nil)
var _ Pipeline = (*Coordinator)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKeyframes() []core.Keyframe {
	return []core.Keyframe{
		{Time: 0, Latitude: 0, Longitude: 0, Zoom: 1, Curve: core.CurveLinear},
		{Time: 3, Latitude: 10, Longitude: 20, Zoom: 5, Curve: core.CurveLinear},
	}
}

func testSettings(mode core.ExportMode) core.ExportSettings {
	return core.ExportSettings{
		Mode:     mode,
		Duration: 0.5,
		FPS:      20, // 10 frames
		Width:    640,
		Height:   360,
		Bitrate:  4000,
		Codec:    "libx264",
	}
}

// fakeSurface is a scriptable render surface.
type fakeSurface struct {
	mu            sync.Mutex
	captures      int
	failOnCapture int // capture ordinal to fail at, 0 = never
	settleTimeout bool
	captureGate   chan struct{} // when non-nil, each capture waits for a tick
}

func (f *fakeSurface) SetCameraState(ctx context.Context, state core.CameraState) error {
	return ctx.Err()
}

func (f *fakeSurface) WaitSettled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.settleTimeout {
		return render.ErrSettleTimeout
	}
	return nil
}

func (f *fakeSurface) CaptureImage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.captureGate != nil {
		select {
		case <-f.captureGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.captures++
	n := f.captures
	f.mu.Unlock()

	if f.failOnCapture > 0 && n >= f.failOnCapture {
		return nil, fmt.Errorf("surface crashed")
	}
	return []byte(fmt.Sprintf("img-%d", n)), nil
}

func (f *fakeSurface) Close() error { return nil }

func (f *fakeSurface) captured() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// sharedSurfaceFactory hands out surfaces that share one capture counter so
// pool-wide behavior can be scripted.
type sharedSurfaceFactory struct {
	surface *fakeSurface
}

func (s *sharedSurfaceFactory) Open(context.Context) (render.Renderer, error) {
	return s.surface, nil
}

// fakeEncoder records submissions in arrival order.
type fakeEncoder struct {
	mu         sync.Mutex
	configured *encode.Options
	frames     [][]byte
	aborted    bool
	failSubmit bool
	blockGate  chan struct{} // when non-nil, each submit waits for a tick
}

func (f *fakeEncoder) Configure(opts encode.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = &opts
	return nil
}

func (f *fakeEncoder) SubmitFrame(image []byte) error {
	if f.blockGate != nil {
		<-f.blockGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubmit {
		return fmt.Errorf("encoder pipe broken")
	}
	f.frames = append(f.frames, image)
	return nil
}

func (f *fakeEncoder) Finalize(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configured == nil {
		return "", encode.ErrNotConfigured
	}
	return f.configured.OutputPath, nil
}

func (f *fakeEncoder) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
	return nil
}

func (f *fakeEncoder) submitted() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([][]byte, len(f.frames))
	copy(cp, f.frames)
	return cp
}

func TestBuildTasks(t *testing.T) {
	tasks := BuildTasks(3, 30)
	require.Len(t, tasks, 90)
	assert.Equal(t, 0, tasks[0].FrameIndex)
	assert.InDelta(t, 0.0, tasks[0].QueryTime, 1e-12)
	assert.InDelta(t, 89.0/30.0, tasks[89].QueryTime, 1e-12)

	// A fractional tail still gets its own frame.
	assert.Len(t, BuildTasks(1.01, 30), 31)
}

func newSequential(t *testing.T, surface *fakeSurface, enc *fakeEncoder, store session.Store, settings core.ExportSettings) *Sequential {
	t.Helper()
	return NewSequential(SequentialDeps{
		Renderer:     surface,
		Encoder:      enc,
		Sessions:     store,
		Keyframes:    testKeyframes(),
		Settings:     settings,
		Config:       config.ExportConfig{EncodeInflight: 4},
		ArtifactPath: filepath.Join(t.TempDir(), "out.mp4"),
		Logger:       testLogger(),
	})
}

func createSession(t *testing.T, store session.Store, id string, mode core.ExportMode, total int) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &core.ExportSession{
		ID:          id,
		Mode:        mode,
		Status:      core.StatusLoading,
		TotalFrames: total,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}))
}

func TestSequential_CompletesInOrder(t *testing.T) {
	store := session.NewMemoryStore()
	surface := &fakeSurface{}
	enc := &fakeEncoder{}
	settings := testSettings(core.ModeSequential)

	createSession(t, store, "seq", core.ModeSequential, 10)
	p := newSequential(t, surface, enc, store, settings)

	path, err := p.Run(context.Background(), "seq")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	frames := enc.submitted()
	require.Len(t, frames, 10)
	for i, img := range frames {
		assert.Equal(t, fmt.Sprintf("img-%d", i+1), string(img), "frames must encode in capture order")
	}

	sess, err := store.Get(context.Background(), "seq")
	require.NoError(t, err)
	assert.Equal(t, core.StatusEncoding, sess.Status)
	assert.InDelta(t, 100.0, sess.Progress, 1e-9)
	require.Len(t, sess.Frames, 10)
	for i, fd := range sess.Frames {
		assert.Equal(t, i, fd.FrameIndex)
	}
}

func TestSequential_ToleratesSettleTimeout(t *testing.T) {
	store := session.NewMemoryStore()
	surface := &fakeSurface{settleTimeout: true}
	enc := &fakeEncoder{}

	createSession(t, store, "seq", core.ModeSequential, 10)
	p := newSequential(t, surface, enc, store, testSettings(core.ModeSequential))

	_, err := p.Run(context.Background(), "seq")
	require.NoError(t, err)
	assert.Len(t, enc.submitted(), 10)
}

func TestSequential_BoundedInflight(t *testing.T) {
	store := session.NewMemoryStore()
	gate := make(chan struct{})
	surface := &fakeSurface{}
	enc := &fakeEncoder{blockGate: gate}

	createSession(t, store, "seq", core.ModeSequential, 10)
	p := newSequential(t, surface, enc, store, testSettings(core.ModeSequential))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run(context.Background(), "seq")
	}()

	// With the encoder stalled, capture may run at most EncodeInflight
	// ahead plus the frame held by the encoder goroutine and the one
	// blocked in the channel send.
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, surface.captured(), 4+2, "capture must not outrun the in-flight bound")

	// Release the encoder and let the run finish.
	go func() {
		for i := 0; i < 10; i++ {
			gate <- struct{}{}
		}
	}()
	<-done
	assert.Len(t, enc.submitted(), 10)
}

func TestSequential_CancelReturnsErrCancelled(t *testing.T) {
	store := session.NewMemoryStore()
	gate := make(chan struct{})
	surface := &fakeSurface{captureGate: gate}
	enc := &fakeEncoder{}

	createSession(t, store, "seq", core.ModeSequential, 10)
	p := newSequential(t, surface, enc, store, testSettings(core.ModeSequential))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, "seq")
		errCh <- err
	}()

	// Let a couple of frames through, then cancel mid-run.
	gate <- struct{}{}
	gate <- struct{}{}
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, enc.aborted, "partial encode must be aborted on cancel")
}

func TestSequential_EncoderFailureFailsFast(t *testing.T) {
	store := session.NewMemoryStore()
	surface := &fakeSurface{}
	enc := &fakeEncoder{failSubmit: true}

	createSession(t, store, "seq", core.ModeSequential, 10)
	p := newSequential(t, surface, enc, store, testSettings(core.ModeSequential))

	_, err := p.Run(context.Background(), "seq")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.True(t, enc.aborted)
}

func TestSequential_NoKeyframes(t *testing.T) {
	store := session.NewMemoryStore()
	p := NewSequential(SequentialDeps{
		Renderer: &fakeSurface{},
		Encoder:  &fakeEncoder{},
		Sessions: store,
		Settings: testSettings(core.ModeSequential),
		Logger:   testLogger(),
	})

	_, err := p.Run(context.Background(), "seq")
	assert.ErrorIs(t, err, ErrNoKeyframes)
}

func newCoordinator(t *testing.T, surface *fakeSurface, enc *fakeEncoder, store session.Store, settings core.ExportSettings, poolSize int) *Coordinator {
	t.Helper()

	arena, err := render.NewArena(context.Background(), &sharedSurfaceFactory{surface: surface}, poolSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = arena.Close() })

	frames, err := framestore.New(t.TempDir())
	require.NoError(t, err)

	return NewCoordinator(CoordinatorDeps{
		Arena:        arena,
		Encoder:      enc,
		Sessions:     store,
		Frames:       frames,
		Keyframes:    testKeyframes(),
		Settings:     settings,
		Config:       config.ExportConfig{},
		ArtifactPath: filepath.Join(t.TempDir(), "out.mp4"),
		Logger:       testLogger(),
	})
}

func TestCoordinator_AllFramesCapturedOnce(t *testing.T) {
	store := session.NewMemoryStore()
	surface := &fakeSurface{}
	enc := &fakeEncoder{}
	settings := testSettings(core.ModeParallel)
	settings.Concurrency = 3

	createSession(t, store, "par", core.ModeParallel, 10)
	p := newCoordinator(t, surface, enc, store, settings, 3)

	path, err := p.Run(context.Background(), "par")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	sess, err := store.Get(context.Background(), "par")
	require.NoError(t, err)
	require.Len(t, sess.Frames, 10, "every frame index must be captured exactly once")

	seen := make(map[int]bool)
	for _, fd := range sess.Frames {
		assert.False(t, seen[fd.FrameIndex], "frame %d captured twice", fd.FrameIndex)
		seen[fd.FrameIndex] = true
		assert.NotEmpty(t, fd.Path)
	}
	for i := 0; i < 10; i++ {
		assert.True(t, seen[i], "frame %d missing", i)
	}

	// Encode stage replays in frame order regardless of completion order.
	assert.Len(t, enc.submitted(), 10)
	assert.InDelta(t, 100.0, sess.Progress, 1e-9)
}

func TestCoordinator_FailFastOnCaptureError(t *testing.T) {
	store := session.NewMemoryStore()
	surface := &fakeSurface{failOnCapture: 3}
	enc := &fakeEncoder{}
	settings := testSettings(core.ModeParallel)
	settings.Duration = 5 // 100 tasks
	settings.Concurrency = 2

	createSession(t, store, "par", core.ModeParallel, 100)
	p := newCoordinator(t, surface, enc, store, settings, 2)

	_, err := p.Run(context.Background(), "par")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Contains(t, err.Error(), "surface crashed")

	// The queue was cleared: nowhere near all 100 tasks ran.
	assert.Less(t, surface.captured(), 20)
	assert.Empty(t, enc.submitted(), "encode stage must not start after capture failure")
}

func TestCoordinator_CancelReturnsErrCancelled(t *testing.T) {
	store := session.NewMemoryStore()
	gate := make(chan struct{})
	surface := &fakeSurface{captureGate: gate}
	enc := &fakeEncoder{}
	settings := testSettings(core.ModeParallel)
	settings.Concurrency = 2

	createSession(t, store, "par", core.ModeParallel, 10)
	p := newCoordinator(t, surface, enc, store, settings, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, "par")
		errCh <- err
	}()

	gate <- struct{}{}
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, enc.submitted())
}

func TestCoordinator_NoKeyframes(t *testing.T) {
	store := session.NewMemoryStore()
	enc := &fakeEncoder{}
	settings := testSettings(core.ModeParallel)

	p := newCoordinator(t, &fakeSurface{}, enc, store, settings, 1)
	p.deps.Keyframes = nil

	_, err := p.Run(context.Background(), "par")
	assert.ErrorIs(t, err, ErrNoKeyframes)
}
