package studio

import (
	"context"
	"io"
	"log/slog"
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

// stubSurface renders instantly; an optional gate stalls captures.
type stubSurface struct {
	gate chan struct{}
}

func (s *stubSurface) SetCameraState(ctx context.Context, _ core.CameraState) error {
	return ctx.Err()
}

func (s *stubSurface) WaitSettled(ctx context.Context) error { return ctx.Err() }

func (s *stubSurface) CaptureImage(ctx context.Context) ([]byte, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte("img"), nil
}

func (s *stubSurface) Close() error { return nil }

type stubSurfaceFactory struct {
	gate chan struct{}
}

func (f *stubSurfaceFactory) Open(context.Context) (render.Renderer, error) {
	return &stubSurface{gate: f.gate}, nil
}

// stubEncoder accepts everything and reports its output path.
type stubEncoder struct {
	mu     sync.Mutex
	opts   encode.Options
	frames int
}

func (e *stubEncoder) Configure(opts encode.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = opts
	return nil
}

func (e *stubEncoder) SubmitFrame([]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames++
	return nil
}

func (e *stubEncoder) Finalize(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.OutputPath, nil
}

func (e *stubEncoder) Abort() error { return nil }

type stubEncoderFactory struct{}

func (stubEncoderFactory) New() encode.Encoder { return &stubEncoder{} }

func newService(t *testing.T, gate chan struct{}) (*Service, session.Store) {
	t.Helper()

	frames, err := framestore.New(t.TempDir())
	require.NoError(t, err)

	store := session.NewMemoryStore()
	svc := New(Dependencies{
		Sessions: store,
		Frames:   frames,
		Surfaces: &stubSurfaceFactory{gate: gate},
		Encoders: stubEncoderFactory{},
		Config:   config.ExportConfig{EncodeInflight: 4},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, store
}

func testKeyframes() []core.Keyframe {
	return []core.Keyframe{
		{Time: 0, Zoom: 1, Curve: core.CurveLinear},
		{Time: 2, Latitude: 10, Longitude: 10, Zoom: 4, Curve: core.CurveEaseInOut},
	}
}

func settings(mode core.ExportMode) core.ExportSettings {
	return core.ExportSettings{
		Mode:        mode,
		Duration:    0.25,
		FPS:         20, // 5 frames
		Width:       640,
		Height:      360,
		Bitrate:     4000,
		Codec:       "libx264",
		Concurrency: 2,
	}
}

func waitForTerminal(t *testing.T, svc *Service, id string) *core.ExportSession {
	t.Helper()
	var last *core.ExportSession
	require.Eventually(t, func() bool {
		sess, err := svc.GetStatus(context.Background(), id)
		if err != nil {
			return false
		}
		last = sess
		return sess.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "session never reached a terminal status")
	return last
}

func TestStartExport_SequentialCompletes(t *testing.T) {
	svc, _ := newService(t, nil)

	id, err := svc.StartExport(context.Background(), settings(core.ModeSequential), testKeyframes())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess := waitForTerminal(t, svc, id)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	assert.Equal(t, 5, sess.TotalFrames)
	assert.NotEmpty(t, sess.ArtifactPath)
	assert.InDelta(t, 100.0, sess.Progress, 1e-9)

	path, err := svc.ArtifactPath(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sess.ArtifactPath, path)
}

func TestStartExport_ParallelCompletes(t *testing.T) {
	svc, _ := newService(t, nil)

	id, err := svc.StartExport(context.Background(), settings(core.ModeParallel), testKeyframes())
	require.NoError(t, err)

	sess := waitForTerminal(t, svc, id)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	require.Len(t, sess.Frames, 5)
}

func TestStartExport_InvalidSettings(t *testing.T) {
	svc, _ := newService(t, nil)

	bad := settings(core.ModeSequential)
	bad.FPS = 0
	_, err := svc.StartExport(context.Background(), bad, testKeyframes())
	assert.ErrorIs(t, err, ErrInvalidSettings)

	bad = settings("turbo")
	_, err = svc.StartExport(context.Background(), bad, testKeyframes())
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestStartExport_NoKeyframes(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.StartExport(context.Background(), settings(core.ModeSequential), nil)
	require.Error(t, err)
}

func TestCancel_MidRun(t *testing.T) {
	gate := make(chan struct{})
	svc, _ := newService(t, gate)

	id, err := svc.StartExport(context.Background(), settings(core.ModeSequential), testKeyframes())
	require.NoError(t, err)

	// Let one frame through, then cancel while the next capture is stalled.
	gate <- struct{}{}
	require.NoError(t, svc.Cancel(context.Background(), id))

	sess := waitForTerminal(t, svc, id)
	assert.Equal(t, core.StatusCancelled, sess.Status)
	assert.Empty(t, sess.ArtifactPath)

	_, err = svc.ArtifactPath(context.Background(), id)
	assert.ErrorIs(t, err, ErrArtifactNotReady)

	// Cancelling a terminal session is a no-op.
	assert.NoError(t, svc.Cancel(context.Background(), id))
}

func TestCancel_Unknown(t *testing.T) {
	svc, _ := newService(t, nil)
	err := svc.Cancel(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestCancel_OrphanedSession(t *testing.T) {
	svc, store := newService(t, nil)

	// A non-terminal session with no running pipeline, e.g. after restart.
	require.NoError(t, store.Create(context.Background(), &core.ExportSession{
		ID:     "orphan",
		Status: core.StatusRendering,
	}))

	require.NoError(t, svc.Cancel(context.Background(), "orphan"))
	sess, err := svc.GetStatus(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, sess.Status)
}

func TestDelete_RemovesSession(t *testing.T) {
	svc, _ := newService(t, nil)

	id, err := svc.StartExport(context.Background(), settings(core.ModeSequential), testKeyframes())
	require.NoError(t, err)
	waitForTerminal(t, svc, id)

	require.NoError(t, svc.Delete(context.Background(), id))
	_, err = svc.GetStatus(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestList(t *testing.T) {
	svc, _ := newService(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.StartExport(context.Background(), settings(core.ModeSequential), testKeyframes())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitForTerminal(t, svc, id)
	}

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
