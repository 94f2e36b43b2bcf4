// Package studio is the orchestration layer: it owns export sessions from
// request to artifact, wiring the keyframe path, pipelines, and stores
// together.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/internal/encode"
	"github.com/Uni298/OSMStudio/internal/export"
	"github.com/Uni298/OSMStudio/internal/framestore"
	"github.com/Uni298/OSMStudio/internal/render"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/pkg/core"
)

var (
	// ErrArtifactNotReady is returned when a download is requested before
	// the session completes.
	ErrArtifactNotReady = errors.New("studio: artifact not ready")

	// ErrInvalidSettings is returned for unusable export requests.
	ErrInvalidSettings = errors.New("studio: invalid settings")
)

// SessionRecorder receives summaries of finished sessions for telemetry.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s *core.ExportSession) error
}

// Dependencies holds all collaborators of the studio service. Telemetry is
// optional and may be nil.
type Dependencies struct {
	Sessions  session.Store
	Frames    *framestore.Store
	Surfaces  render.Factory
	Encoders  encode.Factory
	Config    config.ExportConfig
	Telemetry SessionRecorder
	Logger    *slog.Logger

	// MaxConcurrency caps parallel surface count. Zero means uncapped.
	MaxConcurrency int
}

// Service accepts export requests and runs them asynchronously. Each active
// session holds a cancel function so exports can be stopped mid-flight.
type Service struct {
	deps            Dependencies
	sessionsStarted metric.Int64Counter

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a studio service.
func New(deps Dependencies) *Service {
	return &Service{
		deps:            deps,
		sessionsStarted: sessionsStartedCounter(),
		active:          make(map[string]context.CancelFunc),
	}
}

func validateSettings(settings core.ExportSettings) error {
	if settings.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSettings)
	}
	if settings.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidSettings)
	}
	if settings.Width <= 0 || settings.Height <= 0 {
		return fmt.Errorf("%w: viewport must be positive", ErrInvalidSettings)
	}
	switch settings.Mode {
	case core.ModeSequential, core.ModeParallel:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, settings.Mode)
	}
	return nil
}

// StartExport creates a session and launches the pipeline in the
// background. It returns the new session ID immediately.
func (s *Service) StartExport(ctx context.Context, settings core.ExportSettings, keyframes []core.Keyframe) (string, error) {
	if err := validateSettings(settings); err != nil {
		return "", err
	}
	if len(keyframes) == 0 {
		return "", export.ErrNoKeyframes
	}

	// Interpolation assumes time order; don't trust the caller's ordering.
	path := make([]core.Keyframe, len(keyframes))
	copy(path, keyframes)
	sort.Slice(path, func(i, j int) bool { return path[i].Time < path[j].Time })
	keyframes = path

	id := uuid.New().String()
	now := time.Now().UTC()
	tasks := export.BuildTasks(settings.Duration, settings.FPS)

	sess := &core.ExportSession{
		ID:          id,
		Mode:        settings.Mode,
		Status:      core.StatusInitiating,
		TotalFrames: len(tasks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Sessions.Create(ctx, sess); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[id] = cancel
	s.mu.Unlock()

	go s.runExport(runCtx, id, settings, keyframes)

	s.sessionsStarted.Add(ctx, 1)
	s.deps.Logger.Info("Export started",
		"sessionId", id, "mode", settings.Mode, "frames", len(tasks))
	return id, nil
}

// runExport owns the session lifecycle from Loading to a terminal status.
func (s *Service) runExport(ctx context.Context, id string, settings core.ExportSettings, keyframes []core.Keyframe) {
	defer func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}()

	s.setStatus(id, core.StatusLoading, "preparing surfaces")

	pipeline, cleanup, err := s.buildPipeline(ctx, id, settings, keyframes)
	if err != nil {
		s.finishFailed(id, err)
		return
	}
	defer cleanup()

	path, err := pipeline.Run(ctx, id)
	switch {
	case err == nil:
		s.finishCompleted(id, path)
	case errors.Is(err, export.ErrCancelled):
		s.finishCancelled(id)
	default:
		s.finishFailed(id, err)
	}

	s.recordTelemetry(id)
}

// recordTelemetry ships the finished session summary, if a recorder is wired.
func (s *Service) recordTelemetry(id string) {
	if s.deps.Telemetry == nil {
		return
	}
	sess, err := s.deps.Sessions.Get(context.Background(), id)
	if err != nil {
		return
	}
	if err := s.deps.Telemetry.RecordSession(context.Background(), sess); err != nil {
		s.deps.Logger.Warn("Telemetry write failed", "sessionId", id, "error", err)
	}
}

// buildPipeline assembles the pipeline variant for the session mode.
func (s *Service) buildPipeline(ctx context.Context, id string, settings core.ExportSettings, keyframes []core.Keyframe) (export.Pipeline, func(), error) {
	artifact := filepath.Join(s.deps.Frames.SessionDir(id), "export.mp4")
	encoder := s.deps.Encoders.New()

	switch settings.Mode {
	case core.ModeSequential:
		surface, err := s.deps.Surfaces.Open(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("open surface: %w", err)
		}
		p := export.NewSequential(export.SequentialDeps{
			Renderer:     surface,
			Encoder:      encoder,
			Sessions:     s.deps.Sessions,
			Keyframes:    keyframes,
			Settings:     settings,
			Config:       s.deps.Config,
			ArtifactPath: artifact,
			Logger:       s.deps.Logger,
		})
		return p, func() { _ = surface.Close() }, nil

	case core.ModeParallel:
		workers := settings.Concurrency
		if workers <= 0 {
			workers = 4
		}
		if s.deps.MaxConcurrency > 0 && workers > s.deps.MaxConcurrency {
			workers = s.deps.MaxConcurrency
		}
		arena, err := render.NewArena(ctx, s.deps.Surfaces, workers)
		if err != nil {
			return nil, nil, fmt.Errorf("open surface pool: %w", err)
		}
		p := export.NewCoordinator(export.CoordinatorDeps{
			Arena:        arena,
			Encoder:      encoder,
			Sessions:     s.deps.Sessions,
			Frames:       s.deps.Frames,
			Keyframes:    keyframes,
			Settings:     settings,
			Config:       s.deps.Config,
			ArtifactPath: artifact,
			Logger:       s.deps.Logger,
		})
		return p, func() { _ = arena.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, settings.Mode)
	}
}

// GetStatus returns the current session record.
func (s *Service) GetStatus(ctx context.Context, id string) (*core.ExportSession, error) {
	return s.deps.Sessions.Get(ctx, id)
}

// List returns all sessions.
func (s *Service) List(ctx context.Context) ([]*core.ExportSession, error) {
	return s.deps.Sessions.List(ctx)
}

// Cancel stops a running export. Cancelling a terminal session is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	sess, err := s.deps.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return nil
	}

	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()

	if ok {
		cancel()
		s.deps.Logger.Info("Export cancel requested", "sessionId", id)
		return nil
	}

	// No running pipeline (e.g. process restarted): mark directly.
	s.finishCancelled(id)
	return nil
}

// ArtifactPath returns the artifact location of a completed session.
func (s *Service) ArtifactPath(ctx context.Context, id string) (string, error) {
	sess, err := s.deps.Sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Status != core.StatusCompleted || sess.ArtifactPath == "" {
		return "", ErrArtifactNotReady
	}
	return sess.ArtifactPath, nil
}

// Delete removes a session together with its frames and artifact. Running
// sessions are cancelled first.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.deps.Sessions.Get(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, running := s.active[id]
	s.mu.Unlock()
	if running {
		cancel()
	}

	if err := s.deps.Frames.DeleteSession(id); err != nil {
		return err
	}
	return s.deps.Sessions.Delete(ctx, id)
}

func (s *Service) setStatus(id string, status core.Status, message string) {
	_, err := s.deps.Sessions.Update(context.Background(), id, func(sess *core.ExportSession) error {
		sess.Status = status
		sess.Message = message
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Session status update failed", "sessionId", id, "error", err)
	}
}

func (s *Service) finishCompleted(id, artifact string) {
	_, err := s.deps.Sessions.Update(context.Background(), id, func(sess *core.ExportSession) error {
		sess.Status = core.StatusCompleted
		sess.Progress = 100
		sess.Message = "export complete"
		sess.ArtifactPath = artifact
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Session completion update failed", "sessionId", id, "error", err)
		return
	}
	s.deps.Logger.Info("Export completed", "sessionId", id, "artifact", artifact)
}

func (s *Service) finishCancelled(id string) {
	_, err := s.deps.Sessions.Update(context.Background(), id, func(sess *core.ExportSession) error {
		sess.Status = core.StatusCancelled
		sess.Message = "export cancelled"
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Session cancel update failed", "sessionId", id, "error", err)
		return
	}
	s.deps.Logger.Info("Export cancelled", "sessionId", id)
}

func (s *Service) finishFailed(id string, cause error) {
	_, err := s.deps.Sessions.Update(context.Background(), id, func(sess *core.ExportSession) error {
		sess.Status = core.StatusFailed
		sess.Message = "export failed"
		sess.Error = cause.Error()
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Session failure update failed", "sessionId", id, "error", err)
		return
	}
	s.deps.Logger.Error("Export failed", "sessionId", id, "error", cause)
}
