package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/internal/encode"
	"github.com/Uni298/OSMStudio/internal/keyframe"
	"github.com/Uni298/OSMStudio/internal/render"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/internal/util"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// SequentialDeps holds all dependencies for the sequential pipeline.
type SequentialDeps struct {
	Renderer     render.Renderer
	Encoder      encode.Encoder
	Sessions     session.Store
	Keyframes    []core.Keyframe
	Settings     core.ExportSettings
	Config       config.ExportConfig
	ArtifactPath string
	Logger       *slog.Logger
}

// Sequential drives one render surface frame by frame and streams captures
// straight into the encoder. Encoder submissions are bounded: at most
// EncodeInflight captures sit between capture and encode at once, so a slow
// encoder applies backpressure to capture instead of buffering the whole
// clip in memory.
type Sequential struct {
	deps    SequentialDeps
	metrics instruments
}

// NewSequential creates a sequential pipeline.
func NewSequential(deps SequentialDeps) *Sequential {
	return &Sequential{
		deps:    deps,
		metrics: newInstruments(),
	}
}

// Run renders the full clip and returns the artifact path.
func (p *Sequential) Run(ctx context.Context, sessionID string) (string, error) {
	if len(p.deps.Keyframes) == 0 {
		return "", ErrNoKeyframes
	}

	tasks := BuildTasks(p.deps.Settings.Duration, p.deps.Settings.FPS)
	total := len(tasks)

	if err := p.deps.Encoder.Configure(encode.Options{
		Width:      p.deps.Settings.Width,
		Height:     p.deps.Settings.Height,
		FPS:        p.deps.Settings.FPS,
		Bitrate:    bitrateArg(p.deps.Settings.Bitrate),
		Codec:      p.deps.Settings.Codec,
		OutputPath: p.deps.ArtifactPath,
	}); err != nil {
		return "", fmt.Errorf("configure encoder: %w", err)
	}

	inflight := p.deps.Config.EncodeInflight
	if inflight <= 0 {
		inflight = 4
	}

	// The channel capacity is the in-flight bound: sends block once the
	// encoder falls more than inflight frames behind capture.
	submissions := make(chan []byte, inflight)
	encodeDone := make(chan error, 1)

	go func() {
		for image := range submissions {
			if err := p.deps.Encoder.SubmitFrame(image); err != nil {
				encodeDone <- fmt.Errorf("submit frame: %w", err)
				return
			}
			p.metrics.framesEncoded.Add(context.Background(), 1)
		}
		encodeDone <- nil
	}()

	captureErr := p.captureLoop(ctx, sessionID, tasks, submissions, encodeDone)
	close(submissions)

	encodeErr := <-encodeDone
	if captureErr != nil {
		_ = p.deps.Encoder.Abort()
		if errors.Is(captureErr, context.Canceled) {
			return "", ErrCancelled
		}
		return "", captureErr
	}
	if encodeErr != nil {
		_ = p.deps.Encoder.Abort()
		return "", encodeErr
	}

	p.deps.Logger.Info("Capture complete, finalizing encode", "sessionId", sessionID, "frames", total)
	p.reportStatus(ctx, sessionID, core.StatusEncoding, total, total)

	path, err := p.deps.Encoder.Finalize(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("finalize: %w", err)
	}
	return path, nil
}

// captureLoop walks the task list in order, capturing each frame and
// handing it to the encoder goroutine.
func (p *Sequential) captureLoop(ctx context.Context, sessionID string, tasks []core.CaptureTask, submissions chan<- []byte, encodeDone chan error) error {
	total := len(tasks)

	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		task := &tasks[i]
		task.State = core.TaskInFlight

		state := keyframe.StateAt(p.deps.Keyframes, task.QueryTime)
		if err := p.deps.Renderer.SetCameraState(ctx, state); err != nil {
			task.State = core.TaskFailed
			return fmt.Errorf("set camera for frame %d: %w", task.FrameIndex, err)
		}

		if err := p.deps.Renderer.WaitSettled(ctx); err != nil {
			if !errors.Is(err, render.ErrSettleTimeout) {
				task.State = core.TaskFailed
				return fmt.Errorf("settle for frame %d: %w", task.FrameIndex, err)
			}
			// Capture anyway; a partially loaded frame beats a dead export.
			p.metrics.settleTimeouts.Add(ctx, 1)
			p.deps.Logger.Warn("Settle timeout, capturing anyway", "sessionId", sessionID, "frame", task.FrameIndex)
		}

		if p.deps.Config.SettleDelay > 0 {
			time.Sleep(p.deps.Config.SettleDelay)
		}

		image, err := p.deps.Renderer.CaptureImage(ctx)
		if err != nil {
			task.State = core.TaskFailed
			return fmt.Errorf("capture frame %d: %w", task.FrameIndex, err)
		}
		p.metrics.framesCaptured.Add(ctx, 1)

		select {
		case submissions <- image:
		case err := <-encodeDone:
			// Encoder died mid-run; stop capturing. Re-arm the channel so
			// Run's final receive still completes.
			if err == nil {
				err = fmt.Errorf("encoder stopped unexpectedly")
			}
			encodeDone <- err
			return err
		case <-ctx.Done():
			return ctx.Err()
		}

		task.State = core.TaskDone
		p.reportProgress(ctx, sessionID, task, i+1, total)
	}
	return nil
}

func (p *Sequential) reportProgress(ctx context.Context, sessionID string, task *core.CaptureTask, done, total int) {
	_, err := p.deps.Sessions.Update(ctx, sessionID, func(s *core.ExportSession) error {
		s.Status = core.StatusRendering
		s.Progress = util.Percent(done, total)
		s.Message = fmt.Sprintf("rendered frame %d of %d", done, total)
		s.Frames = append(s.Frames, core.FrameDescriptor{
			FrameIndex: task.FrameIndex,
			QueryTime:  task.QueryTime,
			CapturedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		p.deps.Logger.Error("Progress update failed", "sessionId", sessionID, "error", err)
	}
}

func (p *Sequential) reportStatus(ctx context.Context, sessionID string, status core.Status, done, total int) {
	_, err := p.deps.Sessions.Update(ctx, sessionID, func(s *core.ExportSession) error {
		s.Status = status
		s.Progress = util.Percent(done, total)
		return nil
	})
	if err != nil {
		p.deps.Logger.Error("Status update failed", "sessionId", sessionID, "error", err)
	}
}
