package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/internal/encode"
	"github.com/Uni298/OSMStudio/internal/framestore"
	"github.com/Uni298/OSMStudio/internal/keyframe"
	"github.com/Uni298/OSMStudio/internal/queue"
	"github.com/Uni298/OSMStudio/internal/render"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/internal/util"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// CoordinatorDeps holds all dependencies for the parallel pipeline.
type CoordinatorDeps struct {
	Arena        *render.Arena
	Encoder      encode.Encoder
	Sessions     session.Store
	Frames       *framestore.Store
	Keyframes    []core.Keyframe
	Settings     core.ExportSettings
	Config       config.ExportConfig
	ArtifactPath string
	Logger       *slog.Logger
}

// Coordinator fans capture tasks out over a pool of render surfaces. Workers
// pull tasks from a shared queue, persist captured frames to the frame
// store, and append descriptors to the session under atomic updates. The
// policy is fail fast: the first worker error cancels the group, the task
// queue is cleared, and in-flight tasks finish naturally.
type Coordinator struct {
	deps    CoordinatorDeps
	metrics instruments
}

// NewCoordinator creates a parallel pipeline.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	return &Coordinator{
		deps:    deps,
		metrics: newInstruments(),
	}
}

// Run captures all frames in parallel, then encodes them in frame order,
// and returns the artifact path.
func (c *Coordinator) Run(ctx context.Context, sessionID string) (string, error) {
	if len(c.deps.Keyframes) == 0 {
		return "", ErrNoKeyframes
	}

	tasks := BuildTasks(c.deps.Settings.Duration, c.deps.Settings.FPS)
	total := len(tasks)

	pending := queue.New[core.CaptureTask]()
	pending.Push(tasks...)

	workers := c.deps.Settings.Concurrency
	if workers <= 0 || workers > c.deps.Arena.Size() {
		workers = c.deps.Arena.Size()
	}

	c.deps.Logger.Info("Parallel capture starting",
		"sessionId", sessionID, "frames", total, "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return c.captureWorker(gctx, sessionID, pending, total)
		})
	}

	if err := g.Wait(); err != nil {
		// Stop remaining workers from dequeuing stale tasks.
		pending.Clear()
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", ErrCancelled
	}

	return c.encodeStage(ctx, sessionID)
}

// captureWorker drains the task queue, one surface checkout per task.
func (c *Coordinator) captureWorker(ctx context.Context, sessionID string, pending *queue.Queue[core.CaptureTask], total int) error {
	for {
		task, ok := pending.Pop()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.captureOne(ctx, sessionID, task, total); err != nil {
			// Fail fast: surface the first error, the errgroup cancels the rest.
			pending.Clear()
			return err
		}
	}
}

func (c *Coordinator) captureOne(ctx context.Context, sessionID string, task core.CaptureTask, total int) error {
	surface, err := c.deps.Arena.Checkout(ctx)
	if err != nil {
		return err
	}
	defer c.deps.Arena.Return(surface)

	state := keyframe.StateAt(c.deps.Keyframes, task.QueryTime)
	if err := surface.SetCameraState(ctx, state); err != nil {
		return fmt.Errorf("set camera for frame %d: %w", task.FrameIndex, err)
	}

	if err := surface.WaitSettled(ctx); err != nil {
		if !errors.Is(err, render.ErrSettleTimeout) {
			return fmt.Errorf("settle for frame %d: %w", task.FrameIndex, err)
		}
		c.metrics.settleTimeouts.Add(ctx, 1)
		c.deps.Logger.Warn("Settle timeout, capturing anyway", "sessionId", sessionID, "frame", task.FrameIndex)
	}

	if c.deps.Config.SettleDelay > 0 {
		time.Sleep(c.deps.Config.SettleDelay)
	}

	image, err := surface.CaptureImage(ctx)
	if err != nil {
		return fmt.Errorf("capture frame %d: %w", task.FrameIndex, err)
	}
	c.metrics.framesCaptured.Add(ctx, 1)

	path, err := c.deps.Frames.Write(sessionID, task.FrameIndex, image)
	if err != nil {
		return fmt.Errorf("store frame %d: %w", task.FrameIndex, err)
	}

	_, err = c.deps.Sessions.Update(ctx, sessionID, func(s *core.ExportSession) error {
		s.Status = core.StatusRendering
		s.Frames = append(s.Frames, core.FrameDescriptor{
			FrameIndex: task.FrameIndex,
			QueryTime:  task.QueryTime,
			Path:       path,
			CapturedAt: time.Now().UTC(),
		})
		s.Progress = util.Percent(len(s.Frames), total)
		s.Message = fmt.Sprintf("rendered %d of %d frames", len(s.Frames), total)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record frame %d: %w", task.FrameIndex, err)
	}
	return nil
}

// encodeStage replays stored frames in frame order through the encoder.
func (c *Coordinator) encodeStage(ctx context.Context, sessionID string) (string, error) {
	updated, err := c.deps.Sessions.Update(ctx, sessionID, func(s *core.ExportSession) error {
		s.Status = core.StatusEncoding
		s.Message = "encoding"
		return nil
	})
	if err != nil {
		return "", err
	}

	// Workers append in completion order; presentation order is by index.
	frames := make([]core.FrameDescriptor, len(updated.Frames))
	copy(frames, updated.Frames)
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].FrameIndex < frames[j].FrameIndex
	})

	if _, err := c.deps.Frames.WriteManifest(sessionID, frames); err != nil {
		return "", err
	}

	if err := c.deps.Encoder.Configure(encode.Options{
		Width:      c.deps.Settings.Width,
		Height:     c.deps.Settings.Height,
		FPS:        c.deps.Settings.FPS,
		Bitrate:    bitrateArg(c.deps.Settings.Bitrate),
		Codec:      c.deps.Settings.Codec,
		OutputPath: c.deps.ArtifactPath,
	}); err != nil {
		return "", fmt.Errorf("configure encoder: %w", err)
	}

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			_ = c.deps.Encoder.Abort()
			return "", ErrCancelled
		}

		image, err := c.deps.Frames.Read(sessionID, frame.FrameIndex)
		if err != nil {
			_ = c.deps.Encoder.Abort()
			return "", err
		}
		if err := c.deps.Encoder.SubmitFrame(image); err != nil {
			_ = c.deps.Encoder.Abort()
			return "", fmt.Errorf("submit frame %d: %w", frame.FrameIndex, err)
		}
		c.metrics.framesEncoded.Add(ctx, 1)
	}

	path, err := c.deps.Encoder.Finalize(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("finalize: %w", err)
	}
	return path, nil
}
