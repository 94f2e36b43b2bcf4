package session

import (
	"context"
	"log/slog"
	"time"
)

// FrameDeleter removes a session's frame storage. Satisfied by the frame
// store; kept as a small interface to avoid an import cycle.
type FrameDeleter interface {
	DeleteSession(sessionID string) error
}

// Janitor deletes terminal sessions and their frames after the retention
// window expires.
type Janitor struct {
	store     Store
	frames    FrameDeleter
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	stopChan  chan struct{}
}

// NewJanitor creates a janitor sweeping at the given interval.
func NewJanitor(store Store, frames FrameDeleter, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:     store,
		frames:    frames,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (j *Janitor) Start() {
	go j.sweepLoop()
}

// Stop terminates the sweep loop.
func (j *Janitor) Stop() {
	close(j.stopChan)
}

func (j *Janitor) sweepLoop() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.Sweep(context.Background())
		}
	}
}

// Sweep deletes every terminal session older than the retention window.
// Failures are logged and do not abort the sweep.
func (j *Janitor) Sweep(ctx context.Context) {
	sessions, err := j.store.List(ctx)
	if err != nil {
		j.logger.Error("Janitor list failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-j.retention)
	for _, s := range sessions {
		if !s.Status.Terminal() || s.UpdatedAt.After(cutoff) {
			continue
		}

		if err := j.frames.DeleteSession(s.ID); err != nil {
			j.logger.Error("Janitor frame cleanup failed", "sessionId", s.ID, "error", err)
			continue
		}
		if err := j.store.Delete(ctx, s.ID); err != nil {
			j.logger.Error("Janitor session delete failed", "sessionId", s.ID, "error", err)
			continue
		}
		j.logger.Info("Expired session removed", "sessionId", s.ID, "status", s.Status)
	}
}
