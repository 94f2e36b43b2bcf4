package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// BucketStatus is the bucket holding periodic studio status samples.
const BucketStatus = "surface_performance"

// PointSink receives telemetry points. Satisfied by Manager.
type PointSink interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// MonitorDependencies holds all dependencies for the monitor service.
type MonitorDependencies struct {
	Sessions session.Store
	Sink     PointSink
	Logger   *slog.Logger
	Interval time.Duration
}

// Monitor periodically samples the session store and ships throughput
// status points.
type Monitor struct {
	deps      MonitorDependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewMonitor creates a new status monitor.
func NewMonitor(deps MonitorDependencies) *Monitor {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Monitor{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// StatusPoint builds one status sample over the current session set.
func StatusPoint(sessions []*core.ExportSession) *influxdb2_write.Point {
	counts := map[core.Status]int{}
	captured := 0
	for _, s := range sessions {
		counts[s.Status]++
		if !s.Status.Terminal() {
			captured += len(s.Frames)
		}
	}

	active := 0
	for status, n := range counts {
		if !status.Terminal() {
			active += n
		}
	}

	return influxdb2_write.NewPointWithMeasurement("studio_status").
		AddField("activeSessions", active).
		AddField("rendering", counts[core.StatusRendering]).
		AddField("encoding", counts[core.StatusEncoding]).
		AddField("completed", counts[core.StatusCompleted]).
		AddField("failed", counts[core.StatusFailed]).
		AddField("cancelled", counts[core.StatusCancelled]).
		AddField("inflightFrames", captured).
		SetTime(time.Now())
}

// Start starts the status monitor goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.isRunning = false
			m.mu.Unlock()
		}()

		m.deps.Logger.Debug("Starting status monitor goroutine")

		ticker := time.NewTicker(m.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()

	return nil
}

func (m *Monitor) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), m.deps.Interval)
	defer cancel()

	sessions, err := m.deps.Sessions.List(ctx)
	if err != nil {
		m.deps.Logger.Warn("Status sample failed", "error", err)
		return
	}

	if err := m.deps.Sink.WritePoint(ctx, BucketStatus, StatusPoint(sessions)); err != nil {
		m.deps.Logger.Warn("Status point write failed", "error", err)
	}
}

// Stop stops the status monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		close(m.stopChan)
	}
}
