// Package observe provides a synchronous subscription registry: event kind
// mapped to an ordered list of callbacks invoked inline on emit. There is no
// global event bus; each mutable component owns its own registry.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Callback receives the emitted payload.
type Callback[T any] func(T)

// Option configures subscription behavior.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging around the callback.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Registry routes emitted events to subscribed callbacks, in subscription
// order, on the emitting goroutine.
type Registry[T any] struct {
	mu        sync.RWMutex
	callbacks map[string][]Callback[T]
	logger    Logger

	emitted metric.Int64Counter
}

// New creates a Registry. Uses the global OTel meter for metrics (no-op if
// not configured). A nil logger disables the Logged option.
func New[T any](logger Logger) *Registry[T] {
	r := &Registry[T]{
		callbacks: make(map[string][]Callback[T]),
		logger:    logger,
	}

	// Counter creation on the no-op meter cannot fail in practice; an error
	// here just leaves the counter nil and emits skip recording.
	r.emitted, _ = meter().Int64Counter(
		"observe.events.emitted",
		metric.WithDescription("Total events emitted to subscribers"),
	)

	return r
}

// Subscribe appends a callback for the given event kind with optional
// configuration.
func (r *Registry[T]) Subscribe(kind string, cb Callback[T], opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logged && r.logger != nil {
		cb = r.withLogging(kind, cb)
	}

	r.mu.Lock()
	r.callbacks[kind] = append(r.callbacks[kind], cb)
	r.mu.Unlock()
}

// Emit invokes every callback subscribed to the kind, synchronously and in
// subscription order. Callbacks run on the caller's goroutine; mutating
// components must emit after releasing their own locks.
func (r *Registry[T]) Emit(kind string, event T) {
	r.mu.RLock()
	cbs := r.callbacks[kind]
	r.mu.RUnlock()

	for _, cb := range cbs {
		cb(event)
	}

	if r.emitted != nil && len(cbs) > 0 {
		r.emitted.Add(context.Background(), int64(len(cbs)),
			metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// HasSubscribers returns true if any callback is registered for the kind.
func (r *Registry[T]) HasSubscribers(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks[kind]) > 0
}

func (r *Registry[T]) withLogging(kind string, cb Callback[T]) Callback[T] {
	return func(event T) {
		start := time.Now()
		r.logger.Debug("notifying subscriber", "kind", kind)
		cb(event)
		r.logger.Debug("subscriber complete", "kind", kind, "duration", time.Since(start))
	}
}
