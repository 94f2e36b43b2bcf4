package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Uni298/OSMStudio/internal/geo"
	"github.com/Uni298/OSMStudio/pkg/core"
	"github.com/Uni298/OSMStudio/pkg/streaming"
)

// Config holds remote surface settings.
type Config struct {
	URL           string
	Width         int
	Height        int
	SettleTimeout time.Duration
}

// Remote drives one isolated surface instance over a WebSocket bridge.
type Remote struct {
	conn *connection
	cfg  Config
}

// RemoteFactory opens Remote surfaces against a bridge server.
type RemoteFactory struct {
	cfg          Config
	logger       *slog.Logger
	nextInstance atomic.Uint64
}

// NewRemoteFactory creates a factory for the given bridge config.
func NewRemoteFactory(cfg Config, logger *slog.Logger) *RemoteFactory {
	return &RemoteFactory{cfg: cfg, logger: logger}
}

// Open dials the bridge, requests a fresh surface instance, and configures
// its viewport.
func (f *RemoteFactory) Open(ctx context.Context) (Renderer, error) {
	r := &Remote{
		conn: newConnection(f.logger),
		cfg:  f.cfg,
	}

	instance := int(f.nextInstance.Add(1))
	if err := r.conn.dial(f.cfg.URL, instance); err != nil {
		return nil, err
	}

	if err := r.configure(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// configure sets the surface viewport and waits for the ack.
func (r *Remote) configure() error {
	data, err := marshalEnvelope(streaming.TypeConfigure, streaming.ConfigurePayload{
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
	})
	if err != nil {
		return err
	}
	return r.conn.sendAndWait(data, streaming.TypeConfigure, ackTimeout)
}

// SetCameraState moves the surface camera. The web mercator projection is
// computed here so the surface stays geodesy-free.
func (r *Remote) SetCameraState(ctx context.Context, state core.CameraState) error {
	x, y, err := geo.ToMercator(state.Longitude, state.Latitude)
	if err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeSetCamera, streaming.SetCameraPayload{
		Camera:    state,
		MercatorX: x,
		MercatorY: y,
	})
	if err != nil {
		return err
	}

	select {
	case <-r.conn.done:
		return ErrSurfaceClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.conn.send(data)
	return nil
}

// WaitSettled blocks until the surface reports tile settlement.
func (r *Remote) WaitSettled(ctx context.Context) error {
	timeout := r.cfg.SettleTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.conn.settledCh:
		return nil
	case surfErr := <-r.conn.errCh:
		return fmt.Errorf("surface error while settling: %s", surfErr.Message)
	case <-timer.C:
		return ErrSettleTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-r.conn.done:
		return ErrSurfaceClosed
	}
}

// CaptureImage requests a viewport capture and returns the image bytes.
func (r *Remote) CaptureImage(ctx context.Context) ([]byte, error) {
	data, err := marshalEnvelope(streaming.TypeCapture, nil)
	if err != nil {
		return nil, err
	}
	r.conn.send(data)

	select {
	case image := <-r.conn.frameCh:
		return image, nil
	case surfErr := <-r.conn.errCh:
		return nil, fmt.Errorf("surface capture failed: %s", surfErr.Message)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.conn.done:
		return nil, ErrSurfaceClosed
	}
}

// Close shuts down the surface connection.
func (r *Remote) Close() error {
	return r.conn.close()
}
