package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/Uni298/OSMStudio/pkg/streaming"
)

const (
	sendChSize    = 256
	ackChSize     = 16
	settledChSize = 16
	frameChSize   = 4
	writeWait     = 10 * time.Second
	ackTimeout    = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
// The read loop routes surface messages to typed channels.
type connection struct {
	mu        sync.Mutex
	conn      *ws.Conn
	sendCh    chan []byte
	ackCh     chan streaming.AckMessage
	settledCh chan struct{}
	frameCh   chan []byte
	errCh     chan streaming.ErrorPayload
	done      chan struct{} // closed on shutdown
	closed    bool

	wsURL string

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:    make(chan []byte, sendChSize),
		ackCh:     make(chan streaming.AckMessage, ackChSize),
		settledCh: make(chan struct{}, settledChSize),
		frameCh:   make(chan []byte, frameChSize),
		errCh:     make(chan streaming.ErrorPayload, 1),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// dial connects to the bridge server and starts read/write loops. Every
// connection gets its own isolated surface instance, requested with the
// instance query param.
func (c *connection) dial(rawURL string, instance int) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("instance", fmt.Sprintf("%d", instance))
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.wsURL = rawURL
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				return
			}
		}
	}
}

// readLoop reads surface messages and routes them by type.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Unparseable surface message", "raw", string(message))
			continue
		}

		switch env.Type {
		case "ack":
			var ack streaming.AckMessage
			if err := json.Unmarshal(message, &ack); err != nil {
				continue
			}
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		case streaming.TypeSettled:
			select {
			case c.settledCh <- struct{}{}:
			default:
			}
		case streaming.TypeFrame:
			var frame streaming.FramePayload
			if err := json.Unmarshal(env.Payload, &frame); err != nil {
				c.logger.Warn("Bad frame payload", "error", err)
				continue
			}
			select {
			case c.frameCh <- frame.Image:
			default:
				c.logger.Debug("Frame channel full, dropping frame")
			}
		case streaming.TypeError:
			var surfErr streaming.ErrorPayload
			if err := json.Unmarshal(env.Payload, &surfErr); err != nil {
				continue
			}
			select {
			case c.errCh <- surfErr:
			default:
			}
		default:
			c.logger.Debug("Unknown surface message type", "type", env.Type)
		}
	}
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the surface acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return ErrSurfaceClosed
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
