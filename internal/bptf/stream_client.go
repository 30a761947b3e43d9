package bptf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamClosed is reported by Err after Close was called.
var ErrStreamClosed = errors.New("stream closed")

// StreamConfig configures event stream client behavior.
type StreamConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the stream may stay silent (no data, no pong).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// BufferSize is the capacity of the message channel.
	BufferSize int
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		BufferSize:       1000,
	}
}

// StreamClient reads the marketplace event stream over one WebSocket
// connection. It does not reconnect: when the connection drops the message
// channel is closed and Err reports why.
type StreamClient struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	messages chan Message

	errMu sync.Mutex
	err   error

	done chan struct{}
	wg   sync.WaitGroup
}

// DialStream connects to the event stream endpoint.
func DialStream(ctx context.Context, endpoint string, config *StreamConfig) (*StreamClient, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &StreamClient{
		endpoint: endpoint,
		config:   cfg,
		conn:     conn,
		messages: make(chan Message, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Messages returns the channel of received text frames. It is closed when
// the connection is lost or the client is closed.
func (c *StreamClient) Messages() <-chan Message {
	return c.messages
}

// Err returns the reason the message channel was closed, or nil while open.
func (c *StreamClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the WebSocket connection.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	err := c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()
	return err
}

func (c *StreamClient) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// readLoop forwards text frames to the messages channel until the
// connection fails.
func (c *StreamClient) readLoop() {
	defer c.wg.Done()
	defer close(c.messages)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.setErr(ErrStreamClosed)
			} else {
				c.setErr(fmt.Errorf("websocket read: %w", err))
			}
			return
		}

		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		// Block until consumed - never drop events
		select {
		case c.messages <- Message{Data: data, ReceivedAt: time.Now()}:
		case <-c.done:
			c.setErr(ErrStreamClosed)
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *StreamClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			// A failed ping surfaces as a read error in readLoop.
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.connMu.Unlock()
		}
	}
}
