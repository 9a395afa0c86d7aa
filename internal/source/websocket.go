package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig holds WebSocket options.
type WebSocketConfig struct {
	// ReconnectInterval is the wait between connection attempts. Zero
	// means 5 seconds.
	ReconnectInterval time.Duration
	Logger            *slog.Logger
}

// WebSocket receives a live transport stream as binary WebSocket messages
// and reconnects when the connection drops. A live source never
// completes.
type WebSocket struct {
	url    string
	dst    io.Writer
	cfg    WebSocketConfig
	log    *slog.Logger
	dialer *websocket.Dialer

	established atomic.Bool
	received    atomic.Int64
}

// NewWebSocket returns a WebSocket source for url writing to dst.
func NewWebSocket(url string, dst io.Writer, cfg WebSocketConfig) *WebSocket {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebSocket{
		url:    url,
		dst:    dst,
		cfg:    cfg,
		log:    cfg.Logger.With("component", "ws-source", "url", url),
		dialer: websocket.DefaultDialer,
	}
}

// Run connects and forwards messages until ctx is done.
func (s *WebSocket) Run(ctx context.Context) error {
	for {
		if err := s.session(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("connection lost", "error", err)
		}
		s.established.Store(false)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ReconnectInterval):
		}
	}
}

func (s *WebSocket) session(ctx context.Context) error {
	conn, res, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}
	defer res.Body.Close()
	defer conn.Close()

	s.established.Store(true)
	s.log.Info("connected")

	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck
	})
	defer stop()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		s.received.Add(int64(len(data)))
		if _, err := s.dst.Write(data); err != nil {
			return fmt.Errorf("writing message: %w", err)
		}
	}
}

// Resume implements player.Source. A live source cannot be paced.
func (s *WebSocket) Resume(float64) {}

// Completed implements player.Source.
func (s *WebSocket) Completed() bool { return false }

// Established reports whether a connection is currently open.
func (s *WebSocket) Established() bool { return s.established.Load() }

// Received returns the number of payload bytes received.
func (s *WebSocket) Received() int64 { return s.received.Load() }
