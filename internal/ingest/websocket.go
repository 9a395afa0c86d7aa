package ingest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	pingInterval = 30 * time.Second
	pingTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// WebSocketHandler accepts publishers that push a transport stream as
// binary WebSocket messages. The stream key is the last path segment, so
// the handler is typically mounted at "/publish/".
type WebSocketHandler struct {
	log      *slog.Logger
	registry *Registry
	upgrader websocket.Upgrader
}

// NewWebSocketHandler returns a handler registering publishers with
// registry. If log is nil, slog.Default() is used.
func NewWebSocketHandler(registry *Registry, log *slog.Logger) *WebSocketHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketHandler{
		log:      log.With("component", "ws-ingest"),
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	key := streamKeyFromPath(req.URL.Path)
	if key != "" {
		if _, busy := h.registry.Get(key); busy {
			http.Error(w, "stream key in use", http.StatusConflict)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.log.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	pub, err := h.registry.Register(key, TransportWebSocket)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		return
	}
	pub.SetRemoteAddr(conn.RemoteAddr().String())
	h.log.Info("publish", "stream_key", pub.Key, "remote", conn.RemoteAddr())

	terminate := make(chan struct{})
	defer close(terminate)
	go pinger(conn, terminate)

	_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	})

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read error", "stream_key", pub.Key, "error", err)
			}
			break
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if _, err := pub.Write(data); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				h.log.Debug("session write error", "stream_key", pub.Key, "error", err)
			}
			break
		}
	}

	stats := pub.Stats()
	h.registry.Unregister(pub.Key)
	h.log.Info("connection closed", "stream_key", pub.Key,
		"bytes", stats.BytesReceived, "reads", stats.ReadCount,
		"uptime_ms", stats.UptimeMs)
}

func pinger(conn *websocket.Conn, terminate <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		case <-terminate:
			return
		}
	}
}

func streamKeyFromPath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if path == "publish" {
		return ""
	}
	return path
}
