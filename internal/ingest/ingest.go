// Package ingest tracks live transport stream publishers, whether they
// push over SRT or WebSocket, and hands each publisher's bytes to a
// playback session.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrKeyInUse is returned by Register when a publisher already holds the key.
var ErrKeyInUse = errors.New("ingest: stream key in use")

// Transport identifies how a publisher delivers its stream.
type Transport int

// Supported transports.
const (
	TransportSRT Transport = iota
	TransportWebSocket
)

func (t Transport) String() string {
	switch t {
	case TransportSRT:
		return "srt"
	case TransportWebSocket:
		return "websocket"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// Stats captures connection-level counters for a publisher.
type Stats struct {
	Key           string `json:"key"`
	Transport     string `json:"transport"`
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Publisher is one active ingest connection. Bytes written to it come out
// of the reader handed to the registry's onPublish callback.
type Publisher struct {
	Key       string
	ID        uuid.UUID
	StartedAt time.Time
	Transport Transport

	input *io.PipeReader
	pw    *io.PipeWriter
	done  chan struct{}

	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
}

// Write forwards one network read to the session and counts it. It blocks
// until the session has consumed the bytes.
func (p *Publisher) Write(b []byte) (int, error) {
	p.bytesReceived.Add(int64(len(b)))
	p.readCount.Add(1)
	return p.pw.Write(b)
}

// SetRemoteAddr stores the remote address for diagnostics.
func (p *Publisher) SetRemoteAddr(addr string) {
	p.remoteAddr.Store(addr)
}

// Done is closed when the publisher is unregistered.
func (p *Publisher) Done() <-chan struct{} { return p.done }

// Stats returns a snapshot of the publisher's counters.
func (p *Publisher) Stats() Stats {
	addr, _ := p.remoteAddr.Load().(string)
	return Stats{
		Key:           p.Key,
		Transport:     p.Transport.String(),
		BytesReceived: p.bytesReceived.Load(),
		ReadCount:     p.readCount.Load(),
		ConnectedAt:   p.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(p.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

// Registry tracks publishers by stream key. It is the rendezvous point
// between the network listeners and the playback sessions.
type Registry struct {
	log        *slog.Logger
	mu         sync.RWMutex
	publishers map[string]*Publisher

	onPublish func(key string, input io.Reader)
}

// NewRegistry creates a Registry. onPublish runs in its own goroutine for
// every new publisher and should read input until EOF. If log is nil,
// slog.Default() is used.
func NewRegistry(onPublish func(key string, input io.Reader), log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:        log.With("component", "ingest"),
		publishers: make(map[string]*Publisher),
		onPublish:  onPublish,
	}
}

// Register adds a publisher under key. An empty key gets a generated one.
func (r *Registry) Register(key string, t Transport) (*Publisher, error) {
	id := uuid.New()
	if key == "" {
		key = "anon-" + strings.SplitN(id.String(), "-", 2)[0]
	}

	pr, pw := io.Pipe()
	p := &Publisher{
		Key:       key,
		ID:        id,
		StartedAt: time.Now(),
		Transport: t,
		input:     pr,
		pw:        pw,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if _, ok := r.publishers[key]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrKeyInUse, key)
	}
	r.publishers[key] = p
	r.mu.Unlock()

	r.log.Info("publisher registered", "key", key, "id", id, "transport", t)
	if r.onPublish != nil {
		go r.onPublish(key, pr)
	}
	return p, nil
}

// Unregister removes the publisher for key, closing its stream so the
// session reading it sees EOF.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	p, ok := r.publishers[key]
	if ok {
		delete(r.publishers, key)
	}
	r.mu.Unlock()

	if ok {
		p.pw.Close()
		close(p.done)
		r.log.Info("publisher unregistered", "key", key)
	}
}

// Get returns the publisher for key.
func (r *Registry) Get(key string) (*Publisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[key]
	return p, ok
}

// List returns the stats of every publisher, ordered by key.
func (r *Registry) List() []Stats {
	r.mu.RLock()
	out := make([]Stats, 0, len(r.publishers))
	for _, p := range r.publishers {
		out = append(out, p.Stats())
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Stats) int { return strings.Compare(a.Key, b.Key) })
	return out
}
