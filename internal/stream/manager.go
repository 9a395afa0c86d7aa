// Package stream runs one playback session per live stream key: a
// streaming-mode player fed by the publisher's bytes and ticked until the
// publisher goes away.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/tsplay/internal/player"
)

// PlayerFactory builds the player for a new session. The returned closer,
// if any, is closed when the session ends.
type PlayerFactory func(key string) (*player.Player, io.Closer, error)

// Session is one live stream being played.
type Session struct {
	Key       string
	ID        uuid.UUID
	StartedAt time.Time
	Player    *player.Player

	closer io.Closer
	done   chan struct{}
}

// Done is closed when the session is removed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Manager manages the lifecycle of playback sessions.
type Manager struct {
	log       *slog.Logger
	newPlayer PlayerFactory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. If log is nil, slog.Default() is used.
func NewManager(newPlayer PlayerFactory, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:       log.With("component", "stream-manager"),
		newPlayer: newPlayer,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a session for key. It returns false if a session with this
// key already exists.
func (m *Manager) Create(key string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; ok {
		m.log.Warn("session already exists, rejecting duplicate", "key", key)
		return nil, false, nil
	}

	p, closer, err := m.newPlayer(key)
	if err != nil {
		return nil, false, fmt.Errorf("creating player for %q: %w", key, err)
	}

	s := &Session{
		Key:       key,
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Player:    p,
		closer:    closer,
		done:      make(chan struct{}),
	}
	m.sessions[key] = s
	m.log.Info("session created", "key", key, "id", s.ID)
	return s, true, nil
}

// Get returns the session for key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Remove ends the session for key.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			m.log.Warn("closing session output", "key", key, "error", err)
		}
	}
	close(s.done)
	m.log.Info("session removed", "key", key, "packets", s.Player.Stats().Packets)
}

// List returns all sessions ordered by key.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(sessions, func(a, b *Session) int { return strings.Compare(a.Key, b.Key) })
	return sessions
}

// Serve plays input under key until input ends or ctx is done. It is
// shaped to be the ingest registry's onPublish callback.
func (m *Manager) Serve(ctx context.Context, key string, input io.Reader) error {
	s, ok, err := m.Create(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stream: session %q already active", key)
	}
	defer m.Remove(key)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c, ok := input.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	s.Player.Play()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Player.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := io.Copy(s.Player, input)
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
