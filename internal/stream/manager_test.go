package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zsiec/tsplay/internal/mpegts"
	"github.com/zsiec/tsplay/internal/player"
)

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(closer io.Closer) *Manager {
	return NewManager(func(string) (*player.Player, io.Closer, error) {
		cfg := player.DefaultConfig()
		cfg.Streaming = true
		cfg.TickInterval = time.Millisecond
		cfg.Logger = quietLogger()
		demux := mpegts.NewDemuxer(mpegts.DemuxerOptLogger(quietLogger()))
		return player.New(demux, nil, nil, cfg), closer, nil
	}, quietLogger())
}

// nullPackets returns n transport stream packets on the null PID.
func nullPackets(n int) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = 0x1F
	pkt[2] = 0xFF
	pkt[3] = 0x10
	return bytes.Repeat(pkt, n)
}

func TestManagerCreateAndGet(t *testing.T) {
	t.Parallel()
	m := newTestManager(nil)

	s, ok, err := m.Create("cam1")
	if err != nil || !ok {
		t.Fatalf("Create = %v, %v", ok, err)
	}
	if s.Key != "cam1" {
		t.Errorf("key: got %q, want %q", s.Key, "cam1")
	}
	if s.StartedAt.IsZero() {
		t.Error("StartedAt should not be zero")
	}
	if s.Player == nil {
		t.Fatal("session has no player")
	}

	got, ok := m.Get("cam1")
	if !ok || got != s {
		t.Error("Get should return the created session")
	}
}

func TestManagerCreateDuplicate(t *testing.T) {
	t.Parallel()
	m := newTestManager(nil)

	if _, ok, _ := m.Create("cam1"); !ok {
		t.Fatal("first Create should succeed")
	}
	s2, ok, err := m.Create("cam1")
	if ok || err != nil {
		t.Errorf("duplicate Create = %v, %v; want false, nil", ok, err)
	}
	if s2 != nil {
		t.Error("duplicate Create should return nil session")
	}
}

func TestManagerFactoryError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	m := NewManager(func(string) (*player.Player, io.Closer, error) {
		return nil, nil, boom
	}, quietLogger())

	if _, _, err := m.Create("cam1"); !errors.Is(err, boom) {
		t.Fatalf("Create = %v, want wrapped factory error", err)
	}
	if len(m.List()) != 0 {
		t.Error("failed Create left a session behind")
	}
}

func TestManagerRemove(t *testing.T) {
	t.Parallel()
	closer := &countingCloser{}
	m := newTestManager(closer)

	s, _, _ := m.Create("cam1")
	m.Remove("cam1")

	if len(m.List()) != 0 {
		t.Errorf("count after remove: got %d, want 0", len(m.List()))
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after Remove")
	}
	if closer.n.Load() != 1 {
		t.Errorf("closer called %d times, want 1", closer.n.Load())
	}

	m.Remove("cam1")
	if closer.n.Load() != 1 {
		t.Error("second Remove closed the output again")
	}
}

func TestManagerList(t *testing.T) {
	t.Parallel()
	m := newTestManager(nil)

	for _, k := range []string{"c", "a", "b"} {
		m.Create(k)
	}
	sessions := m.List()
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i, want := range []string{"a", "b", "c"} {
		if sessions[i].Key != want {
			t.Errorf("List[%d] = %q, want %q", i, sessions[i].Key, want)
		}
	}
}

func TestManagerServeEndsWithInput(t *testing.T) {
	t.Parallel()
	closer := &countingCloser{}
	m := newTestManager(closer)

	done := make(chan error, 1)
	go func() {
		done <- m.Serve(context.Background(), "cam1", bytes.NewReader(nullPackets(10)))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after input ended")
	}
	if _, ok := m.Get("cam1"); ok {
		t.Error("session still present after Serve returned")
	}
	if closer.n.Load() != 1 {
		t.Errorf("closer called %d times, want 1", closer.n.Load())
	}
}

func TestManagerServeStopsWithContext(t *testing.T) {
	t.Parallel()
	m := newTestManager(nil)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "cam1", pr) }()

	if _, err := pw.Write(nullPackets(2)); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestManagerServeDuplicate(t *testing.T) {
	t.Parallel()
	m := newTestManager(nil)
	m.Create("cam1")

	if err := m.Serve(context.Background(), "cam1", bytes.NewReader(nil)); err == nil {
		t.Fatal("Serve accepted a key with an active session")
	}
}
