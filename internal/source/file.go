// Package source feeds transport stream bytes to a player: chunked reads
// of a static file, or binary messages from a WebSocket server.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FileConfig holds File options.
type FileConfig struct {
	// ChunkSize is the number of bytes read per load. Zero means 1 MiB.
	ChunkSize int
	// Progressive loads one chunk at a time, waiting for the player to
	// run low on buffered data before loading the next.
	Progressive bool
	Logger      *slog.Logger
}

const defaultChunkSize = 1 << 20

// File loads a transport stream file into a player.
type File struct {
	path string
	dst  io.Writer
	cfg  FileConfig
	log  *slog.Logger

	resume    chan struct{}
	completed atomic.Bool
	loaded    atomic.Int64
	size      atomic.Int64

	mu       sync.Mutex
	loadTime time.Duration
}

// NewFile returns a File that writes the contents of path to dst.
func NewFile(path string, dst io.Writer, cfg FileConfig) *File {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &File{
		path:   path,
		dst:    dst,
		cfg:    cfg,
		log:    cfg.Logger.With("component", "file-source", "path", path),
		resume: make(chan struct{}, 1),
	}
}

// Run loads the file until it is exhausted or ctx is done.
func (f *File) Run(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil {
		f.size.Store(info.Size())
	}

	buf := make([]byte, f.cfg.ChunkSize)
	for {
		start := time.Now()
		n, err := io.ReadFull(file, buf)
		if n > 0 {
			if _, werr := f.dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing chunk: %w", werr)
			}
			f.loaded.Add(int64(n))
		}
		f.mu.Lock()
		f.loadTime = time.Since(start)
		f.mu.Unlock()

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			f.completed.Store(true)
			f.log.Debug("loaded", "bytes", f.loaded.Load())
			return nil
		case err != nil:
			return fmt.Errorf("reading source: %w", err)
		}

		if !f.cfg.Progressive {
			continue
		}
		select {
		case <-f.resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Resume loads the next chunk of a progressive file when playback has
// less headroom than a pessimistic estimate of the next load's duration.
func (f *File) Resume(headroom float64) {
	if !f.cfg.Progressive || f.completed.Load() {
		return
	}
	f.mu.Lock()
	worstCase := f.loadTime.Seconds()*8 + 2
	f.mu.Unlock()
	if worstCase <= headroom {
		return
	}
	select {
	case f.resume <- struct{}{}:
	default:
	}
}

// Completed reports whether the whole file has been written.
func (f *File) Completed() bool { return f.completed.Load() }

// Progress returns the fraction of the file loaded so far.
func (f *File) Progress() float64 {
	size := f.size.Load()
	if size == 0 {
		return 0
	}
	return float64(f.loaded.Load()) / float64(size)
}
