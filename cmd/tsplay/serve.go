package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/tsplay/internal/certs"
	"github.com/zsiec/tsplay/internal/config"
	"github.com/zsiec/tsplay/internal/decoder"
	"github.com/zsiec/tsplay/internal/ingest"
	srtingest "github.com/zsiec/tsplay/internal/ingest/srt"
	"github.com/zsiec/tsplay/internal/output"
	"github.com/zsiec/tsplay/internal/player"
	"github.com/zsiec/tsplay/internal/stream"
)

type serveCmd struct {
	SRTAddr string `help:"SRT listen address." name:"srt-addr"`
	WSAddr  string `help:"HTTP address for WebSocket publishing and the stream list." name:"ws-addr"`
	OutDir  string `help:"Write a frame dump per session into this directory." name:"out-dir" type:"path"`

	TLS      bool     `help:"Serve HTTP and WebSocket publishing over TLS with a self-signed certificate." name:"tls"`
	TLSHosts []string `help:"Host names and addresses the certificate covers." name:"tls-host"`
}

func (c *serveCmd) run(ctx context.Context, cfg config.Config) error {
	if c.SRTAddr != "" {
		cfg.SRTAddr = c.SRTAddr
	}
	if c.WSAddr != "" {
		cfg.WSAddr = c.WSAddr
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	cfg.Streaming = true
	cfg.MP2Resync = true
	if c.OutDir != "" {
		if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	var cert *certs.CertInfo
	if c.TLS {
		var err error
		if cert, err = certs.Generate(0, c.TLSHosts...); err != nil {
			return fmt.Errorf("generating certificate: %w", err)
		}
		slog.Info("certificate generated",
			"pinned_pubkey", cert.PinnedPublicKey(),
			"expires", cert.NotAfter.Format(time.RFC3339),
		)
	}

	slog.Info("tsplay serving",
		"version", version,
		"srt", cfg.SRTAddr,
		"http", cfg.WSAddr,
		"tls", c.TLS,
		"out_dir", c.OutDir,
	)

	a := &app{cfg: cfg, outDir: c.OutDir}
	a.mgr = stream.NewManager(a.newPlayer, nil)

	g, ctx := errgroup.WithContext(ctx)

	// Created after the errgroup so sessions stop when any component fails.
	a.registry = ingest.NewRegistry(func(key string, input io.Reader) {
		if err := a.mgr.Serve(ctx, key, input); err != nil {
			slog.Warn("session failed", "key", key, "error", err)
			// Keep the publisher from blocking on an unread pipe.
			_, _ = io.Copy(io.Discard, input)
		}
	}, nil)
	a.srtCaller = srtingest.NewCaller(a.registry, nil)
	srtSrv := srtingest.NewServer(cfg.SRTAddr, a.registry, nil)

	mux := http.NewServeMux()
	mux.Handle("/publish/", ingest.NewWebSocketHandler(a.registry, nil))
	mux.HandleFunc("GET /streams", a.listStreams)
	httpSrv := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cert != nil {
		httpSrv.TLSConfig = cert.TLSConfig()
	}

	g.Go(func() error {
		return srtSrv.Start(ctx)
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", cfg.WSAddr)
		var err error
		if cert != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	for _, req := range cfg.SRTPulls {
		g.Go(func() error {
			if err := a.srtCaller.Pull(ctx, req); err != nil {
				slog.Warn("SRT pull failed", "address", req.Address, "stream_key", req.StreamKey, "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

type app struct {
	cfg       config.Config
	outDir    string
	mgr       *stream.Manager
	registry  *ingest.Registry
	srtCaller *srtingest.Caller
}

// newPlayer builds a streaming player for one published stream, writing a
// frame dump when an output directory is configured.
func (a *app) newPlayer(key string) (*player.Player, io.Closer, error) {
	log := slog.Default().With("stream", key)
	clock := decoder.WallClock()

	var out sinks
	var files closers
	if a.outDir != "" {
		name := strings.NewReplacer("/", "_", "\\", "_").Replace(key) + ".tsdump"
		f, err := createOutput(filepath.Join(a.outDir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("creating frame dump: %w", err)
		}
		files = append(files, f)
		out.dump = f
	}
	out.audio = append(out.audio, output.NewPCM(io.Discard, clock))

	pcfg := a.cfg.Player()
	pcfg.Clock = clock
	s := newSession(a.cfg, out, pcfg, log)
	return s.player, files, nil
}

type streamInfo struct {
	Key       string        `json:"key"`
	SessionID string        `json:"sessionId"`
	UptimeMs  int64         `json:"uptimeMs"`
	Packets   int64         `json:"packets"`
	Resyncs   int64         `json:"resyncs"`
	Ingest    *ingest.Stats `json:"ingest,omitempty"`
}

func (a *app) listStreams(w http.ResponseWriter, _ *http.Request) {
	sessions := a.mgr.List()
	infos := make([]streamInfo, len(sessions))
	for i, s := range sessions {
		stats := s.Player.Stats()
		infos[i] = streamInfo{
			Key:       s.Key,
			SessionID: s.ID.String(),
			UptimeMs:  time.Since(s.StartedAt).Milliseconds(),
			Packets:   stats.Packets,
			Resyncs:   stats.Resyncs,
		}
		if pub, ok := a.registry.Get(s.Key); ok {
			st := pub.Stats()
			infos[i].Ingest = &st
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		slog.Debug("writing stream list", "error", err)
	}
}
