package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/tsplay/internal/config"
	"github.com/zsiec/tsplay/internal/decoder"
	"github.com/zsiec/tsplay/internal/output"
	"github.com/zsiec/tsplay/internal/source"
)

type playCmd struct {
	Input string `arg:"" help:"Transport stream file, or a ws:// or wss:// URL for live playback."`

	Y4M  string `help:"Write pictures as YUV4MPEG2 to this file ('-' for stdout)." name:"y4m"`
	PCM  string `help:"Write audio as interleaved float32 little-endian stereo to this file." name:"pcm"`
	Dump string `help:"Write a frame dump of pictures, audio and captions to this file."`

	Fast        bool        `help:"Decode as fast as possible instead of in real time."`
	Loop        bool        `help:"Start over at the end of a file."`
	Progressive bool        `help:"Load the file chunk by chunk as playback needs it."`
	ChunkSize   config.Size `help:"File read size, such as 256K." name:"chunk-size"`
	NoVideo     bool        `help:"Do not decode video." name:"no-video"`
	NoAudio     bool        `help:"Do not decode audio." name:"no-audio"`
}

func (c *playCmd) live() bool {
	return strings.HasPrefix(c.Input, "ws://") || strings.HasPrefix(c.Input, "wss://")
}

func (c *playCmd) apply(cfg *config.Config) error {
	cfg.Loop = cfg.Loop || c.Loop
	cfg.Video = cfg.Video && !c.NoVideo
	cfg.Audio = cfg.Audio && !c.NoAudio
	if c.ChunkSize != 0 {
		cfg.ChunkSize = c.ChunkSize
	}
	if c.live() {
		if c.Fast {
			return errors.New("--fast needs a file input")
		}
		cfg.Streaming = true
		cfg.MP2Resync = true
	}
	return cfg.Validate()
}

func (c *playCmd) run(ctx context.Context, cfg config.Config) error {
	if err := c.apply(&cfg); err != nil {
		return err
	}
	log := slog.Default().With("input", c.Input)

	var clock decoder.Clock
	if !c.Fast {
		clock = decoder.WallClock()
	}

	var out sinks
	var files closers
	defer func() {
		if err := files.Close(); err != nil {
			log.Warn("closing outputs", "error", err)
		}
	}()

	var y4m *output.Y4M
	if c.Y4M != "" {
		f, err := createOutput(c.Y4M)
		if err != nil {
			return fmt.Errorf("creating y4m output: %w", err)
		}
		files = append(files, f)
		y4m = output.NewY4M(f, 0)
		out.video = append(out.video, y4m)
	}
	var pcm *output.PCM
	if c.PCM != "" {
		f, err := createOutput(c.PCM)
		if err != nil {
			return fmt.Errorf("creating pcm output: %w", err)
		}
		files = append(files, f)
		pcm = output.NewPCM(f, clock)
		out.audio = append(out.audio, pcm)
	} else if clock != nil {
		// Audio is paced by its output; stand in for a sound device.
		out.audio = append(out.audio, output.NewPCM(io.Discard, clock))
	}
	if c.Dump != "" {
		f, err := createOutput(c.Dump)
		if err != nil {
			return fmt.Errorf("creating frame dump: %w", err)
		}
		files = append(files, f)
		out.dump = f
	}

	s, err := c.play(ctx, cfg, out, clock, log)
	if err != nil {
		return err
	}
	return report(log, s, y4m, pcm)
}

// play builds the session and runs it until the input ends, playback ends
// or ctx is done.
func (c *playCmd) play(ctx context.Context, cfg config.Config, out sinks, clock decoder.Clock, log *slog.Logger) (*session, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pcfg := cfg.Player()
	pcfg.Clock = clock
	pcfg.OnEnded = func() {
		log.Info("playback ended")
		cancel()
	}
	pcfg.OnStalled = func() { log.Debug("playback stalled") }

	s := newSession(cfg, out, pcfg, log)

	if c.Fast {
		return s, c.decodeFast(s)
	}

	var src interface {
		Run(context.Context) error
		Resume(float64)
		Completed() bool
	}
	if c.live() {
		src = source.NewWebSocket(c.Input, s.player, source.WebSocketConfig{Logger: log})
	} else {
		src = source.NewFile(c.Input, s.player, source.FileConfig{
			ChunkSize:   int(cfg.ChunkSize),
			Progressive: c.Progressive,
			Logger:      log,
		})
	}
	s.player.SetSource(src)
	s.player.Play()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := src.Run(gctx); err != nil {
			return err
		}
		s.player.Flush()
		return nil
	})
	g.Go(func() error {
		return s.player.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return s, err
	}
	return s, nil
}

func (c *playCmd) decodeFast(s *session) error {
	f, err := os.Open(c.Input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(s.player, f); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	s.player.Flush()
	s.drain()
	return nil
}

// report logs what was written and returns the first sink error.
func report(log *slog.Logger, s *session, y4m *output.Y4M, pcm *output.PCM) error {
	stats := s.player.Stats()
	attrs := []any{"packets", stats.Packets, "resyncs", stats.Resyncs,
		"continuity_errors", stats.ContinuityErrors, "captions", s.captions.Frames()}
	var errs []error
	if y4m != nil {
		attrs = append(attrs, "frames", y4m.Frames())
		if err := y4m.Err(); err != nil {
			errs = append(errs, fmt.Errorf("writing y4m: %w", err))
		}
	}
	if pcm != nil {
		attrs = append(attrs, "samples", pcm.Samples())
		if err := pcm.Err(); err != nil {
			errs = append(errs, fmt.Errorf("writing pcm: %w", err))
		}
	}
	if s.dump != nil {
		attrs = append(attrs, "records", s.dump.Records())
		if err := s.dump.Err(); err != nil {
			errs = append(errs, fmt.Errorf("writing frame dump: %w", err))
		}
	}
	log.Info("done", attrs...)
	return errors.Join(errs...)
}
