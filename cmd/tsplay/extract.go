package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zsiec/tsplay/internal/config"
	"github.com/zsiec/tsplay/internal/decoder"
	"github.com/zsiec/tsplay/internal/mp2"
	"github.com/zsiec/tsplay/internal/mpegts"
)

type extractCmd struct {
	File  string `arg:"" type:"existingfile" help:"Transport stream file."`
	Video string `help:"Write the MPEG-1 video elementary stream (.m1v) to this file ('-' for stdout)."`
	Audio string `help:"Write the MP2 audio elementary stream (.mp2) to this file ('-' for stdout)."`
}

func (c *extractCmd) run(cfg config.Config) error {
	if c.Video == "" && c.Audio == "" {
		return errors.New("nothing to extract: pass --video and/or --audio")
	}
	log := slog.Default().With("input", c.File)

	demux := mpegts.NewDemuxer(append(cfg.DemuxerOpts(), mpegts.DemuxerOptLogger(log))...)

	var outs closers
	var backends []*decoder.Passthrough
	add := func(path string, streamID uint8, unitDuration float64, bufferSize int) error {
		f, err := createOutput(path)
		if err != nil {
			return err
		}
		outs = append(outs, f)
		p := decoder.NewPassthrough(f, unitDuration, bufferSize)
		demux.Connect(streamID, p)
		backends = append(backends, p)
		return nil
	}
	if c.Video != "" {
		if err := add(c.Video, mpegts.StreamIDVideo, 1.0/30, int(cfg.VideoBufferSize)); err != nil {
			return fmt.Errorf("creating video output: %w", err)
		}
	}
	if c.Audio != "" {
		if err := add(c.Audio, mpegts.StreamIDAudio, mp2.SamplesPerFrame/44100.0, int(cfg.AudioBufferSize)); err != nil {
			outs.Close()
			return fmt.Errorf("creating audio output: %w", err)
		}
	}

	f, err := os.Open(c.File)
	if err != nil {
		outs.Close()
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(demux, f); err != nil {
		outs.Close()
		return fmt.Errorf("reading input: %w", err)
	}
	demux.Flush()

	units := 0
	for _, p := range backends {
		for p.Decode() {
			units++
		}
		if err := p.Err(); err != nil && !decoder.Temporary(err) {
			outs.Close()
			return err
		}
	}

	stats := demux.Stats()
	log.Info("extracted", "units", units, "packets", stats.Packets, "resyncs", stats.Resyncs)
	return outs.Close()
}
