package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/zsiec/tsplay/internal/config"
)

var version = "dev"

var cli struct {
	Debug   bool             `help:"Enable debug logging." env:"DEBUG"`
	Config  string           `help:"YAML configuration file." short:"c" type:"path"`
	Version kong.VersionFlag `help:"Print the version and exit."`

	Play    playCmd    `cmd:"" help:"Decode a transport stream file or ws:// URL in real time."`
	Extract extractCmd `cmd:"" help:"Copy the elementary streams of a transport stream file."`
	Probe   probeCmd   `cmd:"" help:"Describe the programs and streams of a transport stream file."`
	Serve   serveCmd   `cmd:"" help:"Accept live streams over SRT and WebSocket and play each one."`
}

func main() {
	parser, err := kong.New(&cli,
		kong.Name("tsplay"),
		kong.Description("MPEG-TS player for MPEG-1 video and MP2 audio "+version),
		kong.UsageOnError(),
		kong.Vars{"version": version})
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	switch kctx.Command() {
	case "play <input>":
		err = cli.Play.run(ctx, cfg)
	case "extract <file>":
		err = cli.Extract.run(cfg)
	case "probe <file>":
		err = cli.Probe.run(cfg, os.Stdout)
	case "serve":
		err = cli.Serve.run(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
