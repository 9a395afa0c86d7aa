// Package config loads tsplay settings from YAML and the environment and
// converts them into the per-component configurations.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v2"

	"github.com/zsiec/tsplay/internal/ingest/srt"
	"github.com/zsiec/tsplay/internal/mp2"
	"github.com/zsiec/tsplay/internal/mpeg1"
	"github.com/zsiec/tsplay/internal/mpegts"
	"github.com/zsiec/tsplay/internal/player"
)

// Size is a byte count written as a string such as "512K" or "1MiB".
type Size uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(unmarshal func(any) error) error {
	var in string
	if err := unmarshal(&in); err != nil {
		return err
	}
	return s.set(in)
}

// UnmarshalText implements encoding.TextUnmarshaler, used for CLI flags.
func (s *Size) UnmarshalText(b []byte) error { return s.set(string(b)) }

func (s *Size) set(in string) error {
	v, err := bytefmt.ToBytes(in)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", in, err)
	}
	*s = Size(v)
	return nil
}

func (s Size) String() string { return bytefmt.ByteSize(uint64(s)) }

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var in string
	if err := unmarshal(&in); err != nil {
		return err
	}
	return d.set(in)
}

func (d *Duration) set(in string) error {
	v, err := time.ParseDuration(in)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", in, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Backend selects what happens to demuxed elementary streams.
type Backend string

// Backends.
const (
	// BackendDecode decodes pictures and audio frames.
	BackendDecode Backend = "decode"
	// BackendPassthrough writes the raw access units out unchanged.
	BackendPassthrough Backend = "passthrough"
)

// Config holds all tsplay settings.
type Config struct {
	VideoBufferSize    Size     `yaml:"videoBufferSize"`
	AudioBufferSize    Size     `yaml:"audioBufferSize"`
	Streaming          bool     `yaml:"streaming"`
	DecodeFirstFrame   bool     `yaml:"decodeFirstFrame"`
	Loop               bool     `yaml:"loop"`
	MaxAudioLag        Duration `yaml:"maxAudioLag"`
	Video              bool     `yaml:"video"`
	Audio              bool     `yaml:"audio"`
	Backend            Backend  `yaml:"backend"`
	GuessVideoFrameEnd bool     `yaml:"guessVideoFrameEnd"`
	MP2Resync          bool     `yaml:"mp2Resync"`
	ChunkSize          Size     `yaml:"chunkSize"`

	SRTAddr  string            `yaml:"srtAddr"`
	WSAddr   string            `yaml:"wsAddr"`
	SRTPulls []srt.PullRequest `yaml:"srtPulls"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		VideoBufferSize:    512 * bytefmt.KILOBYTE,
		AudioBufferSize:    128 * bytefmt.KILOBYTE,
		DecodeFirstFrame:   true,
		MaxAudioLag:        Duration(250 * time.Millisecond),
		Video:              true,
		Audio:              true,
		Backend:            BackendDecode,
		GuessVideoFrameEnd: true,
		ChunkSize:          bytefmt.MEGABYTE,
		SRTAddr:            ":6000",
		WSAddr:             ":8080",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are an error.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// envPrefix is prepended to every environment override.
const envPrefix = "TSPLAY_"

// ApplyEnv overrides settings from TSPLAY_* variables looked up with
// getenv, typically os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"SRT_ADDR": &c.SRTAddr,
		"WS_ADDR":  &c.WSAddr,
	}
	for k, dst := range strs {
		if v := getenv(envPrefix + k); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"STREAMING":  &c.Streaming,
		"LOOP":       &c.Loop,
		"VIDEO":      &c.Video,
		"AUDIO":      &c.Audio,
		"MP2_RESYNC": &c.MP2Resync,
	}
	for k, dst := range bools {
		v := getenv(envPrefix + k)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, k, err)
		}
		*dst = b
	}

	sizes := map[string]*Size{
		"VIDEO_BUFFER_SIZE": &c.VideoBufferSize,
		"AUDIO_BUFFER_SIZE": &c.AudioBufferSize,
		"CHUNK_SIZE":        &c.ChunkSize,
	}
	for k, dst := range sizes {
		if v := getenv(envPrefix + k); v != "" {
			if err := dst.set(v); err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, k, err)
			}
		}
	}

	if v := getenv(envPrefix + "MAX_AUDIO_LAG"); v != "" {
		if err := c.MaxAudioLag.set(v); err != nil {
			return fmt.Errorf("%sMAX_AUDIO_LAG: %w", envPrefix, err)
		}
	}
	if v := getenv(envPrefix + "BACKEND"); v != "" {
		c.Backend = Backend(v)
	}
	return c.Validate()
}

// Validate reports settings no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.VideoBufferSize == 0 {
		errs = append(errs, errors.New("videoBufferSize must be positive"))
	}
	if c.AudioBufferSize == 0 {
		errs = append(errs, errors.New("audioBufferSize must be positive"))
	}
	if c.ChunkSize == 0 {
		errs = append(errs, errors.New("chunkSize must be positive"))
	}
	if c.MaxAudioLag <= 0 {
		errs = append(errs, errors.New("maxAudioLag must be positive"))
	}
	switch c.Backend {
	case BackendDecode, BackendPassthrough:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if !c.Video && !c.Audio {
		errs = append(errs, errors.New("at least one of video and audio must be enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// MPEG1 returns the video decoder settings.
func (c Config) MPEG1() mpeg1.Config {
	v := mpeg1.DefaultConfig()
	v.BufferSize = int(c.VideoBufferSize)
	v.Streaming = c.Streaming
	v.DecodeFirstFrame = c.DecodeFirstFrame
	return v
}

// MP2 returns the audio decoder settings.
func (c Config) MP2() mp2.Config {
	a := mp2.DefaultConfig()
	a.BufferSize = int(c.AudioBufferSize)
	a.Streaming = c.Streaming
	a.Resync = c.MP2Resync
	return a
}

// Player returns the scheduler settings.
func (c Config) Player() player.Config {
	p := player.DefaultConfig()
	p.Streaming = c.Streaming
	p.Loop = c.Loop
	p.DecodeFirstFrame = c.DecodeFirstFrame
	p.MaxAudioLag = time.Duration(c.MaxAudioLag)
	return p
}

// DemuxerOpts returns the demultiplexer options.
func (c Config) DemuxerOpts() []func(*mpegts.Demuxer) {
	return []func(*mpegts.Demuxer){
		mpegts.DemuxerOptGuessVideoFrameEnd(c.GuessVideoFrameEnd),
	}
}
