package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if c.VideoBufferSize != 512*1024 || c.AudioBufferSize != 128*1024 {
		t.Errorf("buffer sizes = %d/%d", c.VideoBufferSize, c.AudioBufferSize)
	}
	if c.MP2Resync || c.MP2().Resync {
		t.Error("MP2 resync enabled by default")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`
videoBufferSize: 2M
audioBufferSize: 64K
streaming: true
maxAudioLag: 400ms
backend: passthrough
guessVideoFrameEnd: false
srtAddr: ":7000"
srtPulls:
  - address: 10.0.0.5:6000
    streamKey: studio
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if c.VideoBufferSize != 2*1024*1024 {
		t.Errorf("VideoBufferSize = %d", c.VideoBufferSize)
	}
	if c.AudioBufferSize != 64*1024 {
		t.Errorf("AudioBufferSize = %d", c.AudioBufferSize)
	}
	if !c.Streaming {
		t.Error("Streaming = false")
	}
	if time.Duration(c.MaxAudioLag) != 400*time.Millisecond {
		t.Errorf("MaxAudioLag = %v", c.MaxAudioLag)
	}
	if c.Backend != BackendPassthrough {
		t.Errorf("Backend = %q", c.Backend)
	}
	if c.GuessVideoFrameEnd {
		t.Error("GuessVideoFrameEnd = true")
	}
	if c.SRTAddr != ":7000" {
		t.Errorf("SRTAddr = %q", c.SRTAddr)
	}
	// Untouched keys keep their defaults.
	if c.WSAddr != ":8080" || !c.Video || c.MP2Resync {
		t.Errorf("defaults lost: %+v", c)
	}
	if len(c.SRTPulls) != 1 || c.SRTPulls[0].StreamKey != "studio" {
		t.Errorf("SRTPulls = %+v", c.SRTPulls)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown key", yaml: "bogus: 1\n", want: "bogus"},
		{name: "bad size", yaml: "chunkSize: lots\n", want: "invalid size"},
		{name: "bad duration", yaml: "maxAudioLag: soon\n", want: "invalid duration"},
		{name: "bad backend", yaml: "backend: gpu\n", want: "unknown backend"},
		{name: "nothing enabled", yaml: "video: false\naudio: false\n", want: "at least one"},
		{name: "zero lag", yaml: "maxAudioLag: 0s\n", want: "maxAudioLag"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	c, err := Load("")
	if err != nil || !reflect.DeepEqual(c, Default()) {
		t.Fatalf("Load(\"\") = %+v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "tsplay.yml")
	if err := os.WriteFile(path, []byte("loop: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Loop {
		t.Error("Loop = false")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Load succeeded for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"TSPLAY_SRT_ADDR":          ":9000",
		"TSPLAY_STREAMING":         "true",
		"TSPLAY_AUDIO":             "false",
		"TSPLAY_CHUNK_SIZE":        "256K",
		"TSPLAY_MAX_AUDIO_LAG":     "1s",
		"TSPLAY_VIDEO_BUFFER_SIZE": "1M",
	}
	c := Default()
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if c.SRTAddr != ":9000" || !c.Streaming || c.Audio {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.ChunkSize != 256*1024 || c.VideoBufferSize != 1024*1024 {
		t.Errorf("sizes = %d/%d", c.ChunkSize, c.VideoBufferSize)
	}
	if time.Duration(c.MaxAudioLag) != time.Second {
		t.Errorf("MaxAudioLag = %v", c.MaxAudioLag)
	}
	if c.WSAddr != ":8080" {
		t.Errorf("WSAddr changed to %q", c.WSAddr)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"TSPLAY_LOOP":          "maybe",
		"TSPLAY_CHUNK_SIZE":    "big",
		"TSPLAY_MAX_AUDIO_LAG": "later",
		"TSPLAY_BACKEND":       "magic",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			t.Parallel()
			c := Default()
			err := c.ApplyEnv(func(key string) string {
				if key == k {
					return v
				}
				return ""
			})
			if err == nil {
				t.Errorf("%s=%s accepted", k, v)
			}
		})
	}
}

func TestComponentConfigs(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Streaming = true
	c.MP2Resync = false
	c.Loop = true
	c.DecodeFirstFrame = false

	v := c.MPEG1()
	if v.BufferSize != 512*1024 || !v.Streaming || v.DecodeFirstFrame {
		t.Errorf("MPEG1() = %+v", v)
	}
	a := c.MP2()
	if a.BufferSize != 128*1024 || !a.Streaming || a.Resync {
		t.Errorf("MP2() = %+v", a)
	}
	p := c.Player()
	if !p.Streaming || !p.Loop || p.DecodeFirstFrame || p.MaxAudioLag != 250*time.Millisecond {
		t.Errorf("Player() = %+v", p)
	}
	if len(c.DemuxerOpts()) != 1 {
		t.Error("DemuxerOpts empty")
	}
}

func TestSizeString(t *testing.T) {
	t.Parallel()
	if got := Size(1024 * 1024).String(); got != "1M" {
		t.Errorf("String() = %q, want 1M", got)
	}
}
