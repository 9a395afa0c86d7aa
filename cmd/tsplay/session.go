package main

import (
	"bufio"
	"io"
	"log/slog"
	"os"

	"github.com/zsiec/ccx"

	"github.com/zsiec/tsplay/internal/captions"
	"github.com/zsiec/tsplay/internal/config"
	"github.com/zsiec/tsplay/internal/decoder"
	"github.com/zsiec/tsplay/internal/mp2"
	"github.com/zsiec/tsplay/internal/mpeg1"
	"github.com/zsiec/tsplay/internal/mpegts"
	"github.com/zsiec/tsplay/internal/output"
	"github.com/zsiec/tsplay/internal/player"
)

// sinks are where a session's decoded output goes. Any field may be empty.
type sinks struct {
	video []mpeg1.Renderer
	audio []mp2.Output
	// dump receives a frame dump of pictures, audio and captions.
	dump io.Writer
}

// session is a player with its decoders and caption extraction wired up.
type session struct {
	player   *player.Player
	video    *mpeg1.Decoder
	audio    *mp2.Decoder
	captions *captions.Decoder
	dump     *output.FrameDump
}

func newSession(cfg config.Config, out sinks, pcfg player.Config, log *slog.Logger) *session {
	s := &session{}
	if out.dump != nil {
		// Sampled while decoding, so the decoders are read directly rather
		// than through the locked player.
		s.dump = output.NewFrameDump(out.dump, func() float64 {
			if s.video == nil {
				return 0
			}
			return s.video.DecodedTime()
		}, func() float64 {
			if s.audio == nil {
				return 0
			}
			return s.audio.DecodedTime()
		})
	}

	demux := mpegts.NewDemuxer(append(cfg.DemuxerOpts(), mpegts.DemuxerOptLogger(log))...)

	s.captions = captions.NewDecoder(func(f *ccx.CaptionFrame) {
		log.Debug("caption", "channel", f.Channel, "pts_us", f.PTS, "text", f.Text)
		if s.dump != nil {
			s.dump.Caption(f)
		}
	}, log)

	var video, audio decoder.Decoder
	if cfg.Video {
		renderers := out.video
		if s.dump != nil {
			renderers = append(renderers, s.dump)
		}
		vcfg := cfg.MPEG1()
		vcfg.Clock = pcfg.Clock
		vcfg.Logger = log
		vcfg.OnUserData = s.captions.UserData
		fan := &videoFanout{sinks: renderers}
		s.video = mpeg1.NewDecoder(fan, vcfg)
		fan.rate = s.video.FrameRate
		video = s.video
	}
	if cfg.Audio {
		outputs := out.audio
		if s.dump != nil {
			outputs = append(outputs, s.dump)
		}
		acfg := cfg.MP2()
		acfg.Clock = pcfg.Clock
		acfg.Logger = log
		s.audio = mp2.NewDecoder(audioFanout(outputs), acfg)
		audio = s.audio
	}

	pcfg.Logger = log
	s.player = player.New(demux, video, audio, pcfg)
	return s
}

// drain decodes everything buffered, as fast as possible.
func (s *session) drain() {
	if s.video != nil {
		for s.video.Decode() {
		}
	}
	if s.audio != nil {
		for s.audio.Decode() {
		}
	}
}

// videoFanout hands every picture to each renderer and tells renderers
// that care about the picture rate what it is.
type videoFanout struct {
	sinks []mpeg1.Renderer
	rate  func() float64
}

func (f *videoFanout) Resize(width, height int) {
	for _, r := range f.sinks {
		if fr, ok := r.(interface{ SetFrameRate(float64) }); ok && f.rate != nil {
			fr.SetFrameRate(f.rate())
		}
		r.Resize(width, height)
	}
}

func (f *videoFanout) Render(y, cb, cr []byte) {
	for _, r := range f.sinks {
		r.Render(y, cb, cr)
	}
}

// audioFanout plays every block on each output. The enqueued time is the
// largest among them, so the slowest output paces decoding.
type audioFanout []mp2.Output

func (f audioFanout) Play(sampleRate int, left, right []float32) {
	for _, o := range f {
		o.Play(sampleRate, left, right)
	}
}

func (f audioFanout) ResetEnqueuedTime() {
	for _, o := range f {
		o.ResetEnqueuedTime()
	}
}

func (f audioFanout) EnqueuedTime() float64 {
	var t float64
	for _, o := range f {
		t = max(t, o.EnqueuedTime())
	}
	return t
}

// bufferedFile is a buffered output file; "-" means stdout.
type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func createOutput(path string) (*bufferedFile, error) {
	if path == "-" {
		return &bufferedFile{Writer: bufio.NewWriterSize(os.Stdout, 1<<20)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &bufferedFile{Writer: bufio.NewWriterSize(f, 1<<20), f: f}, nil
}

func (b *bufferedFile) Close() error {
	err := b.Flush()
	if b.f != nil {
		if cerr := b.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// closers closes each element, returning the first error.
type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
