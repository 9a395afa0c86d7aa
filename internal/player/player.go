// Package player schedules decoding against a clock. It owns a demuxer and
// its video and audio decoders, feeds the demuxer from a source, and on
// every tick decides what to decode so that audio stays slightly ahead of
// real time and video follows audio, or the wall clock when there is no
// audio.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/tsplay/internal/decoder"
	"github.com/zsiec/tsplay/internal/mpegts"
)

// audioAhead is how far audio decoding runs ahead of the audio being heard
// when playing a static file.
const audioAhead = 0.25

// Source produces transport stream bytes for the player.
type Source interface {
	// Resume tells the source how many seconds of demuxed data are
	// buffered ahead of playback. Progressive sources load more when this
	// runs low.
	Resume(headroom float64)
	// Completed reports whether the source has delivered all its data.
	Completed() bool
}

// Config holds player options. Start from DefaultConfig.
type Config struct {
	// Streaming decodes everything as it arrives instead of pacing against
	// the clock. Decoders should then be constructed in streaming mode.
	Streaming bool
	// Loop seeks back to the start when a static source ends.
	Loop bool
	// DecodeFirstFrame shows the first picture again after Stop.
	DecodeFirstFrame bool
	// MaxAudioLag bounds how much decoded audio may wait in the output
	// while streaming.
	MaxAudioLag time.Duration
	// TickInterval is the Run loop period.
	TickInterval time.Duration

	Clock  decoder.Clock
	Logger *slog.Logger

	OnPlay    func()
	OnPause   func()
	OnEnded   func()
	OnStalled func()
}

// DefaultConfig returns the defaults for static file playback.
func DefaultConfig() Config {
	return Config{
		DecodeFirstFrame: true,
		MaxAudioLag:      250 * time.Millisecond,
		TickInterval:     time.Second / 60,
	}
}

// Player drives the decoders of one transport stream. Write may be called
// from a source goroutine while Tick or Run runs on another.
type Player struct {
	cfg   Config
	log   *slog.Logger
	clock decoder.Clock

	mu        sync.Mutex
	demux     *mpegts.Demuxer
	video     decoder.Decoder
	audio     decoder.Decoder
	source    Source
	playing   bool
	startTime float64
}

// New returns a Player for demux. Either decoder may be nil; non-nil ones
// are connected to the demuxer's video and audio stream ids.
func New(demux *mpegts.Demuxer, video, audio decoder.Decoder, cfg Config) *Player {
	if cfg.Clock == nil {
		cfg.Clock = decoder.WallClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if video != nil {
		demux.Connect(mpegts.StreamIDVideo, video)
	}
	if audio != nil {
		demux.Connect(mpegts.StreamIDAudio, audio)
	}
	return &Player{
		cfg:   cfg,
		log:   cfg.Logger.With("component", "player"),
		clock: cfg.Clock,
		demux: demux,
		video: video,
		audio: audio,
	}
}

// SetSource attaches the source that Tick reports headroom to.
func (p *Player) SetSource(s Source) {
	p.mu.Lock()
	p.source = s
	p.mu.Unlock()
}

// Write feeds transport stream bytes to the demuxer.
func (p *Player) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.demux.Write(b)
}

// Flush hands partially assembled units to the decoders. Call it once the
// source has delivered everything.
func (p *Player) Flush() {
	p.mu.Lock()
	p.demux.Flush()
	p.mu.Unlock()
}

// Stats returns the demuxer counters.
func (p *Player) Stats() mpegts.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.demux.Stats()
}

// Playing reports whether Play was called without a later Pause or Stop.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play starts or resumes playback.
func (p *Player) Play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.startTime = p.clock.Now() - p.currentTime()
	p.mu.Unlock()

	if p.cfg.OnPlay != nil {
		p.cfg.OnPlay()
	}
}

// Pause stops playback at the current position.
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.pause()
	p.mu.Unlock()

	if p.cfg.OnPause != nil {
		p.cfg.OnPause()
	}
}

func (p *Player) pause() {
	p.playing = false
	t := p.currentTime()
	p.resetAudioOutput()
	p.seek(t)
}

// outputResetter is implemented by audio decoders whose output queues
// samples ahead of what is heard.
type outputResetter interface {
	ResetOutput()
}

// resetAudioOutput drops queued audio so the audio position is the decoded
// position again.
func (p *Player) resetAudioOutput() {
	if r, ok := p.audio.(outputResetter); ok {
		r.ResetOutput()
	}
}

// Stop pauses and rewinds to the start.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stop()
	p.mu.Unlock()
}

func (p *Player) stop() {
	if p.playing {
		p.pause()
	}
	p.seek(0)
	if p.video != nil && p.cfg.DecodeFirstFrame {
		p.video.Decode()
	}
}

// Seek moves playback to t seconds from the start of the stream.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	p.seek(t)
	p.mu.Unlock()
}

// seek offsets t by the start time of the stream playback is synced to,
// so position 0 is the first access unit rather than PTS 0.
func (p *Player) seek(t float64) {
	p.resetAudioOutput()
	var offset float64
	switch {
	case p.audio != nil && p.audio.CanPlay():
		offset = p.audio.StartTime()
	case p.video != nil:
		offset = p.video.StartTime()
	}
	if p.video != nil {
		p.video.Seek(t + offset)
	}
	if p.audio != nil {
		p.audio.Seek(t + offset)
	}
	p.startTime = p.clock.Now() - t
}

// CurrentTime returns the playback position in seconds from the start of
// the stream.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTime()
}

func (p *Player) currentTime() float64 {
	switch {
	case p.audio != nil && p.audio.CanPlay():
		return p.audio.CurrentTime() - p.audio.StartTime()
	case p.video != nil:
		return p.video.CurrentTime() - p.video.StartTime()
	}
	return 0
}

type event int

const (
	eventNone event = iota
	eventEnded
	eventStalled
)

// Tick runs one scheduling step. It does nothing while paused.
func (p *Player) Tick() {
	p.mu.Lock()
	ev := eventNone
	if p.playing {
		if p.cfg.Streaming {
			p.tickStreaming()
		} else {
			ev = p.tickStatic()
		}
	}
	p.mu.Unlock()

	switch ev {
	case eventEnded:
		if p.cfg.OnEnded != nil {
			p.cfg.OnEnded()
		}
	case eventStalled:
		if p.cfg.OnStalled != nil {
			p.cfg.OnStalled()
		}
	}
}

// tickStreaming decodes one picture and as much audio as the output
// accepts.
func (p *Player) tickStreaming() {
	if p.video != nil {
		p.video.Decode()
	}
	if p.audio != nil {
		maxLag := p.cfg.MaxAudioLag.Seconds()
		for enqueued(p.audio) < maxLag && p.audio.Decode() {
		}
	}
}

// enqueued is the decoded audio not yet heard.
func enqueued(d decoder.Decoder) float64 {
	return d.DecodedTime() - d.CurrentTime()
}

func (p *Player) tickStatic() event {
	notEnoughData := false
	var headroom float64

	if p.audio != nil && p.audio.CanPlay() {
		for !notEnoughData && enqueued(p.audio) < audioAhead {
			notEnoughData = !p.audio.Decode()
		}
		if p.video != nil && p.video.CurrentTime() < p.audio.CurrentTime() {
			notEnoughData = !p.video.Decode()
		}
		headroom = p.demux.CurrentTime() - p.audio.CurrentTime()
	} else if p.video != nil {
		target := p.clock.Now() - p.startTime + p.video.StartTime()
		late := target - p.video.CurrentTime()
		frameTime := 1 / frameRate(p.video)
		if late > 0 {
			if late > frameTime*2 {
				// Too far behind to catch up frame by frame.
				p.startTime += late
			}
			notEnoughData = !p.video.Decode()
		}
		headroom = p.demux.CurrentTime() - target
	}

	if p.source != nil {
		p.source.Resume(headroom)
	}

	if !notEnoughData {
		return eventNone
	}
	if p.source != nil && p.source.Completed() {
		if p.cfg.Loop {
			p.log.Debug("looping")
			p.seek(0)
			return eventNone
		}
		p.stop()
		return eventEnded
	}
	return eventStalled
}

const defaultFrameRate = 30

func frameRate(d decoder.Decoder) float64 {
	if r, ok := d.(interface{ FrameRate() float64 }); ok && r.FrameRate() > 0 {
		return r.FrameRate()
	}
	return defaultFrameRate
}

// Run ticks every TickInterval until ctx is done.
func (p *Player) Run(ctx context.Context) error {
	t := time.NewTicker(p.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Tick()
		}
	}
}
