package output

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/zsiec/tsplay/internal/decoder"
)

// PCM writes audio as interleaved stereo 32 bit float little-endian
// samples. With a clock it also models a real-time device: audio counts as
// enqueued until the clock has run past it, which is what paces the
// player. Without a clock nothing is ever enqueued and audio is written as
// fast as it decodes.
type PCM struct {
	w     io.Writer
	clock decoder.Clock

	sampleRate int
	endTime    float64
	samples    int64
	buf        []byte
	err        error
}

// NewPCM returns a PCM writer. clock may be nil.
func NewPCM(w io.Writer, clock decoder.Clock) *PCM {
	return &PCM{w: w, clock: clock}
}

// Play writes one block of samples.
func (p *PCM) Play(sampleRate int, left, right []float32) {
	p.sampleRate = sampleRate
	if p.clock != nil {
		now := p.clock.Now()
		if p.endTime < now {
			p.endTime = now
		}
		p.endTime += float64(len(left)) / float64(sampleRate)
	}
	if p.err != nil {
		return
	}

	p.buf = p.buf[:0]
	for i := range left {
		p.buf = binary.LittleEndian.AppendUint32(p.buf, math.Float32bits(left[i]))
		p.buf = binary.LittleEndian.AppendUint32(p.buf, math.Float32bits(right[i]))
	}
	if _, p.err = p.w.Write(p.buf); p.err == nil {
		p.samples += int64(len(left))
	}
}

// EnqueuedTime returns the seconds of written audio the modelled device
// has not played yet.
func (p *PCM) EnqueuedTime() float64 {
	if p.clock == nil {
		return 0
	}
	return max(0, p.endTime-p.clock.Now())
}

// ResetEnqueuedTime forgets queued audio, as after a seek.
func (p *PCM) ResetEnqueuedTime() { p.endTime = 0 }

// SampleRate returns the sample rate of the last block.
func (p *PCM) SampleRate() int { return p.sampleRate }

// Samples returns the number of sample frames written per channel.
func (p *PCM) Samples() int64 { return p.samples }

// Err returns the first write error.
func (p *PCM) Err() error { return p.err }
