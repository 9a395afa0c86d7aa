// Package mp2 decodes MPEG-1 Audio Layer II (ISO/IEC 11172-3) into 32 bit
// float PCM, 1152 samples per channel per frame. Mono streams are output
// on both channels.
package mp2

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsiec/tsplay/internal/decoder"
)

// SamplesPerFrame is the number of samples per channel in one frame.
const SamplesPerFrame = 1152

// Output receives decoded audio. The sample slices are reused for the
// next frame. EnqueuedTime reports how many seconds of audio the output
// holds that have not been played yet; ResetEnqueuedTime drops that queue
// when playback pauses or jumps.
type Output interface {
	Play(sampleRate int, left, right []float32)
	EnqueuedTime() float64
	ResetEnqueuedTime()
}

// Config holds decoder options. Start from DefaultConfig.
type Config struct {
	// BufferSize is the initial elementary stream buffer size in bytes.
	BufferSize int
	// Streaming evicts consumed bytes instead of keeping the whole stream
	// for seeking.
	Streaming bool
	// Resync scans forward for the next sync word when a frame header is
	// rejected. Without it the decoder stays on the bad header until the
	// caller seeks or the stream is rebuilt.
	Resync bool

	Clock    decoder.Clock
	Logger   *slog.Logger
	OnDecode func(elapsed time.Duration)
}

// DefaultConfig returns the defaults for non-streaming playback.
func DefaultConfig() Config {
	return Config{
		BufferSize: 128 * 1024,
	}
}

// Decoder is an MP2 audio decoder.
type Decoder struct {
	decoder.Base

	output   Output
	clock    decoder.Clock
	log      *slog.Logger
	resync   bool
	onDecode func(elapsed time.Duration)

	sampleRate int
	resyncs    int
	left       [SamplesPerFrame]float32
	right      [SamplesPerFrame]float32

	allocation      [2][32]*quantizer
	scaleFactorInfo [2][32]int
	scaleFactor     [2][32][3]int
	sample          [2][32][3]int

	window [1024]float32
	v      [2][1024]float32
	u      [32]int32
	vPos   int
}

// NewDecoder returns a Decoder delivering audio to out, which may be nil.
func NewDecoder(out Output, cfg Config) *Decoder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Clock == nil {
		cfg.Clock = decoder.WallClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Decoder{
		Base:     decoder.NewBase(cfg.BufferSize, cfg.Streaming),
		output:   out,
		clock:    cfg.Clock,
		log:      cfg.Logger.With("component", "mp2"),
		resync:   cfg.Resync,
		onDecode: cfg.OnDecode,
	}
	w := synthesisWindow()
	copy(d.window[:512], w[:])
	copy(d.window[512:], w[:])
	return d
}

// SampleRate returns the sample rate of the last decoded frame.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Resyncs returns how many times the decoder skipped forward to find a
// frame header.
func (d *Decoder) Resyncs() int { return d.resyncs }

// CurrentTime returns the presentation time of the audio being heard:
// the decoded time minus what the output still has queued.
func (d *Decoder) CurrentTime() float64 {
	if d.output == nil {
		return d.DecodedTime()
	}
	return d.DecodedTime() - d.output.EnqueuedTime()
}

// ResetOutput discards the audio queued in the output, so CurrentTime
// equals the decoded time again.
func (d *Decoder) ResetOutput() {
	if d.output != nil {
		d.output.ResetEnqueuedTime()
	}
}

// Decode decodes the frame at the cursor and passes it to the output.
func (d *Decoder) Decode() bool {
	start := d.clock.Now()

	var skipped int
	for {
		pos := d.Bits.Index() >> 3
		if pos >= d.Bits.Len() {
			d.SetErr(decoder.ErrInsufficientData)
			return false
		}

		size, err := d.decodeFrame()
		if err == nil {
			d.Bits.SetIndex((pos + size) << 3)
			break
		}
		d.Bits.SetIndex(pos << 3)

		if !errors.Is(err, decoder.ErrFrameRejected) || !d.resync {
			d.SetErr(err)
			return false
		}
		next, ok := d.nextSync(pos + 1)
		skipped += next - pos
		d.Bits.SetIndex(next << 3)
		if !ok {
			d.log.Debug("no frame header in buffered data", "skipped", skipped)
			d.SetErr(decoder.ErrInsufficientData)
			return false
		}
	}
	if skipped > 0 {
		d.resyncs++
		d.log.Debug("resynchronized", "skipped", skipped)
	}

	if d.output != nil {
		d.output.Play(d.sampleRate, d.left[:], d.right[:])
	}
	d.AdvanceDecodedTime(float64(SamplesPerFrame) / float64(d.sampleRate))
	d.SetErr(nil)

	if d.onDecode != nil {
		d.onDecode(time.Duration((d.clock.Now() - start) * float64(time.Second)))
	}
	return true
}

// nextSync returns the byte offset of the first candidate sync word at or
// after from. Without one it returns the offset of the last buffered byte,
// which may be the first half of a sync word, and false.
func (d *Decoder) nextSync(from int) (int, bool) {
	data := d.Bits.Bytes()
	for i := from; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i, true
		}
	}
	return max(from, len(data)-1), false
}

type header struct {
	hasCRC          bool
	bitRateIndex    int
	bitRate         int
	sampleRateIndex int
	padding         int
	mode            int
	bound           int
}

func (h header) frameSize() int {
	return 144000*h.bitRate/sampleRate[h.sampleRateIndex] + h.padding
}

func (d *Decoder) readHeader() (header, error) {
	var h header
	if !d.Bits.Has(32) {
		return h, decoder.ErrInsufficientData
	}

	sync := d.Bits.Read(11)
	version := d.Bits.Read(2)
	layer := d.Bits.Read(2)
	h.hasCRC = d.Bits.Read(1) == 0
	if sync != frameSync || version != versionMPEG1 || layer != layerII {
		return h, fmt.Errorf("mp2: not an MPEG-1 layer II header: %w", decoder.ErrFrameRejected)
	}

	h.bitRateIndex = int(d.Bits.Read(4)) - 1
	if h.bitRateIndex < 0 || h.bitRateIndex >= len(bitRate) {
		return h, fmt.Errorf("mp2: unsupported bitrate index %d: %w", h.bitRateIndex+1, decoder.ErrFrameRejected)
	}
	h.bitRate = bitRate[h.bitRateIndex]

	h.sampleRateIndex = int(d.Bits.Read(2))
	if h.sampleRateIndex == 3 {
		return h, fmt.Errorf("mp2: reserved sample rate: %w", decoder.ErrFrameRejected)
	}
	h.padding = int(d.Bits.Read(1))
	d.Bits.Skip(1) // private
	h.mode = int(d.Bits.Read(2))

	if h.mode == modeJointStereo {
		h.bound = int(d.Bits.Read(2)+1) << 2
	} else {
		d.Bits.Skip(2)
		if h.mode != modeMono {
			h.bound = 32
		}
	}
	d.Bits.Skip(4) // copyright, original, emphasis
	if h.hasCRC {
		d.Bits.Skip(16)
	}
	return h, nil
}

// decodeFrame decodes one frame into left and right and returns its size
// in bytes. The cursor is left undefined; Decode repositions it.
func (d *Decoder) decodeFrame() (int, error) {
	pos := d.Bits.Index() >> 3
	h, err := d.readHeader()
	if err != nil {
		return 0, err
	}
	size := h.frameSize()
	if pos+size > d.Bits.Len() {
		return 0, decoder.ErrInsufficientData
	}

	tab1 := 1
	if h.mode == modeMono {
		tab1 = 0
	}
	tab2 := quantLUTStep1[tab1][h.bitRateIndex]
	tab3 := quantLUTStep2[tab2][h.sampleRateIndex]
	sblimit := tab3 & 63
	tab3 >>= 6
	bound := min(h.bound, sblimit)

	for sb := range bound {
		d.allocation[0][sb] = d.readAllocation(sb, tab3)
		d.allocation[1][sb] = d.readAllocation(sb, tab3)
	}
	for sb := bound; sb < sblimit; sb++ {
		q := d.readAllocation(sb, tab3)
		d.allocation[0][sb] = q
		d.allocation[1][sb] = q
	}

	channels := 2
	if h.mode == modeMono {
		channels = 1
	}

	for sb := range sblimit {
		for ch := range channels {
			if d.allocation[ch][sb] != nil {
				d.scaleFactorInfo[ch][sb] = int(d.Bits.Read(2))
			}
		}
		if h.mode == modeMono {
			d.scaleFactorInfo[1][sb] = d.scaleFactorInfo[0][sb]
		}
	}

	for sb := range sblimit {
		for ch := range channels {
			if d.allocation[ch][sb] != nil {
				d.readScaleFactors(&d.scaleFactor[ch][sb], d.scaleFactorInfo[ch][sb])
			}
		}
		if h.mode == modeMono {
			d.scaleFactor[1][sb] = d.scaleFactor[0][sb]
		}
	}

	out := 0
	for part := range 3 {
		for range 4 {
			for sb := range bound {
				d.readSamples(0, sb, part)
				d.readSamples(1, sb, part)
			}
			for sb := bound; sb < sblimit; sb++ {
				d.readSamples(0, sb, part)
				d.sample[1][sb] = d.sample[0][sb]
			}
			for sb := sblimit; sb < 32; sb++ {
				d.sample[0][sb] = [3]int{}
				d.sample[1][sb] = [3]int{}
			}

			for p := range 3 {
				d.vPos = (d.vPos - 64) & 1023
				d.synthesize(0, p, d.left[out:out+32])
				d.synthesize(1, p, d.right[out:out+32])
				out += 32
			}
		}
	}

	d.sampleRate = sampleRate[h.sampleRateIndex]
	return size, nil
}

func (d *Decoder) readAllocation(sb, tab3 int) *quantizer {
	tab4 := quantLUTStep3[tab3][sb]
	q := quantLUTStep4[tab4&15][d.Bits.Read(tab4>>4)]
	if q == 0 {
		return nil
	}
	return &quantTab[q-1]
}

// readScaleFactors reads the three scale factors of one subband as
// selected by its scfsi pattern.
func (d *Decoder) readScaleFactors(sf *[3]int, info int) {
	switch info {
	case 0:
		sf[0] = int(d.Bits.Read(6))
		sf[1] = int(d.Bits.Read(6))
		sf[2] = int(d.Bits.Read(6))
	case 1:
		sf[0] = int(d.Bits.Read(6))
		sf[1] = sf[0]
		sf[2] = int(d.Bits.Read(6))
	case 2:
		sf[0] = int(d.Bits.Read(6))
		sf[1] = sf[0]
		sf[2] = sf[0]
	case 3:
		sf[0] = int(d.Bits.Read(6))
		sf[1] = int(d.Bits.Read(6))
		sf[2] = sf[1]
	}
}

// readSamples reads the three samples of one subband and granule and
// scales them to 1.15 fixed point.
func (d *Decoder) readSamples(ch, sb, part int) {
	q := d.allocation[ch][sb]
	sample := &d.sample[ch][sb]
	if q == nil {
		*sample = [3]int{}
		return
	}

	sf := d.scaleFactor[ch][sb][part]
	if sf == 63 {
		sf = 0
	} else {
		shift := sf / 3
		sf = (scaleFactorBase[sf%3] + ((1 << shift) >> 1)) >> shift
	}

	levels := q.levels
	if q.group {
		val := int(d.Bits.Read(q.bits))
		sample[0] = val % levels
		val /= levels
		sample[1] = val % levels
		sample[2] = val / levels
	} else {
		for i := range sample {
			sample[i] = int(d.Bits.Read(q.bits))
		}
	}

	scale := 65536 / (levels + 1)
	adj := ((levels + 1) >> 1) - 1
	for i := range sample {
		val := (adj - sample[i]) * scale
		sample[i] = (val*(sf>>12) + ((val*(sf&4095) + 2048) >> 12)) >> 12
	}
}
