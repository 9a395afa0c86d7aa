// Package mpeg1 decodes MPEG-1 video (ISO/IEC 11172-2) into planar 4:2:0
// frames. Intra and predictive pictures are reconstructed; B and D
// pictures are parsed past and skipped.
package mpeg1

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsiec/tsplay/internal/decoder"
)

// Renderer receives decoded pictures. The planes are coded size, so their
// stride is the width rounded up to a multiple of 16 for luma and half of
// that for chroma. They are reused for later pictures and must not be
// retained after Render returns.
type Renderer interface {
	Resize(width, height int)
	Render(y, cb, cr []byte)
}

// Config holds decoder options. Start from DefaultConfig.
type Config struct {
	// BufferSize is the initial elementary stream buffer size in bytes.
	BufferSize int
	// Streaming evicts consumed bytes instead of keeping the whole stream
	// for seeking.
	Streaming bool
	// DecodeFirstFrame decodes the first picture as soon as the sequence
	// header has been seen.
	DecodeFirstFrame bool

	Clock    decoder.Clock
	Logger   *slog.Logger
	OnDecode func(elapsed time.Duration)
	// OnUserData receives the user_data of each picture with its
	// presentation time.
	OnUserData func(pts float64, data []byte)
}

// DefaultConfig returns the defaults for non-streaming playback.
func DefaultConfig() Config {
	return Config{
		BufferSize:       512 * 1024,
		DecodeFirstFrame: true,
	}
}

type planes struct {
	y, cb, cr []byte
}

// Decoder is an MPEG-1 video decoder.
type Decoder struct {
	decoder.Base

	renderer         Renderer
	clock            decoder.Clock
	log              *slog.Logger
	decodeFirstFrame bool
	onDecode         func(elapsed time.Duration)
	onUserData       func(pts float64, data []byte)

	hasSequenceHeader bool
	width, height     int
	frameRate         float64
	currentFrame      int

	mbWidth, mbHeight, mbSize int
	codedWidth, codedHeight   int
	halfWidth, halfHeight     int

	intraQuantMatrix    [64]uint8
	nonIntraQuantMatrix [64]uint8

	// frames holds the current and forward reference planes; cur selects
	// the current one.
	frames [2]planes
	cur    int

	pictureType    int
	fullPelForward bool
	forwardFCode   int
	forwardRSize   int
	forwardF       int

	quantizerScale     int32
	sliceBegin         bool
	macroblockAddress  int
	mbRow, mbCol       int
	macroblockType     int32
	macroblockIntra    bool
	macroblockMotionFw bool

	motionFwH, motionFwV         int
	motionFwHPrev, motionFwVPrev int

	dcPredictorY, dcPredictorCb, dcPredictorCr int32

	blockData [64]int32
	userData  [][]byte
}

// NewDecoder returns a Decoder delivering pictures to r, which may be nil.
func NewDecoder(r Renderer, cfg Config) *Decoder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Clock == nil {
		cfg.Clock = decoder.WallClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Decoder{
		Base:             decoder.NewBase(cfg.BufferSize, cfg.Streaming),
		renderer:         r,
		clock:            cfg.Clock,
		log:              cfg.Logger.With("component", "mpeg1"),
		decodeFirstFrame: cfg.DecodeFirstFrame,
		onDecode:         cfg.OnDecode,
		onUserData:       cfg.OnUserData,
	}
}

// Width returns the display width from the sequence header.
func (d *Decoder) Width() int { return d.width }

// Height returns the display height from the sequence header.
func (d *Decoder) Height() int { return d.height }

// FrameRate returns the frame rate from the sequence header.
func (d *Decoder) FrameRate() float64 { return d.frameRate }

// CodedWidth returns the luma plane stride.
func (d *Decoder) CodedWidth() int { return d.codedWidth }

// HasSequenceHeader reports whether a valid sequence header was seen.
func (d *Decoder) HasSequenceHeader() bool { return d.hasSequenceHeader }

// Write buffers one access unit. Until a sequence header has been found,
// each write searches everything buffered since the last search for one
// and, once found, optionally decodes the first picture.
func (d *Decoder) Write(pts float64, buffers [][]byte) {
	d.Base.Write(pts, buffers)

	if d.hasSequenceHeader {
		return
	}
	if d.Bits.FindStartCode(startSequence) == -1 {
		return
	}
	if err := d.decodeSequenceHeader(); err != nil {
		d.log.Debug("sequence header rejected", "error", err)
		return
	}
	if d.decodeFirstFrame {
		d.Decode()
	}
}

// Decode decodes the next picture. It returns false when no picture start
// code is buffered yet.
func (d *Decoder) Decode() bool {
	start := d.clock.Now()
	if !d.hasSequenceHeader || !d.nextPicture() {
		d.SetErr(decoder.ErrInsufficientData)
		return false
	}

	err := d.decodePicture()
	d.AdvanceDecodedTime(1 / d.frameRate)
	d.SetErr(err)

	if d.onUserData != nil {
		for _, data := range d.userData {
			d.onUserData(d.DecodedTime(), data)
		}
	}
	d.userData = d.userData[:0]

	if d.onDecode != nil {
		d.onDecode(time.Duration((d.clock.Now() - start) * float64(time.Second)))
	}
	return true
}

// nextPicture moves past the next picture start code, parsing sequence
// headers met on the way.
func (d *Decoder) nextPicture() bool {
	for {
		switch d.Bits.FindNextStartCode() {
		case startPicture:
			return true
		case -1:
			return false
		case startSequence:
			if err := d.decodeSequenceHeader(); err != nil {
				d.log.Debug("sequence header rejected", "error", err)
			}
		}
	}
}

var errSequenceHeader = errors.New("mpeg1: invalid sequence header")

func (d *Decoder) decodeSequenceHeader() error {
	if !d.Bits.Has(64) {
		return fmt.Errorf("%w: truncated", errSequenceHeader)
	}
	width := int(d.Bits.Read(12))
	height := int(d.Bits.Read(12))
	d.Bits.Skip(4) // pixel aspect ratio
	frameRate := pictureRate[d.Bits.Read(4)]
	d.Bits.Skip(18 + 1 + 10 + 1) // bit rate, marker, vbv buffer size, constrained parameters

	if width == 0 || height == 0 {
		return fmt.Errorf("%w: size %dx%d", errSequenceHeader, width, height)
	}
	if frameRate == 0 {
		return fmt.Errorf("%w: reserved frame rate", errSequenceHeader)
	}
	d.frameRate = frameRate

	if width != d.width || height != d.height {
		d.width = width
		d.height = height
		d.initBuffers()
		if d.renderer != nil {
			d.renderer.Resize(width, height)
		}
	}

	d.intraQuantMatrix = defaultIntraQuantMatrix
	if d.Bits.Read(1) != 0 {
		for i := range 64 {
			d.intraQuantMatrix[zigZag[i]] = uint8(d.Bits.Read(8))
		}
	}
	d.nonIntraQuantMatrix = defaultNonIntraQuantMatrix
	if d.Bits.Read(1) != 0 {
		for i := range 64 {
			d.nonIntraQuantMatrix[zigZag[i]] = uint8(d.Bits.Read(8))
		}
	}

	d.hasSequenceHeader = true
	return nil
}

func (d *Decoder) initBuffers() {
	d.mbWidth = (d.width + 15) >> 4
	d.mbHeight = (d.height + 15) >> 4
	d.mbSize = d.mbWidth * d.mbHeight

	d.codedWidth = d.mbWidth << 4
	d.codedHeight = d.mbHeight << 4
	d.halfWidth = d.mbWidth << 3
	d.halfHeight = d.mbHeight << 3

	codedSize := d.codedWidth * d.codedHeight
	for i := range d.frames {
		d.frames[i] = planes{
			y:  make([]byte, codedSize),
			cb: make([]byte, codedSize>>2),
			cr: make([]byte, codedSize>>2),
		}
	}
	d.cur = 0
}

func (d *Decoder) current() *planes { return &d.frames[d.cur] }
func (d *Decoder) forward() *planes { return &d.frames[d.cur^1] }

func (d *Decoder) decodePicture() error {
	d.currentFrame++

	d.Bits.Skip(10) // temporal reference
	d.pictureType = int(d.Bits.Read(3))
	d.Bits.Skip(16) // vbv delay

	// B and D pictures are not decoded.
	if d.pictureType <= 0 || d.pictureType >= pictureB {
		return nil
	}

	if d.pictureType == picturePredictive {
		d.fullPelForward = d.Bits.Read(1) != 0
		d.forwardFCode = int(d.Bits.Read(3))
		if d.forwardFCode == 0 {
			return fmt.Errorf("mpeg1: forward_f_code is zero: %w", decoder.ErrFrameRejected)
		}
		d.forwardRSize = d.forwardFCode - 1
		d.forwardF = 1 << d.forwardRSize
	}

	code := d.Bits.FindNextStartCode()
	for code == startExtension || code == startUserData {
		if code == startUserData && d.onUserData != nil {
			d.userData = append(d.userData, d.Bits.ReadUntilStartCode())
		}
		code = d.Bits.FindNextStartCode()
	}

	for code >= startSliceFirst && code <= startSliceLast {
		d.decodeSlice(code)
		code = d.Bits.FindNextStartCode()
	}

	// Leave the next unit's start code for the following Decode.
	if code != -1 {
		d.Bits.Rewind(32)
	}

	cur := d.current()
	if d.renderer != nil {
		d.renderer.Render(cur.y, cur.cb, cur.cr)
	}

	if d.pictureType == pictureIntra || d.pictureType == picturePredictive {
		d.cur ^= 1
	}
	return nil
}
