package output

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var errResizeAfterHeader = errors.New("output: y4m cannot change size mid-stream")

// Y4M writes rendered pictures as a YUV4MPEG2 stream. Write errors are
// sticky: after the first one nothing more is written and Err returns it.
type Y4M struct {
	w         io.Writer
	frameRate float64

	width, height int
	wroteHeader   bool
	frames        int
	buf           []byte
	err           error
}

// NewY4M returns a Y4M writer. frameRate is written to the stream header;
// zero means 25.
func NewY4M(w io.Writer, frameRate float64) *Y4M {
	if frameRate <= 0 {
		frameRate = 25
	}
	return &Y4M{w: w, frameRate: frameRate}
}

// SetFrameRate replaces the rate written to the header. It has no effect
// once the first picture is out.
func (y *Y4M) SetFrameRate(rate float64) {
	if !y.wroteHeader && rate > 0 {
		y.frameRate = rate
	}
}

// Resize sets the picture size. It may only change before the first
// picture.
func (y *Y4M) Resize(width, height int) {
	if y.wroteHeader && (width != y.width || height != y.height) {
		y.err = fmt.Errorf("%w: %dx%d to %dx%d", errResizeAfterHeader, y.width, y.height, width, height)
		return
	}
	y.width, y.height = width, height
}

// Render writes one picture, cropped from coded to display size.
func (y *Y4M) Render(luma, cb, cr []byte) {
	if y.err != nil || y.width == 0 {
		return
	}
	if !y.wroteHeader {
		num, den := rateFraction(y.frameRate)
		_, y.err = fmt.Fprintf(y.w, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420jpeg\n",
			y.width, y.height, num, den)
		if y.err != nil {
			return
		}
		y.wroteHeader = true
	}

	stride := codedStride(y.width)
	cw, ch := (y.width+1)/2, (y.height+1)/2
	y.buf = append(y.buf[:0], "FRAME\n"...)
	y.buf = appendCropped(y.buf, luma, stride, y.width, y.height)
	y.buf = appendCropped(y.buf, cb, stride/2, cw, ch)
	y.buf = appendCropped(y.buf, cr, stride/2, cw, ch)
	if _, y.err = y.w.Write(y.buf); y.err == nil {
		y.frames++
	}
}

// Frames returns the number of pictures written.
func (y *Y4M) Frames() int { return y.frames }

// Err returns the first write or resize error.
func (y *Y4M) Err() error { return y.err }

// rateFraction expresses the MPEG-1 picture rates exactly; the NTSC rates
// are 1000/1001 multiples.
func rateFraction(rate float64) (int, int) {
	for _, r := range []int{24, 30, 60} {
		if math.Abs(rate-float64(r)*1000/1001) < 0.005 {
			return r * 1000, 1001
		}
	}
	return int(math.Round(rate)), 1
}
