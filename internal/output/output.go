// Package output provides sinks for decoded pictures and audio: YUV4MPEG2
// and raw PCM writers, a varint-framed dump of everything decoded, and a
// discarding sink that only counts.
package output

import (
	"github.com/zsiec/tsplay/internal/mp2"
	"github.com/zsiec/tsplay/internal/mpeg1"
)

// Compile-time interface checks.
var (
	_ mpeg1.Renderer = (*Y4M)(nil)
	_ mp2.Output     = (*PCM)(nil)
	_ mpeg1.Renderer = (*FrameDump)(nil)
	_ mp2.Output     = (*FrameDump)(nil)
	_ mpeg1.Renderer = (*Discard)(nil)
	_ mp2.Output     = (*Discard)(nil)
)

// appendCropped appends the width×height top-left region of a plane with
// the given stride.
func appendCropped(dst, plane []byte, stride, width, height int) []byte {
	for row := range height {
		off := row * stride
		dst = append(dst, plane[off:off+width]...)
	}
	return dst
}

// codedStride returns the luma stride of the decoder's planes for a
// display width.
func codedStride(width int) int {
	return (width + 15) &^ 15
}

// Discard counts what it receives and drops it.
type Discard struct {
	Frames int
	Blocks int
}

// Resize implements mpeg1.Renderer.
func (d *Discard) Resize(int, int) {}

// Render implements mpeg1.Renderer.
func (d *Discard) Render(_, _, _ []byte) { d.Frames++ }

// Play implements mp2.Output.
func (d *Discard) Play(int, []float32, []float32) { d.Blocks++ }

// EnqueuedTime implements mp2.Output. Nothing is ever queued.
func (d *Discard) EnqueuedTime() float64 { return 0 }

// ResetEnqueuedTime implements mp2.Output.
func (d *Discard) ResetEnqueuedTime() {}
