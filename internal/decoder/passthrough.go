package decoder

import (
	"io"
	"sort"
)

// Passthrough is the Decoder backend that does not decode. Each Decode
// copies the next buffered access unit to a writer unchanged, so the same
// scheduler and timeline drive elementary stream extraction.
type Passthrough struct {
	Base

	w            io.Writer
	unitDuration float64
	starts       []int
}

// NewPassthrough returns a Passthrough writing units to w. unitDuration is
// the decoded time added per unit when no PTS boundary is crossed.
func NewPassthrough(w io.Writer, unitDuration float64, bufferSize int) *Passthrough {
	return &Passthrough{
		Base:         NewBase(bufferSize, false),
		w:            w,
		unitDuration: unitDuration,
	}
}

// Write buffers one access unit.
func (p *Passthrough) Write(pts float64, buffers [][]byte) {
	p.starts = append(p.starts, p.BytesWritten())
	p.Base.Write(pts, buffers)
}

// Decode writes the access unit at the cursor to the underlying writer.
func (p *Passthrough) Decode() bool {
	pos := p.Bits.Index() >> 3
	data := p.Bits.Bytes()
	if pos >= len(data) {
		p.SetErr(ErrInsufficientData)
		return false
	}

	end := len(data)
	if i := sort.SearchInts(p.starts, pos+1); i < len(p.starts) {
		end = p.starts[i]
	}
	if _, err := p.w.Write(data[pos:end]); err != nil {
		p.SetErr(err)
		return false
	}

	p.Bits.SetIndex(end << 3)
	p.AdvanceDecodedTime(p.unitDuration)
	p.SetErr(nil)
	return true
}
