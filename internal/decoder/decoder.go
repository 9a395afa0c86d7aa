// Package decoder holds what the elementary stream decoders share: the
// Decoder contract, the timestamp index that maps playback time to buffer
// positions, the error codes for "no output this call" and the clock.
package decoder

import (
	"github.com/zsiec/tsplay/internal/bitbuf"
)

// Decoder consumes one elementary stream. Write is called by the
// demultiplexer with complete access units; Decode is polled by the
// scheduler and reports whether it produced output.
type Decoder interface {
	Write(pts float64, buffers [][]byte)
	Decode() bool
	Seek(t float64)
	CanPlay() bool
	StartTime() float64
	DecodedTime() float64
	CurrentTime() float64
	// Err describes why the last Decode produced nothing. Nil after a
	// successful Decode.
	Err() error
}

type timestamp struct {
	index int
	time  float64
}

// Base is the buffer and timeline state embedded by every Decoder
// implementation.
//
// Outside streaming mode every Write records the bit position it starts at
// together with its PTS. Decoding maps back onto that index: Seek jumps to
// the last access unit starting at or before a time and AdvanceDecodedTime
// snaps to a PTS as soon as the cursor crosses its position.
type Base struct {
	Bits *bitbuf.Buffer

	collectTimestamps bool
	timestamps        []timestamp
	timestampIndex    int

	startTime    float64
	decodedTime  float64
	bytesWritten int
	canPlay      bool
	err          error
}

// NewBase returns a Base with a buffer of bufferSize bytes. Streaming
// bases evict consumed bytes and keep no timestamp index.
func NewBase(bufferSize int, streaming bool) Base {
	mode := bitbuf.Expand
	if streaming {
		mode = bitbuf.Evict
	}
	return Base{
		Bits:              bitbuf.New(bufferSize, mode),
		collectTimestamps: !streaming,
	}
}

// Write appends one access unit and records its PTS.
func (b *Base) Write(pts float64, buffers [][]byte) {
	if b.collectTimestamps {
		if len(b.timestamps) == 0 {
			b.startTime = pts
			b.decodedTime = pts
		}
		b.timestamps = append(b.timestamps, timestamp{index: b.bytesWritten << 3, time: pts})
	}
	b.bytesWritten += b.Bits.Write(buffers...)
	b.canPlay = true
}

// Seek moves the cursor to the last recorded access unit at or before t.
// Streaming bases cannot seek.
func (b *Base) Seek(t float64) {
	if !b.collectTimestamps {
		return
	}
	b.timestampIndex = 0
	for i, ts := range b.timestamps {
		if ts.time > t {
			break
		}
		b.timestampIndex = i
	}
	if b.timestampIndex < len(b.timestamps) {
		ts := b.timestamps[b.timestampIndex]
		b.Bits.SetIndex(ts.index)
		b.decodedTime = ts.time
	} else {
		b.Bits.SetIndex(0)
		b.decodedTime = b.startTime
	}
}

// AdvanceDecodedTime moves the decoded time forward by seconds, unless the
// cursor has crossed into a new access unit, in which case decoded time
// becomes that unit's PTS.
func (b *Base) AdvanceDecodedTime(seconds float64) {
	if b.collectTimestamps {
		next := -1
		current := b.Bits.Index()
		for i := b.timestampIndex; i < len(b.timestamps); i++ {
			if b.timestamps[i].index > current {
				break
			}
			next = i
		}
		if next != -1 && next != b.timestampIndex {
			b.timestampIndex = next
			b.decodedTime = b.timestamps[next].time
			return
		}
	}
	b.decodedTime += seconds
}

// CanPlay reports whether any data has been written.
func (b *Base) CanPlay() bool { return b.canPlay }

// StartTime returns the PTS of the first access unit.
func (b *Base) StartTime() float64 { return b.startTime }

// DecodedTime returns the presentation time of the last decoded unit.
func (b *Base) DecodedTime() float64 { return b.decodedTime }

// CurrentTime returns DecodedTime. Decoders with output latency, such as
// audio, override it.
func (b *Base) CurrentTime() float64 { return b.decodedTime }

// Err returns the reason the last Decode produced no output.
func (b *Base) Err() error { return b.err }

// SetErr records the outcome of a Decode call.
func (b *Base) SetErr(err error) { b.err = err }

// BytesWritten returns the total number of bytes passed to Write.
func (b *Base) BytesWritten() int { return b.bytesWritten }
