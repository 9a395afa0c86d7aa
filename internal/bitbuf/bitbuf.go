// Package bitbuf provides the byte store with a bit-granular read cursor
// that the transport stream demuxer and the elementary stream decoders
// read from.
package bitbuf

// Mode selects how a Buffer makes room when a write does not fit.
type Mode int

const (
	// Expand reallocates a larger backing array. Used for static files,
	// where every byte stays addressable for seeking.
	Expand Mode = iota
	// Evict drops the already consumed prefix. Used for live streams.
	Evict
)

func (m Mode) String() string {
	switch m {
	case Expand:
		return "expand"
	case Evict:
		return "evict"
	}
	return "unknown"
}

// Buffer is a byte store with a read cursor counted in bits. Reads past
// the written length yield zero bits; callers check Has before reading.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	bytes      []byte
	byteLength int
	index      int
	mode       Mode
}

// New returns an empty Buffer with the given capacity in bytes.
func New(size int, mode Mode) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{bytes: make([]byte, size), mode: mode}
}

// Wrap returns a Buffer reading data in place. The buffer takes ownership
// of data.
func Wrap(data []byte, mode Mode) *Buffer {
	return &Buffer{bytes: data, byteLength: len(data), mode: mode}
}

// Mode returns the buffer's overflow mode.
func (b *Buffer) Mode() Mode { return b.mode }

// Index returns the read cursor in bits.
func (b *Buffer) Index() int { return b.index }

// SetIndex moves the read cursor to an absolute bit position, clamped to
// the written data.
func (b *Buffer) SetIndex(index int) {
	b.index = max(0, min(index, b.byteLength<<3))
}

// Len returns the number of written bytes.
func (b *Buffer) Len() int { return b.byteLength }

// Cap returns the size of the backing array.
func (b *Buffer) Cap() int { return len(b.bytes) }

// Bytes returns the written bytes. The slice aliases the buffer and is
// only valid until the next Write.
func (b *Buffer) Bytes() []byte { return b.bytes[:b.byteLength] }

// Write appends the given byte slices in order and returns the number of
// bytes written.
func (b *Buffer) Write(buffers ...[]byte) int {
	total := 0
	for _, p := range buffers {
		total += len(p)
	}
	if available := len(b.bytes) - b.byteLength; available < total {
		if b.mode == Expand {
			b.resize(max(len(b.bytes)*2, b.byteLength+total))
		} else {
			b.evict(total)
			if len(b.bytes)-b.byteLength < total {
				b.resize(b.byteLength + total)
			}
		}
	}
	for _, p := range buffers {
		b.byteLength += copy(b.bytes[b.byteLength:], p)
	}
	return total
}

func (b *Buffer) resize(size int) {
	grown := make([]byte, size)
	copy(grown, b.bytes[:b.byteLength])
	b.bytes = grown
	b.byteLength = min(b.byteLength, size)
	b.index = min(b.index, b.byteLength<<3)
}

// evict discards the consumed prefix. When the buffer is fully consumed,
// or dropping the prefix still leaves too little room, everything is
// discarded.
func (b *Buffer) evict(needed int) {
	bytePos := b.index >> 3
	available := len(b.bytes) - b.byteLength

	if b.index == b.byteLength<<3 || needed > available+bytePos {
		b.byteLength = 0
		b.index = 0
		return
	}
	if bytePos == 0 {
		return
	}
	copy(b.bytes, b.bytes[bytePos:b.byteLength])
	b.byteLength -= bytePos
	b.index -= bytePos << 3
}

// Has reports whether at least count unread bits remain.
func (b *Buffer) Has(count int) bool {
	return (b.byteLength<<3)-b.index >= count
}

// Peek returns the next count bits (count <= 32) MSB first without moving
// the cursor.
func (b *Buffer) Peek(count int) uint32 {
	offset := b.index
	var value uint32
	for count > 0 {
		current := uint32(b.byteAt(offset >> 3))
		remaining := 8 - (offset & 7)
		read := min(remaining, count)
		shift := remaining - read
		mask := uint32(0xff) >> (8 - read)

		value = (value << read) | ((current >> shift) & mask)

		offset += read
		count -= read
	}
	return value
}

// Read returns the next count bits (count <= 32) and advances the cursor.
func (b *Buffer) Read(count int) uint32 {
	value := b.Peek(count)
	b.index += count
	return value
}

// Skip advances the cursor and returns the new bit index.
func (b *Buffer) Skip(count int) int {
	b.index += count
	return b.index
}

// Rewind moves the cursor back, stopping at the start of the buffer.
func (b *Buffer) Rewind(count int) {
	b.index = max(b.index-count, 0)
}

func (b *Buffer) byteAt(i int) byte {
	if i >= b.byteLength {
		return 0
	}
	return b.bytes[i]
}
