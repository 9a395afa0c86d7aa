package bitbuf

// FindNextStartCode moves the cursor to the next byte boundary and scans
// for the prefix 00 00 01. On a match the cursor is left after the code
// byte that follows the prefix and that byte is returned. Otherwise the
// cursor is left at the end of the data and -1 is returned.
func (b *Buffer) FindNextStartCode() int {
	for i := (b.index + 7) >> 3; i+3 < b.byteLength; i++ {
		if b.bytes[i] == 0x00 && b.bytes[i+1] == 0x00 && b.bytes[i+2] == 0x01 {
			b.index = (i + 4) << 3
			return int(b.bytes[i+3])
		}
	}
	b.index = b.byteLength << 3
	return -1
}

// FindStartCode skips start codes until it finds code, leaving the cursor
// after it. It returns -1 with the cursor at the end of the data when code
// is not buffered.
func (b *Buffer) FindStartCode(code int) int {
	for {
		current := b.FindNextStartCode()
		if current == code || current == -1 {
			return current
		}
	}
}

// NextBytesAreStartCode reports whether the next byte-aligned bytes are a
// start code prefix, or whether no bytes are left at all.
func (b *Buffer) NextBytesAreStartCode() bool {
	i := (b.index + 7) >> 3
	return i >= b.byteLength ||
		(b.bytes[i] == 0x00 && b.byteAt(i+1) == 0x00 && b.byteAt(i+2) == 0x01)
}

// ReadUntilStartCode returns a copy of the bytes between the next byte
// boundary and the following start code prefix, leaving the cursor on
// the prefix. Without a following prefix it returns the rest of the data.
func (b *Buffer) ReadUntilStartCode() []byte {
	start := min((b.index+7)>>3, b.byteLength)
	end := b.byteLength
	for i := start; i+2 < b.byteLength; i++ {
		if b.bytes[i] == 0x00 && b.bytes[i+1] == 0x00 && b.bytes[i+2] == 0x01 {
			end = i
			break
		}
	}
	b.index = end << 3
	out := make([]byte, end-start)
	copy(out, b.bytes[start:end])
	return out
}
