package mpegts

import "github.com/zsiec/tsplay/internal/bitbuf"

// pesRecord is the PES unit being assembled for one stream id.
type pesRecord struct {
	destination   Destination
	currentLength int
	totalLength   int
	pts           float64
	buffers       [][]byte
}

func (r *pesRecord) start(pts float64, payloadLength int) {
	r.totalLength = payloadLength
	r.currentLength = 0
	r.pts = pts
}

func (r *pesRecord) add(data []byte) {
	r.buffers = append(r.buffers, data)
	r.currentLength += len(data)
}

func (r *pesRecord) complete() bool {
	return r.totalLength != 0 && r.currentLength >= r.totalLength
}

// flush hands the unit to the destination and resets the record.
func (r *pesRecord) flush() {
	r.destination.Write(r.pts, r.buffers)
	r.buffers = nil
	r.totalLength = 0
	r.currentLength = 0
}

// pesHeader holds the fields of a PES header the demuxer acts on.
type pesHeader struct {
	StreamID     uint8
	PacketLength int
	HeaderLength int
	HasPTS       bool
	PTS          float64
	// PayloadBegin is the bit index of the first payload byte.
	PayloadBegin int
}

// readPESHeader reads a PES header starting at its start code prefix. The
// PTS is only read when readPTS is set; the cursor is left at the start
// of the header's optional fields.
func readPESHeader(bits *bitbuf.Buffer, readPTS bool) pesHeader {
	var h pesHeader
	bits.Skip(24) // packet_start_code_prefix
	h.StreamID = uint8(bits.Read(8))
	h.PacketLength = int(bits.Read(16))
	bits.Skip(8) // marker bits, scrambling, priority, alignment, copyright, original
	ptsDTSFlag := bits.Read(2)
	bits.Skip(6)
	h.HeaderLength = int(bits.Read(8))
	h.PayloadBegin = bits.Index() + h.HeaderLength<<3

	if readPTS && ptsDTSFlag&0x02 != 0 {
		h.HasPTS = true
		h.PTS = readTimestamp(bits)
	}
	return h
}

// readTimestamp reads a 5 byte PTS or DTS field and converts the 90 kHz
// value to seconds. The 33 bit value is assembled with multiplications so
// the upper bits survive in float64.
func readTimestamp(bits *bitbuf.Buffer) float64 {
	bits.Skip(4)
	hi := float64(bits.Read(3))
	bits.Skip(1)
	mid := float64(bits.Read(15))
	bits.Skip(1)
	lo := float64(bits.Read(15))
	bits.Skip(1)
	return (hi*1073741824 + mid*32768 + lo) / 90000
}

// payloadLength is the number of payload bytes a PES unit declares, or 0
// when its length is unbounded.
func (h pesHeader) payloadLength() int {
	if h.PacketLength == 0 {
		return 0
	}
	return h.PacketLength - h.HeaderLength - 3
}
