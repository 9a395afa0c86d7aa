package mpegts

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F) // payload only
	if pusi {
		buf[1] |= 0x40
	}
	copy(buf[4:], payload)
	return buf
}

// makeStuffedPacket carries a short payload after an adaptation field of
// stuffing bytes, the way muxers fill the last packet of a PES unit.
func makeStuffedPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	buf[3] = 0x30 | (cc & 0x0F) // adaptation + payload
	if pusi {
		buf[1] |= 0x40
	}
	afLen := packetSize - 5 - len(payload)
	buf[4] = byte(afLen)
	if afLen > 0 {
		buf[5] = 0x00 // no flags
		for i := 6; i < 5+afLen; i++ {
			buf[i] = 0xFF
		}
	}
	copy(buf[5+afLen:], payload)
	return buf
}

// encodePTS encodes a 33-bit PTS/DTS value into 5 bytes with marker bits.
func encodePTS(marker byte, value int64) []byte {
	bs := make([]byte, 5)
	bs[0] = marker<<4 | byte((value>>29)&0x0E) | 0x01
	bs[1] = byte(value >> 22)
	bs[2] = byte((value>>14)&0xFE) | 0x01
	bs[3] = byte(value >> 7)
	bs[4] = byte((value<<1)&0xFE) | 0x01
	return bs
}

func buildPESPacket(streamID byte, pts int64, hasPTS bool, data []byte) []byte {
	var optHeader []byte
	ptsDTSIndicator := byte(0)
	if hasPTS {
		ptsDTSIndicator = 2
		optHeader = append(optHeader, encodePTS(0x02, pts)...)
	}

	headerDataLen := len(optHeader)
	packetLength := 3 + headerDataLen + len(data)
	if streamID == StreamIDVideo {
		packetLength = 0 // video: unbounded
	}

	buf := make([]byte, 0, 9+headerDataLen+len(data))
	buf = append(buf, 0x00, 0x00, 0x01) // start code
	buf = append(buf, streamID)
	buf = append(buf, byte(packetLength>>8), byte(packetLength))
	buf = append(buf, 0x80)                // marker bits
	buf = append(buf, ptsDTSIndicator<<6)  // PTS_DTS_indicator
	buf = append(buf, byte(headerDataLen)) // PES_header_data_length
	buf = append(buf, optHeader...)
	buf = append(buf, data...)
	return buf
}

// buildPAT constructs a valid PAT section with CRC32.
func buildPAT(tsID uint16, programs []struct{ num, pid uint16 }) []byte {
	entryLen := len(programs) * 4
	sectionLength := 5 + entryLen + 4

	data := make([]byte, 3+sectionLength)
	data[0] = tableIDPAT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	data[3] = byte(tsID >> 8)
	data[4] = byte(tsID)
	data[5] = 0xC1
	data[6] = 0x00
	data[7] = 0x00

	offset := 8
	for _, p := range programs {
		data[offset] = byte(p.num >> 8)
		data[offset+1] = byte(p.num)
		data[offset+2] = 0xE0 | byte(p.pid>>8)&0x1F
		data[offset+3] = byte(p.pid)
		offset += 4
	}

	binary.BigEndian.PutUint32(data[offset:], sectionCRC(data[:offset]))
	return data
}

type esEntry struct {
	streamType uint8
	pid        uint16
}

// buildPMT constructs a valid PMT section with CRC32.
func buildPMT(programNum uint16, pcrPID uint16, streams []esEntry) []byte {
	sectionLength := 9 + 5*len(streams) + 4

	data := make([]byte, 3+sectionLength)
	data[0] = tableIDPMT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	data[3] = byte(programNum >> 8)
	data[4] = byte(programNum)
	data[5] = 0xC1
	data[6] = 0x00
	data[7] = 0x00
	data[8] = 0xE0 | byte(pcrPID>>8)&0x1F
	data[9] = byte(pcrPID)
	data[10] = 0xF0
	data[11] = 0x00

	offset := 12
	for _, s := range streams {
		data[offset] = s.streamType
		data[offset+1] = 0xE0 | byte(s.pid>>8)&0x1F
		data[offset+2] = byte(s.pid)
		data[offset+3] = 0xF0
		data[offset+4] = 0x00
		offset += 5
	}

	binary.BigEndian.PutUint32(data[offset:], sectionCRC(data[:offset]))
	return data
}

// tsWriter packetizes sections and PES units with running continuity
// counters.
type tsWriter struct {
	buf bytes.Buffer
	cc  map[uint16]uint8
}

func newTSWriter() *tsWriter {
	return &tsWriter{cc: make(map[uint16]uint8)}
}

func (w *tsWriter) next(pid uint16) uint8 {
	cc := w.cc[pid]
	w.cc[pid] = (cc + 1) & 0x0F
	return cc
}

func (w *tsWriter) section(pid uint16, section []byte) {
	payload := append([]byte{0x00}, section...)
	for len(payload) < packetSize-4 {
		payload = append(payload, 0xFF)
	}
	w.buf.Write(makePacket(pid, w.next(pid), true, payload))
}

func (w *tsWriter) pes(pid uint16, pes []byte) {
	first := true
	for len(pes) > 0 {
		n := min(len(pes), packetSize-4)
		if n == packetSize-4 {
			w.buf.Write(makePacket(pid, w.next(pid), first, pes[:n]))
		} else {
			w.buf.Write(makeStuffedPacket(pid, w.next(pid), first, pes[:n]))
		}
		pes = pes[n:]
		first = false
	}
}

func pattern(n, seed int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i*7 + seed) % 251)
	}
	return b
}

type unit struct {
	pts  float64
	data []byte
}

type collector struct {
	units []unit
}

func (c *collector) Write(pts float64, buffers [][]byte) {
	var data []byte
	for _, b := range buffers {
		data = append(data, b...)
	}
	c.units = append(c.units, unit{pts: pts, data: data})
}
