package mpegts

import "github.com/zsiec/tsplay/internal/bitbuf"

const (
	packetSize = 188
	syncByte   = 0x47
)

// packetHeader holds the transport packet fields after the sync byte.
type packetHeader struct {
	TransportErrorIndicator   bool
	PayloadUnitStartIndicator bool
	PID                       uint16
	AdaptationFieldControl    uint8
	ContinuityCounter         uint8
}

func (h packetHeader) hasAdaptationField() bool { return h.AdaptationFieldControl&0x02 != 0 }
func (h packetHeader) hasPayload() bool         { return h.AdaptationFieldControl&0x01 != 0 }

// readPacketHeader reads the 24 header bits that follow the sync byte.
func readPacketHeader(bits *bitbuf.Buffer) packetHeader {
	var h packetHeader
	h.TransportErrorIndicator = bits.Read(1) != 0
	h.PayloadUnitStartIndicator = bits.Read(1) != 0
	bits.Skip(1) // transport_priority
	h.PID = uint16(bits.Read(13))
	bits.Skip(2) // transport_scrambling_control
	h.AdaptationFieldControl = uint8(bits.Read(2))
	h.ContinuityCounter = uint8(bits.Read(4))
	return h
}

// continuity tracks the last continuity counter per PID.
type continuity map[uint16]uint8

// check records h and reports whether its counter breaks the sequence.
// Packets without payload and duplicates do not count.
func (c continuity) check(h packetHeader) bool {
	if !h.hasPayload() {
		return false
	}
	prev, seen := c[h.PID]
	c[h.PID] = h.ContinuityCounter
	if !seen {
		return false
	}
	return h.ContinuityCounter != prev && h.ContinuityCounter != (prev+1)&0x0F
}
