package mpegts

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/zsiec/tsplay/internal/bitbuf"
)

// Demuxer reassembles PES units from transport stream bytes pushed with
// Write. Bytes of an incomplete trailing packet are kept for the next
// Write, so input may be split anywhere.
//
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	log                *slog.Logger
	guessVideoFrameEnd bool

	bits     *bitbuf.Buffer
	leftover []byte

	pidsToStreamIDs map[uint16]uint8
	pesPackets      map[uint8]*pesRecord
	pmtPIDs         map[uint16]bool
	programs        map[uint16]*PMTData
	unsupported     map[uint16]uint8
	continuity      continuity

	hasStartTime bool
	startTime    float64
	currentTime  float64

	stats Stats
}

// NewDemuxer creates a Demuxer with no destinations connected.
func NewDemuxer(opts ...func(*Demuxer)) *Demuxer {
	d := &Demuxer{
		log:                slog.Default(),
		guessVideoFrameEnd: true,
		pidsToStreamIDs:    make(map[uint16]uint8),
		pesPackets:         make(map[uint8]*pesRecord),
		pmtPIDs:            make(map[uint16]bool),
		programs:           make(map[uint16]*PMTData),
		unsupported:        make(map[uint16]uint8),
		continuity:         make(continuity),
		stats:              Stats{Units: make(map[uint8]int64)},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "mpegts")
	return d
}

// DemuxerOptLogger sets the logger used for resync and codec warnings.
func DemuxerOptLogger(l *slog.Logger) func(*Demuxer) {
	return func(d *Demuxer) {
		if l != nil {
			d.log = l
		}
	}
}

// DemuxerOptGuessVideoFrameEnd toggles the end-of-unit heuristic for PES
// units without a declared length: a continuation packet carrying an
// adaptation field is taken as the padded last packet of the unit. The
// heuristic misfires on streams that pad mid-unit. Enabled by default.
func DemuxerOptGuessVideoFrameEnd(enabled bool) func(*Demuxer) {
	return func(d *Demuxer) {
		d.guessVideoFrameEnd = enabled
	}
}

// Connect registers the destination for PES units with the given stream
// id, replacing any previous one.
func (d *Demuxer) Connect(streamID uint8, dest Destination) {
	d.pesPackets[streamID] = &pesRecord{destination: dest}
}

// Write parses every complete packet in the buffered input. p is copied;
// it never fails.
func (d *Demuxer) Write(p []byte) (int, error) {
	data := make([]byte, len(d.leftover)+len(p))
	copy(data, d.leftover)
	copy(data[len(d.leftover):], p)
	d.bits = bitbuf.Wrap(data, bitbuf.Expand)

	for d.bits.Has(packetSize<<3) && d.parsePacket() {
	}

	d.leftover = nil
	if rest := d.bits.Len() - d.bits.Index()>>3; rest > 0 {
		d.leftover = data[d.bits.Index()>>3:]
	}
	return len(p), nil
}

// Leftover returns the number of bytes held back for the next Write.
func (d *Demuxer) Leftover() int { return len(d.leftover) }

// StartTime returns the first PTS seen on a connected stream.
func (d *Demuxer) StartTime() float64 { return d.startTime }

// CurrentTime returns the most recent PTS seen on a connected stream.
func (d *Demuxer) CurrentTime() float64 { return d.currentTime }

// Stats returns a snapshot of the demuxer counters.
func (d *Demuxer) Stats() Stats {
	s := d.stats
	s.Units = maps.Clone(d.stats.Units)
	return s
}

// Programs returns the latest PMT of every program announced in the PAT,
// ordered by program number.
func (d *Demuxer) Programs() []*PMTData {
	out := make([]*PMTData, 0, len(d.programs))
	for _, pmt := range d.programs {
		out = append(out, pmt)
	}
	slices.SortFunc(out, func(a, b *PMTData) int { return int(a.ProgramNumber) - int(b.ProgramNumber) })
	return out
}

// Flush hands any partially assembled PES units to their destinations.
// Used at end of input, where no following unit start will do it.
func (d *Demuxer) Flush() {
	for id, pi := range d.pesPackets {
		if pi.currentLength != 0 {
			pi.flush()
			d.stats.Units[id]++
		}
	}
}

func (d *Demuxer) parsePacket() bool {
	d.stats.Packets++
	if d.bits.Read(8) != syncByte {
		if !d.resync() {
			return false
		}
	}

	end := (d.bits.Index() >> 3) + packetSize - 1
	h := readPacketHeader(d.bits)
	if d.continuity.check(h) {
		d.stats.ContinuityErrors++
	}

	streamID, known := d.pidsToStreamIDs[h.PID]
	if h.PayloadUnitStartIndicator && known {
		if pi := d.pesPackets[streamID]; pi != nil && pi.currentLength != 0 {
			d.packetComplete(streamID, pi)
		}
	}

	if h.hasPayload() {
		if h.hasAdaptationField() {
			d.bits.Skip(int(d.bits.Read(8)) << 3)
		}

		if h.PayloadUnitStartIndicator && (h.PID == pidPAT || d.pmtPIDs[h.PID]) {
			d.parseTables(h.PID, d.bits.Bytes()[min(d.bits.Index()>>3, end):end])
			d.bits.SetIndex(end << 3)
			return true
		}

		if h.PayloadUnitStartIndicator && d.bits.Index()>>3 < end && d.bits.NextBytesAreStartCode() {
			d.startUnit(h.PID)
			streamID, known = d.pidsToStreamIDs[h.PID]
		}

		if pi := d.pesPackets[streamID]; known && pi != nil {
			start := d.bits.Index() >> 3
			if start < end {
				pi.add(d.bits.Bytes()[start:end])
			}
			if pi.complete() ||
				(d.guessVideoFrameEnd && !h.PayloadUnitStartIndicator && h.hasAdaptationField()) {
				d.packetComplete(streamID, pi)
			}
		}
	}

	d.bits.SetIndex(end << 3)
	return true
}

// startUnit reads the PES header at the cursor, maps the packet's PID to
// its stream id and, for connected streams, begins a new unit. The cursor
// is left at the payload. PIDs the PMT flagged as unsupported stay
// unmapped, so their payload is never routed.
func (d *Demuxer) startUnit(pid uint16) {
	if _, skip := d.unsupported[pid]; skip {
		h := readPESHeader(d.bits, false)
		delete(d.pidsToStreamIDs, pid)
		d.stats.SkippedUnits++
		d.bits.SetIndex(h.PayloadBegin)
		return
	}

	streamID := uint8(d.bits.Peek(32) & 0xFF)
	pi := d.pesPackets[streamID]

	h := readPESHeader(d.bits, pi != nil)
	d.pidsToStreamIDs[pid] = h.StreamID

	if pi != nil {
		pts := 0.0
		if h.HasPTS {
			pts = h.PTS
			d.currentTime = pts
			if !d.hasStartTime {
				d.hasStartTime = true
				d.startTime = pts
			}
		}
		pi.start(pts, h.payloadLength())
	}
	d.bits.SetIndex(h.PayloadBegin)
}

func (d *Demuxer) packetComplete(streamID uint8, pi *pesRecord) {
	pi.flush()
	d.stats.Units[streamID]++
}

// resync looks for five sync bytes one packet apart within the next packet
// width and positions the cursor after the first of them. Without a match
// it skips a packet width and gives up until the next Write.
func (d *Demuxer) resync() bool {
	if !d.bits.Has((packetSize * 6) << 3) {
		return false
	}

	data := d.bits.Bytes()
	byteIndex := d.bits.Index() >> 3
	for i := 0; i < packetSize-1; i++ {
		if data[byteIndex+i] != syncByte {
			continue
		}
		found := true
		for j := 1; j < 5; j++ {
			if data[byteIndex+i+packetSize*j] != syncByte {
				found = false
				break
			}
		}
		if found {
			d.bits.SetIndex((byteIndex + i + 1) << 3)
			d.stats.Resyncs++
			d.stats.SkippedBytes += int64(i + 1)
			return true
		}
	}

	d.log.Warn("possible garbage data, skipping", "bytes", packetSize-1)
	d.bits.Skip((packetSize - 1) << 3)
	d.stats.SkippedBytes += packetSize
	return false
}

func (d *Demuxer) parseTables(pid uint16, payload []byte) {
	sections, err := readSections(payload)
	if err != nil {
		d.log.Debug("dropping PSI section", "pid", pid, "error", err)
		d.stats.SectionErrors++
	}
	for _, s := range sections {
		switch {
		case s.tableID == tableIDPAT && pid == pidPAT:
			for _, p := range s.programs().Programs {
				d.pmtPIDs[p.ProgramMapID] = true
			}
		case s.tableID == tableIDPMT && d.pmtPIDs[pid]:
			pmt, err := s.programMap()
			if err != nil {
				d.log.Debug("dropping PMT", "pid", pid, "error", err)
				d.stats.SectionErrors++
				continue
			}
			d.programs[pmt.ProgramNumber] = pmt
			d.checkCodecs(pmt)
		}
	}
}

// checkCodecs flags the elementary streams of pmt the decoders cannot
// play. H.264 and AAC share PES stream ids with MPEG-1 video and audio,
// so the stream id alone would route them to the wrong decoder.
func (d *Demuxer) checkCodecs(pmt *PMTData) {
	for _, es := range pmt.ElementaryStreams {
		if es.Supported() {
			delete(d.unsupported, es.ElementaryPID)
			continue
		}
		if prev, seen := d.unsupported[es.ElementaryPID]; !seen || prev != es.StreamType {
			d.log.Warn("unsupported elementary stream, skipping",
				"program", pmt.ProgramNumber, "pid", es.ElementaryPID,
				"stream_type", fmt.Sprintf("0x%02x", es.StreamType))
			d.stats.UnsupportedStreams++
		}
		d.unsupported[es.ElementaryPID] = es.StreamType
	}
}
