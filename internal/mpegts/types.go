// Package mpegts demultiplexes an MPEG transport stream pushed in chunks of
// any size. Complete PES units are reassembled per stream id and handed to
// the Destination connected for that id, along with their PTS. PAT and PMT
// sections are parsed on the way so callers can list the programs present.
package mpegts

// Stream ids of the MPEG-1 elementary streams a Destination can be
// connected to.
const (
	StreamIDVideo = 0xE0
	StreamIDAudio = 0xC0
)

// Stream types carried in the PMT.
const (
	StreamTypeMPEG1Video = 0x01
	StreamTypeMPEG2Video = 0x02
	StreamTypeMPEG1Audio = 0x03
	StreamTypeMPEG2Audio = 0x04
)

// Destination receives complete PES payloads. buffers are views into the
// demuxer's input, in stream order; they stay valid after Write returns.
type Destination interface {
	Write(pts float64, buffers [][]byte)
}

// DestinationFunc adapts a function to Destination.
type DestinationFunc func(pts float64, buffers [][]byte)

// Write calls f.
func (f DestinationFunc) Write(pts float64, buffers [][]byte) { f(pts, buffers) }

// PATData contains the parsed Program Association Table.
type PATData struct {
	Programs []*PATProgram
}

// PATProgram maps a program number to its PMT PID.
type PATProgram struct {
	ProgramMapID  uint16
	ProgramNumber uint16
}

// PMTData contains the parsed Program Map Table.
type PMTData struct {
	ProgramNumber     uint16
	Version           uint8
	PCRPID            uint16
	ElementaryStreams []*PMTElementaryStream
}

// PMTElementaryStream describes a single elementary stream in a PMT.
type PMTElementaryStream struct {
	ElementaryPID uint16
	StreamType    uint8
}

// Supported reports whether the stream carries MPEG-1/2 video or audio,
// the only codecs the decoders play.
func (es *PMTElementaryStream) Supported() bool {
	switch es.StreamType {
	case StreamTypeMPEG1Video, StreamTypeMPEG2Video, StreamTypeMPEG1Audio, StreamTypeMPEG2Audio:
		return true
	}
	return false
}

// Stats counts what the demuxer has seen. Continuity errors are only
// counted; packets are never dropped or reordered because of them.
type Stats struct {
	Packets          int64
	Resyncs          int64
	SkippedBytes     int64
	ContinuityErrors int64
	// SectionErrors counts PSI payloads dropped for a bad CRC or layout.
	SectionErrors int64
	// UnsupportedStreams counts PIDs a PMT declared with a codec other
	// than MPEG-1/2 video or audio. Units on them are skipped and counted
	// in SkippedUnits, whatever their PES stream id.
	UnsupportedStreams int64
	SkippedUnits       int64
	// Units counts PES units flushed per stream id.
	Units map[uint8]int64
}
