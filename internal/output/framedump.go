package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/quic-go/quic-go/quicvarint"
	"github.com/zsiec/ccx"
)

// Frame dump stream layout: the magic and a varint version, then records
// of varint kind, object id, PTS in microseconds and payload length,
// followed by the payload.
const (
	dumpMagic   = "TSPD"
	dumpVersion = 1
)

// RecordKind identifies the payload of a frame dump record.
type RecordKind uint64

// Record kinds.
const (
	// KindVideo payloads are varint width and height followed by the
	// cropped Y, Cb and Cr planes.
	KindVideo RecordKind = 1
	// KindAudio payloads are a varint sample rate followed by interleaved
	// stereo float32 little-endian samples.
	KindAudio RecordKind = 2
	// KindCaption payloads are a varint caption channel followed by the
	// caption text.
	KindCaption RecordKind = 3
)

func (k RecordKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindCaption:
		return "caption"
	}
	return fmt.Sprintf("kind(%d)", uint64(k))
}

// FrameDump records decoded pictures, audio and captions in one stream.
// It is a Renderer, an audio Output and a caption sink at once. Write
// errors are sticky.
type FrameDump struct {
	w         io.Writer
	videoTime func() float64
	audioTime func() float64

	width, height int
	objectID      uint64
	wroteHeader   bool
	hdr, payload  []byte
	bytes         int64
	err           error
}

// NewFrameDump returns a FrameDump writing to w. videoTime and audioTime
// are sampled when a picture or audio block arrives to stamp its record;
// either may be nil, which stamps zero.
func NewFrameDump(w io.Writer, videoTime, audioTime func() float64) *FrameDump {
	return &FrameDump{w: w, videoTime: videoTime, audioTime: audioTime}
}

// Resize implements mpeg1.Renderer.
func (f *FrameDump) Resize(width, height int) {
	f.width, f.height = width, height
}

// Render implements mpeg1.Renderer.
func (f *FrameDump) Render(y, cb, cr []byte) {
	if f.width == 0 {
		return
	}
	stride := codedStride(f.width)
	cw, ch := (f.width+1)/2, (f.height+1)/2

	p := quicvarint.Append(f.payload[:0], uint64(f.width))
	p = quicvarint.Append(p, uint64(f.height))
	p = appendCropped(p, y, stride, f.width, f.height)
	p = appendCropped(p, cb, stride/2, cw, ch)
	p = appendCropped(p, cr, stride/2, cw, ch)
	f.payload = p
	f.writeRecord(KindVideo, sample(f.videoTime), p)
}

// Play implements mp2.Output.
func (f *FrameDump) Play(sampleRate int, left, right []float32) {
	p := quicvarint.Append(f.payload[:0], uint64(sampleRate))
	for i := range left {
		p = binary.LittleEndian.AppendUint32(p, math.Float32bits(left[i]))
		p = binary.LittleEndian.AppendUint32(p, math.Float32bits(right[i]))
	}
	f.payload = p
	f.writeRecord(KindAudio, sample(f.audioTime), p)
}

// EnqueuedTime implements mp2.Output. A dump never holds audio back.
func (f *FrameDump) EnqueuedTime() float64 { return 0 }

// ResetEnqueuedTime implements mp2.Output.
func (f *FrameDump) ResetEnqueuedTime() {}

// Caption records one caption update.
func (f *FrameDump) Caption(frame *ccx.CaptionFrame) {
	p := quicvarint.Append(f.payload[:0], uint64(frame.Channel))
	p = append(p, frame.Text...)
	f.payload = p
	f.writeRecord(KindCaption, frame.PTS, p)
}

// Records returns the number of records written.
func (f *FrameDump) Records() uint64 { return f.objectID }

// Bytes returns the number of bytes written.
func (f *FrameDump) Bytes() int64 { return f.bytes }

// Err returns the first write error.
func (f *FrameDump) Err() error { return f.err }

func sample(fn func() float64) int64 {
	if fn == nil {
		return 0
	}
	return int64(fn() * 1e6)
}

func (f *FrameDump) writeRecord(kind RecordKind, ptsMicros int64, payload []byte) {
	if f.err != nil {
		return
	}

	hdr := f.hdr[:0]
	if !f.wroteHeader {
		hdr = append(hdr, dumpMagic...)
		hdr = quicvarint.Append(hdr, dumpVersion)
		f.wroteHeader = true
	}
	hdr = quicvarint.Append(hdr, uint64(kind))
	hdr = quicvarint.Append(hdr, f.objectID)
	hdr = quicvarint.Append(hdr, uint64(max(ptsMicros, 0)))
	hdr = quicvarint.Append(hdr, uint64(len(payload)))
	f.hdr = hdr

	f.objectID++
	if _, f.err = f.w.Write(hdr); f.err != nil {
		return
	}
	if _, f.err = f.w.Write(payload); f.err != nil {
		return
	}
	f.bytes += int64(len(hdr) + len(payload))
}

// Record is one entry of a frame dump.
type Record struct {
	Kind      RecordKind
	ObjectID  uint64
	PTSMicros int64
	Payload   []byte
}

var errBadMagic = errors.New("output: not a frame dump")

// maxRecordPayload bounds allocations when reading corrupt dumps.
const maxRecordPayload = 64 << 20

// DumpReader reads a stream written by FrameDump.
type DumpReader struct {
	r *bufio.Reader
}

// NewDumpReader checks the stream header and returns a reader positioned
// at the first record.
func NewDumpReader(r io.Reader) (*DumpReader, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("reading frame dump magic: %w", err)
	}
	if string(magic) != dumpMagic {
		return nil, errBadMagic
	}
	version, err := quicvarint.Read(br)
	if err != nil {
		return nil, fmt.Errorf("reading frame dump version: %w", err)
	}
	if version != dumpVersion {
		return nil, fmt.Errorf("output: unsupported frame dump version %d", version)
	}
	return &DumpReader{r: br}, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (d *DumpReader) Next() (Record, error) {
	var rec Record
	kind, err := quicvarint.Read(d.r)
	if err != nil {
		return rec, err
	}
	rec.Kind = RecordKind(kind)

	var fields [3]uint64
	for i := range fields {
		if fields[i], err = quicvarint.Read(d.r); err != nil {
			return rec, fmt.Errorf("reading %s record header: %w", rec.Kind, unexpectedEOF(err))
		}
	}
	rec.ObjectID = fields[0]
	rec.PTSMicros = int64(fields[1])

	if fields[2] > maxRecordPayload {
		return rec, fmt.Errorf("output: %s record of %d bytes exceeds limit", rec.Kind, fields[2])
	}
	rec.Payload = make([]byte, fields[2])
	if _, err := io.ReadFull(d.r, rec.Payload); err != nil {
		return rec, fmt.Errorf("reading %s record payload: %w", rec.Kind, unexpectedEOF(err))
	}
	return rec, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
