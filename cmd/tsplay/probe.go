package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg1audio"

	"github.com/zsiec/tsplay/internal/config"
	"github.com/zsiec/tsplay/internal/mp2"
	"github.com/zsiec/tsplay/internal/mpeg1"
	"github.com/zsiec/tsplay/internal/mpegts"
	"github.com/zsiec/tsplay/internal/output"
)

type probeCmd struct {
	File  string      `arg:"" type:"existingfile" help:"Transport stream file."`
	Limit config.Size `help:"Bytes to read from the start of the file." default:"4M"`
}

func (c *probeCmd) run(cfg config.Config, w io.Writer) error {
	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	log := slog.Default().With("input", c.File)
	demux := mpegts.NewDemuxer(append(cfg.DemuxerOpts(), mpegts.DemuxerOptLogger(log))...)

	vcfg := cfg.MPEG1()
	vcfg.Logger = log
	video := mpeg1.NewDecoder(&output.Discard{}, vcfg)
	acfg := cfg.MP2()
	acfg.Logger = log
	audio := mp2.NewDecoder(&output.Discard{}, acfg)
	first := &firstUnit{dest: audio}
	demux.Connect(mpegts.StreamIDVideo, video)
	demux.Connect(mpegts.StreamIDAudio, first)

	if _, err := io.CopyN(demux, f, int64(c.Limit)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	demux.Flush()
	video.Decode()
	audio.Decode()

	return describe(w, demux, video, audio, first.data)
}

// firstUnit keeps a copy of the first PES payload passing through to dest.
type firstUnit struct {
	dest mpegts.Destination
	data []byte
}

func (f *firstUnit) Write(pts float64, buffers [][]byte) {
	if f.data == nil {
		for _, b := range buffers {
			f.data = append(f.data, b...)
		}
	}
	f.dest.Write(pts, buffers)
}

// audioHeader describes the MPEG audio frame header at the start of unit.
func audioHeader(unit []byte) (string, bool) {
	var h mpeg1audio.FrameHeader
	if err := h.Unmarshal(unit); err != nil {
		return "", false
	}
	version := 1
	if h.MPEG2 {
		version = 2
	}
	return fmt.Sprintf("MPEG-%d layer %d, %s, %d samples/frame",
		version, h.Layer, channelModeName(h.ChannelMode), h.SampleCount()), true
}

func channelModeName(m mpeg1audio.ChannelMode) string {
	switch m {
	case mpeg1audio.ChannelModeStereo:
		return "stereo"
	case mpeg1audio.ChannelModeJointStereo:
		return "joint stereo"
	case mpeg1audio.ChannelModeDualChannel:
		return "dual channel"
	case mpeg1audio.ChannelModeMono:
		return "mono"
	default:
		return "unknown"
	}
}

func describe(w io.Writer, demux *mpegts.Demuxer, video *mpeg1.Decoder, audio *mp2.Decoder, audioUnit []byte) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, p := range demux.Programs() {
		fmt.Fprintf(tw, "program %d\tpcr pid 0x%04x\n", p.ProgramNumber, p.PCRPID)
		for _, es := range p.ElementaryStreams {
			name := streamTypeName(es.StreamType)
			if !es.Supported() {
				name += " (unsupported)"
			}
			fmt.Fprintf(tw, "  pid 0x%04x\t%s\n", es.ElementaryPID, name)
		}
	}

	if video.HasSequenceHeader() {
		fmt.Fprintf(tw, "video\t%dx%d @ %.3f fps\tstart %.3fs\n",
			video.Width(), video.Height(), video.FrameRate(), video.StartTime())
	} else {
		fmt.Fprintf(tw, "video\tnone\n")
	}
	if audio.SampleRate() > 0 {
		fmt.Fprintf(tw, "audio\tmp2 %d Hz stereo\tstart %.3fs\n", audio.SampleRate(), audio.StartTime())
	} else {
		fmt.Fprintf(tw, "audio\tnone\n")
	}
	if hdr, ok := audioHeader(audioUnit); ok {
		fmt.Fprintf(tw, "audio header\t%s\n", hdr)
	}

	stats := demux.Stats()
	fmt.Fprintf(tw, "packets\t%d\n", stats.Packets)
	fmt.Fprintf(tw, "resyncs\t%d (%d bytes skipped)\n", stats.Resyncs, stats.SkippedBytes)
	fmt.Fprintf(tw, "continuity errors\t%d\n", stats.ContinuityErrors)
	if stats.SectionErrors > 0 {
		fmt.Fprintf(tw, "section errors\t%d\n", stats.SectionErrors)
	}
	if stats.UnsupportedStreams > 0 {
		fmt.Fprintf(tw, "unsupported streams\t%d (%d units skipped)\n", stats.UnsupportedStreams, stats.SkippedUnits)
	}
	return tw.Flush()
}

func streamTypeName(t uint8) string {
	switch t {
	case mpegts.StreamTypeMPEG1Video:
		return "MPEG-1 video"
	case mpegts.StreamTypeMPEG2Video:
		return "MPEG-2 video"
	case mpegts.StreamTypeMPEG1Audio:
		return "MPEG-1 audio"
	case mpegts.StreamTypeMPEG2Audio:
		return "MPEG-2 audio"
	case 0x0F:
		return "AAC"
	case 0x1B:
		return "H.264"
	case 0x24:
		return "HEVC"
	default:
		return fmt.Sprintf("type 0x%02x", t)
	}
}
