// Package captions turns the ATSC A/53 cc_data carried in MPEG video
// user_data into caption text. CEA-608 byte pairs and CEA-708 DTVCC
// packets are decoded with ccx.
package captions

import (
	"log/slog"

	"github.com/zsiec/ccx"

	"github.com/zsiec/tsplay/internal/mpeg1"
)

// cc_type values of a cc_data construct.
const (
	ccTypeField1     = 0
	ccTypeField2     = 1
	ccTypeDTVCCData  = 2
	ccTypeDTVCCStart = 3
)

// Decoder keeps caption state across pictures. It is not safe for
// concurrent use; feed it from the video decoder's user data callback.
type Decoder struct {
	log     *slog.Logger
	onFrame func(*ccx.CaptionFrame)

	cea608 map[int]*ccx.CEA608Decoder
	cea708 map[int]*ccx.CEA708Service
	dtvcc  []byte

	// Data channel last selected by a control code, per field.
	channel [2]int

	pictures     int
	lastCtrl     [2][2]byte
	lastWasCtrl  [2]bool
	lastCtrlSeen [2]int

	frames int
}

// NewDecoder returns a Decoder that calls onFrame for every caption
// update. If log is nil, slog.Default() is used.
func NewDecoder(onFrame func(*ccx.CaptionFrame), log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	d := &Decoder{
		log:     log.With("component", "captions"),
		onFrame: onFrame,
		cea608:  make(map[int]*ccx.CEA608Decoder),
		cea708:  make(map[int]*ccx.CEA708Service),
	}
	for ch := 1; ch <= 4; ch++ {
		d.cea608[ch] = ccx.NewCEA608Decoder()
	}
	for svc := 1; svc <= 6; svc++ {
		d.cea708[svc] = ccx.NewCEA708Service()
	}
	return d
}

// Frames returns the number of caption frames emitted.
func (d *Decoder) Frames() int { return d.frames }

// UserData handles the user_data of one picture presented at pts seconds.
// Its signature matches mpeg1.Config.OnUserData.
func (d *Decoder) UserData(pts float64, data []byte) {
	entries := mpeg1.CCData(data)
	if entries == nil {
		return
	}
	d.pictures++
	ptsMicros := int64(pts * 1e6)

	for _, e := range entries {
		cc1, cc2 := e[1], e[2]
		switch e[0] & 0x03 {
		case ccTypeField1:
			d.decode608(0, cc1&0x7F, cc2&0x7F, ptsMicros)
		case ccTypeField2:
			d.decode608(1, cc1&0x7F, cc2&0x7F, ptsMicros)
		case ccTypeDTVCCStart:
			d.drainDTVCC(ptsMicros)
			d.dtvcc = append(d.dtvcc[:0], cc1, cc2)
		case ccTypeDTVCCData:
			d.dtvcc = append(d.dtvcc, cc1, cc2)
		}
	}
}

func (d *Decoder) decode608(field int, cc1, cc2 byte, pts int64) {
	if cc1 == 0 && cc2 == 0 {
		return // padding
	}

	if cc1 >= 0x10 && cc1 <= 0x1F {
		// Control codes are sent twice for robustness; drop the repeat.
		pair := [2]byte{cc1, cc2}
		gap := d.pictures - d.lastCtrlSeen[field]
		if d.lastWasCtrl[field] && d.lastCtrl[field] == pair && gap <= 2 {
			d.lastWasCtrl[field] = false
			return
		}
		d.lastCtrl[field] = pair
		d.lastWasCtrl[field] = true
		d.lastCtrlSeen[field] = d.pictures
		d.channel[field] = int(cc1&0x08) >> 3
	} else {
		d.lastWasCtrl[field] = false
	}

	channel := 1 + 2*field + d.channel[field]
	dec := d.cea608[channel]
	text := dec.Decode(cc1, cc2)
	if text == "" {
		return
	}
	frame := &ccx.CaptionFrame{PTS: pts, Text: text, Channel: channel}
	frame.Regions = dec.StyledRegions()
	d.emit(frame)
}

func (d *Decoder) drainDTVCC(pts int64) {
	if len(d.dtvcc) < 1 {
		return
	}
	size := ccx.DTVCCPacketSize(d.dtvcc[0])
	if len(d.dtvcc) < size {
		d.log.Debug("dropping short DTVCC packet", "have", len(d.dtvcc), "want", size)
		return
	}

	for _, block := range ccx.ParseDTVCCPacket(d.dtvcc[:size]) {
		svc := d.cea708[block.ServiceNum]
		if svc == nil || !svc.ProcessBlock(block.Data) {
			continue
		}
		text := svc.DisplayText()
		if text == "" {
			continue
		}
		// 708 services follow the four 608 channels and two reserved ones.
		frame := &ccx.CaptionFrame{PTS: pts, Text: text, Channel: block.ServiceNum + 6}
		frame.Regions = svc.StyledRegions()
		d.emit(frame)
	}
}

// Flush decodes a DTVCC packet still being assembled.
func (d *Decoder) Flush(pts float64) {
	d.drainDTVCC(int64(pts * 1e6))
	d.dtvcc = d.dtvcc[:0]
}

func (d *Decoder) emit(frame *ccx.CaptionFrame) {
	d.frames++
	if d.onFrame != nil {
		d.onFrame(frame)
	}
}
