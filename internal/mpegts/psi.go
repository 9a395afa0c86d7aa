package mpegts

import (
	"errors"
	"fmt"

	"github.com/zsiec/tsplay/internal/bitbuf"
)

const (
	pidPAT     = 0x0000
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

var errSectionCRC = errors.New("mpegts: section CRC mismatch")

// section is a long-form PSI section whose CRC has been checked. body
// holds the table data between last_section_number and the CRC.
type section struct {
	tableID uint8
	idExt   uint16 // transport_stream_id or program_number
	version uint8
	body    []byte
}

// readSections splits a PSI payload that starts with a pointer field.
// Sections running past the payload end the walk; they are not
// reassembled across packets.
func readSections(payload []byte) ([]section, error) {
	if len(payload) == 0 {
		return nil, errors.New("mpegts: empty PSI payload")
	}
	pos := 1 + int(payload[0])
	if pos >= len(payload) {
		return nil, fmt.Errorf("mpegts: pointer field %d beyond payload", payload[0])
	}

	var out []section
	for pos+3 <= len(payload) && payload[pos] != 0xFF {
		bits := bitbuf.Wrap(payload[pos:], bitbuf.Expand)
		tableID := uint8(bits.Read(8))
		if bits.Read(1) == 0 { // short form, no CRC
			break
		}
		bits.Skip(3)
		length := int(bits.Read(12))
		end := pos + 3 + length
		if length < 9 || end > len(payload) {
			break
		}

		raw := payload[pos:end]
		if sectionCRC(raw) != 0 {
			return out, fmt.Errorf("table 0x%02x: %w", tableID, errSectionCRC)
		}
		s := section{tableID: tableID, idExt: uint16(bits.Read(16))}
		bits.Skip(2)
		s.version = uint8(bits.Read(5))
		s.body = raw[8 : len(raw)-4]
		out = append(out, s)
		pos = end
	}
	return out, nil
}

// sectionCRC runs the MPEG-2 CRC (polynomial 0x04C11DB7, no reflection)
// over data. A section including its trailing CRC field sums to zero.
func sectionCRC(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// programs lists the PMT PIDs of a PAT section. Program 0 names the
// network PID and is left out.
func (s section) programs() *PATData {
	pat := &PATData{}
	bits := bitbuf.Wrap(s.body, bitbuf.Expand)
	for bits.Has(32) {
		number := uint16(bits.Read(16))
		bits.Skip(3)
		pid := uint16(bits.Read(13))
		if number != 0 {
			pat.Programs = append(pat.Programs, &PATProgram{ProgramNumber: number, ProgramMapID: pid})
		}
	}
	return pat
}

// programMap reads a PMT section. Descriptors are skipped.
func (s section) programMap() (*PMTData, error) {
	bits := bitbuf.Wrap(s.body, bitbuf.Expand)
	if !bits.Has(32) {
		return nil, fmt.Errorf("mpegts: PMT of program %d too short", s.idExt)
	}

	pmt := &PMTData{ProgramNumber: s.idExt, Version: s.version}
	bits.Skip(3)
	pmt.PCRPID = uint16(bits.Read(13))
	bits.Skip(4)
	bits.Skip(int(bits.Read(12)) << 3) // program_info

	for bits.Has(40) {
		es := &PMTElementaryStream{StreamType: uint8(bits.Read(8))}
		bits.Skip(3)
		es.ElementaryPID = uint16(bits.Read(13))
		bits.Skip(4)
		bits.Skip(int(bits.Read(12)) << 3) // ES_info
		pmt.ElementaryStreams = append(pmt.ElementaryStreams, es)
	}
	return pmt, nil
}
