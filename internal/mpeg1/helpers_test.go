package mpeg1

import (
	"strings"
)

// bitWriter builds bitstreams MSB first.
type bitWriter struct {
	buf   []byte
	nbits int
}

func (w *bitWriter) write(value uint32, bits int) {
	for i := bits - 1; i >= 0; i-- {
		if w.nbits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if value>>i&1 != 0 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.nbits % 8)
		}
		w.nbits++
	}
}

// code appends a code word written as a string of 0s and 1s.
func (w *bitWriter) code(s string) {
	for _, c := range strings.ReplaceAll(s, " ", "") {
		if c == '1' {
			w.write(1, 1)
		} else {
			w.write(0, 1)
		}
	}
}

func (w *bitWriter) align() {
	for w.nbits%8 != 0 {
		w.write(0, 1)
	}
}

func (w *bitWriter) startCode(code byte) {
	w.align()
	w.buf = append(w.buf, 0x00, 0x00, 0x01, code)
	w.nbits += 32
}

func (w *bitWriter) bytes() []byte { return w.buf }

func writeSequenceHeader(w *bitWriter, width, height int, rateCode uint32) {
	writeSequenceHeaderMatrices(w, width, height, rateCode, nil, nil)
}

// writeSequenceHeaderMatrices writes a sequence header loading the given
// quantizer matrices, in raster order, when they are non-nil.
func writeSequenceHeaderMatrices(w *bitWriter, width, height int, rateCode uint32, intra, nonIntra *[64]uint8) {
	w.startCode(startSequence)
	w.write(uint32(width), 12)
	w.write(uint32(height), 12)
	w.write(1, 4) // square pixels
	w.write(rateCode, 4)
	w.write(0x3FFFF, 18) // variable bit rate
	w.write(1, 1)        // marker
	w.write(20, 10)      // vbv buffer size
	w.write(0, 1)        // constrained parameters
	for _, m := range []*[64]uint8{intra, nonIntra} {
		if m == nil {
			w.write(0, 1)
			continue
		}
		w.write(1, 1)
		for i := range 64 {
			w.write(uint32(m[zigZag[i]]), 8)
		}
	}
}

func writePictureHeader(w *bitWriter, temporalRef, pictureType uint32) {
	w.startCode(startPicture)
	w.write(temporalRef, 10)
	w.write(pictureType, 3)
	w.write(0xFFFF, 16)
	if pictureType == picturePredictive {
		w.write(0, 1) // full_pel_forward_vector
		w.write(1, 3) // forward_f_code
	}
	w.write(0, 1) // extra_bit_picture
}

func writeSliceHeader(w *bitWriter, slice byte, qscale uint32) {
	w.startCode(slice)
	w.write(qscale, 5)
	w.write(0, 1) // extra_bit_slice
}

// Intra block with only a DC coefficient of the given size code and
// differential bits, followed by end_of_block.
func writeIntraDCBlock(w *bitWriter, sizeCode, differential string) {
	w.code(sizeCode)
	w.code(differential)
	w.code("10")
}

// writeGrayIntraMacroblock writes an intra macroblock whose blocks repeat
// the DC predictors.
func writeGrayIntraMacroblock(w *bitWriter) {
	w.code("1") // address increment 1
	w.code("1") // intra
	for range 4 {
		writeIntraDCBlock(w, "100", "")
	}
	for range 2 {
		writeIntraDCBlock(w, "00", "")
	}
}

// grayStream is a single I picture of solid mid gray.
func grayStream(width, height int) []byte {
	w := &bitWriter{}
	writeSequenceHeader(w, width, height, 3)
	writePictureHeader(w, 0, pictureIntra)
	mbWidth, mbHeight := (width+15)>>4, (height+15)>>4
	for row := range mbHeight {
		writeSliceHeader(w, byte(row+1), 8)
		for range mbWidth {
			writeGrayIntraMacroblock(w)
		}
	}
	w.startCode(startSequenceEnd)
	return w.bytes()
}

type frameRecorder struct {
	width, height int
	resizes       int
	frames        [][3][]byte
}

func (r *frameRecorder) Resize(width, height int) {
	r.width, r.height = width, height
	r.resizes++
}

func (r *frameRecorder) Render(y, cb, cr []byte) {
	r.frames = append(r.frames, [3][]byte{
		append([]byte(nil), y...),
		append([]byte(nil), cb...),
		append([]byte(nil), cr...),
	})
}

func allEqual(p []byte, v byte) bool {
	for _, b := range p {
		if b != v {
			return false
		}
	}
	return true
}
