package mp2

import (
	"math"
	"testing"

	"github.com/zsiec/tsplay/internal/bitbuf"
)

func bitsDecoder(w *bitWriter) *Decoder {
	d := NewDecoder(nil, testConfig())
	d.Bits = bitbuf.Wrap(w.buf, bitbuf.Expand)
	return d
}

func TestReadHeader_Bound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mode    uint32
		modeExt uint32
		want    int
	}{
		{"mono", modeMono, 0, 0},
		{"stereo", modeStereo, 0, 32},
		{"dual channel", modeDualChannel, 3, 32},
		{"joint stereo 4", modeJointStereo, 0, 4},
		{"joint stereo 8", modeJointStereo, 1, 8},
		{"joint stereo 12", modeJointStereo, 2, 12},
		{"joint stereo 16", modeJointStereo, 3, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := mono128k()
			h.mode, h.modeExt = tt.mode, tt.modeExt
			w := &bitWriter{}
			h.write(w)

			got, err := bitsDecoder(w).readHeader()
			if err != nil {
				t.Fatal(err)
			}
			if got.bound != tt.want {
				t.Errorf("bound = %d, want %d", got.bound, tt.want)
			}
		})
	}
}

func TestReadScaleFactors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		info int
		want [3]int
		bits int
	}{
		{0, [3]int{10, 20, 30}, 18},
		{1, [3]int{10, 10, 20}, 12},
		{2, [3]int{10, 10, 10}, 6},
		{3, [3]int{10, 20, 20}, 12},
	}
	for _, tt := range tests {
		w := &bitWriter{}
		w.write(10, 6)
		w.write(20, 6)
		w.write(30, 6)
		d := bitsDecoder(w)

		var sf [3]int
		d.readScaleFactors(&sf, tt.info)
		if sf != tt.want {
			t.Errorf("scfsi %d: scale factors %v, want %v", tt.info, sf, tt.want)
		}
		if d.Bits.Index() != tt.bits {
			t.Errorf("scfsi %d: read %d bits, want %d", tt.info, d.Bits.Index(), tt.bits)
		}
	}
}

func TestReadSamples(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		q     *quantizer
		sf    int
		codes [][2]uint32 // value, width
		want  [3]int
		bits  int
	}{
		// 11 = 2 + 0·3 + 1·9
		{"grouped", &quantTab[0], 0, [][2]uint32{{11, 5}}, [3]int{-32768, 32768, 0}, 5},
		{"ungrouped", &quantTab[2], 0, [][2]uint32{{0, 3}, {3, 3}, {6, 3}}, [3]int{49152, 0, -49152}, 9},
		{"ungrouped scaled", &quantTab[2], 3, [][2]uint32{{0, 3}, {3, 3}, {6, 3}}, [3]int{24576, 0, -24576}, 9},
		{"scale factor 63 mutes", &quantTab[0], 63, [][2]uint32{{11, 5}}, [3]int{}, 5},
		{"unallocated", nil, 0, nil, [3]int{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := &bitWriter{}
			for _, c := range tt.codes {
				w.write(c[0], int(c[1]))
			}
			w.write(0x7F, 7) // trailing bits left unread
			d := bitsDecoder(w)
			d.allocation[0][4] = tt.q
			d.scaleFactor[0][4] = [3]int{tt.sf, tt.sf, tt.sf}
			d.sample[0][4] = [3]int{1, 1, 1}

			d.readSamples(0, 4, 1)
			if d.sample[0][4] != tt.want {
				t.Errorf("samples = %v, want %v", d.sample[0][4], tt.want)
			}
			if d.Bits.Index() != tt.bits {
				t.Errorf("read %d bits, want %d", d.Bits.Index(), tt.bits)
			}
		})
	}
}

// jointStereoFrame is a 192 kbit/s 48 kHz joint stereo frame with bound 4.
// below allocates subband 0 on the left channel only; above allocates
// subband 5, past the bound, once for both channels.
func jointStereoFrame(below, above bool) []byte {
	bit := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	h := frameHeader{
		version:      versionMPEG1,
		layer:        layerII,
		bitRateIndex: 10,
		sampleRate:   1,
		mode:         modeJointStereo,
	}
	return buildFrame(h, 576, func(w *bitWriter) {
		w.write(bit(below), 4) // subband 0 left
		w.write(0, 4)          // subband 0 right
		w.write(0, 24)         // subbands 1-3, both channels
		w.write(0, 4)          // subband 4
		w.write(bit(above), 4) // subband 5
		w.write(0, 20)         // subbands 6-10
		w.write(0, 36)         // subbands 11-22
		w.write(0, 8)          // subbands 23-26

		if below {
			w.write(2, 2)
		}
		if above {
			w.write(2, 2)
			w.write(2, 2)
		}
		if below {
			w.write(9, 6)
		}
		if above {
			w.write(9, 6)
			w.write(9, 6)
		}
		for range 12 {
			if below {
				w.write(0, 5)
			}
			if above {
				w.write(0, 5)
			}
		}
	})
}

func TestDecoder_JointStereoBound(t *testing.T) {
	t.Parallel()
	energy := func(x []float32) float64 {
		var e float64
		for _, v := range x {
			e += float64(v) * float64(v)
		}
		return e
	}

	t.Run("shared above bound", func(t *testing.T) {
		t.Parallel()
		out := &fakeOutput{}
		d := NewDecoder(out, testConfig())
		frame := jointStereoFrame(false, true)
		d.Write(0, [][]byte{frame, frame})
		for range 2 {
			if !d.Decode() {
				t.Fatalf("Decode: %v", d.Err())
			}
		}
		for i := range out.left[1] {
			if out.left[1][i] != out.right[1][i] {
				t.Fatalf("sample %d: left %v, right %v", i, out.left[1][i], out.right[1][i])
			}
		}
		if energy(out.left[1]) == 0 {
			t.Error("subband above the bound decoded to silence")
		}
	})

	t.Run("separate below bound", func(t *testing.T) {
		t.Parallel()
		out := &fakeOutput{}
		d := NewDecoder(out, testConfig())
		frame := jointStereoFrame(true, false)
		d.Write(0, [][]byte{frame, frame})
		for range 2 {
			if !d.Decode() {
				t.Fatalf("Decode: %v", d.Err())
			}
		}
		if energy(out.left[1]) == 0 {
			t.Error("left channel silent")
		}
		if e := energy(out.right[1]); e != 0 {
			t.Errorf("right channel energy %v, want silence", e)
		}
	})

	t.Run("allocation", func(t *testing.T) {
		t.Parallel()
		d := NewDecoder(nil, testConfig())
		d.Write(0, [][]byte{jointStereoFrame(true, true)})
		if !d.Decode() {
			t.Fatalf("Decode: %v", d.Err())
		}
		if d.Bits.Index() != 576*8 {
			t.Errorf("frame consumed %d bytes, want 576", d.Bits.Index()/8)
		}
		if d.allocation[0][0] == nil || d.allocation[1][0] != nil {
			t.Errorf("subband 0 allocation = %v, %v", d.allocation[0][0], d.allocation[1][0])
		}
		if d.allocation[0][5] == nil || d.allocation[1][5] != d.allocation[0][5] {
			t.Errorf("subband 5 allocation not shared: %v, %v", d.allocation[0][5], d.allocation[1][5])
		}
	})
}

func TestAllocationTablesConsistent(t *testing.T) {
	t.Parallel()
	for class, row := range quantLUTStep2 {
		for rate, tab := range row {
			tab3, sblimit := tab>>6, tab&63
			if tab3 >= len(quantLUTStep3) {
				t.Fatalf("class %d rate %d: table %d out of range", class, rate, tab3)
			}
			for sb := range sblimit {
				entry := quantLUTStep3[tab3][sb]
				width, row4 := entry>>4, entry&15
				if width == 0 || row4 >= len(quantLUTStep4) {
					t.Errorf("table %d subband %d: entry 0x%02x", tab3, sb, entry)
					continue
				}
				for v := range 1 << width {
					if q := quantLUTStep4[row4][v]; q > len(quantTab) {
						t.Errorf("table %d subband %d value %d: quantizer %d", tab3, sb, v, q)
					}
				}
			}
		}
	}
}

func TestSynthesisWindowScale(t *testing.T) {
	t.Parallel()
	// D[256] of the reference window is 1.144989014.
	if got := float64(synthesisWindowHalf[256]) / 32768; math.Abs(got-1.144989014) > 1e-4 {
		t.Errorf("window peak = %v, want 1.144989014 at 2^-15 units", got)
	}
}
