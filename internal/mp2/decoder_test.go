package mp2

import (
	"errors"
	"math"
	"testing"

	"github.com/zsiec/tsplay/internal/decoder"
)

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

type frameHeader struct {
	version, layer uint32
	bitRateIndex   uint32
	sampleRate     uint32
	padding        uint32
	mode           uint32
	modeExt        uint32
}

func mono128k() frameHeader {
	return frameHeader{
		version:      versionMPEG1,
		layer:        layerII,
		bitRateIndex: 8, // 128 kbit/s
		mode:         modeMono,
	}
}

func (h frameHeader) write(w *bitWriter) {
	w.write(frameSync, 11)
	w.write(h.version, 2)
	w.write(h.layer, 2)
	w.write(1, 1) // no CRC
	w.write(h.bitRateIndex, 4)
	w.write(h.sampleRate, 2)
	w.write(h.padding, 1)
	w.write(0, 1)
	w.write(h.mode, 2)
	w.write(h.modeExt, 2)
	w.write(0, 4)
}

// buildFrame returns a frame whose side information is body, zero filled
// to size bytes.
func buildFrame(h frameHeader, size int, body func(w *bitWriter)) []byte {
	w := &bitWriter{}
	h.write(w)
	if body != nil {
		body(w)
	}
	out := make([]byte, size)
	copy(out, w.buf)
	return out
}

// toneFrame is a mono 128 kbit/s 44.1 kHz frame with only subband 2
// allocated at three levels, scale factor 6 (0.5) and every sample at the
// lowest level. The constant subband signal decodes to a sine at 2·fs/64
// with amplitude 0.25/√2.
func toneFrame() []byte {
	return buildFrame(mono128k(), 417, func(w *bitWriter) {
		w.write(0, 8) // subbands 0-1
		w.write(1, 4) // subband 2: 3 levels
		// The remaining 27 allocation fields are zero: 8×4 + 12×3 + 7×2 bits.
		w.write(0, 32)
		w.write(0, 36)
		w.write(0, 14)
		w.write(2, 2) // scfsi: one scale factor
		w.write(6, 6)
		for range 12 {
			w.write(0, 5)
		}
	})
}

type fakeOutput struct {
	enqueued    float64
	sampleRates []int
	left, right [][]float32
}

func (o *fakeOutput) Play(sampleRate int, left, right []float32) {
	o.sampleRates = append(o.sampleRates, sampleRate)
	o.left = append(o.left, append([]float32(nil), left...))
	o.right = append(o.right, append([]float32(nil), right...))
}

func (o *fakeOutput) EnqueuedTime() float64 { return o.enqueued }
func (o *fakeOutput) ResetEnqueuedTime()     { o.enqueued = 0 }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clock = decoder.ClockFunc(func() float64 { return 0 })
	return cfg
}

func TestDecoder_SilentMonoFrame(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{}
	d := NewDecoder(out, testConfig())
	d.Write(1.0, [][]byte{buildFrame(mono128k(), 417, nil)})

	if !d.Decode() {
		t.Fatalf("Decode: %v", d.Err())
	}
	if d.Bits.Index() != 417*8 {
		t.Errorf("cursor = %d bytes, want 417", d.Bits.Index()/8)
	}
	if d.SampleRate() != 44100 || len(out.sampleRates) != 1 || out.sampleRates[0] != 44100 {
		t.Errorf("sample rate = %d, output %v", d.SampleRate(), out.sampleRates)
	}
	if len(out.left[0]) != SamplesPerFrame || len(out.right[0]) != SamplesPerFrame {
		t.Fatalf("samples = %d/%d", len(out.left[0]), len(out.right[0]))
	}
	for i, s := range out.left[0] {
		if s != 0 {
			t.Fatalf("left[%d] = %v, want silence", i, s)
		}
	}
	if want := 1.0 + float64(SamplesPerFrame)/44100; math.Abs(d.DecodedTime()-want) > 1e-9 {
		t.Errorf("decoded = %v, want %v", d.DecodedTime(), want)
	}
	if d.Decode() {
		t.Error("second Decode succeeded")
	}
	if !errors.Is(d.Err(), decoder.ErrInsufficientData) {
		t.Errorf("Err = %v", d.Err())
	}
}

func TestDecoder_FrameSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		bitRate    uint32
		sampleRate uint32
		padding    uint32
		mode       uint32
		want       int
	}{
		{"128k 44.1kHz mono", 8, 0, 0, modeMono, 417},
		{"128k 44.1kHz padded", 8, 0, 1, modeMono, 418},
		{"128k 48kHz stereo", 8, 1, 0, modeStereo, 384},
		{"192k 44.1kHz joint stereo padded", 10, 0, 1, modeJointStereo, 627},
		{"32k 32kHz mono", 1, 2, 0, modeMono, 144},
		{"384k 48kHz dual channel", 14, 1, 0, modeDualChannel, 1152},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := frameHeader{
				version:      versionMPEG1,
				layer:        layerII,
				bitRateIndex: tt.bitRate,
				sampleRate:   tt.sampleRate,
				padding:      tt.padding,
				mode:         tt.mode,
			}
			// A second frame proves the cursor lands on the next header.
			frame := buildFrame(h, tt.want, nil)
			d := NewDecoder(nil, testConfig())
			d.Write(0, [][]byte{frame, frame})

			if !d.Decode() {
				t.Fatalf("Decode: %v", d.Err())
			}
			if got := d.Bits.Index() >> 3; got != tt.want {
				t.Errorf("frame size = %d, want %d", got, tt.want)
			}
			if !d.Decode() {
				t.Fatalf("second Decode: %v", d.Err())
			}
		})
	}
}

// dftAmplitude returns the amplitude of the f Hz component of x.
func dftAmplitude(x []float32, f, sampleRate float64) float64 {
	var re, im float64
	for n, v := range x {
		phase := 2 * math.Pi * f * float64(n) / sampleRate
		re += float64(v) * math.Cos(phase)
		im += float64(v) * math.Sin(phase)
	}
	return 2 * math.Hypot(re, im) / float64(len(x))
}

func TestDecoder_Tone(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{}
	d := NewDecoder(out, testConfig())
	frame := toneFrame()
	d.Write(0, [][]byte{frame, frame, frame})

	for range 3 {
		if !d.Decode() {
			t.Fatalf("Decode: %v", d.Err())
		}
	}

	// The first frame holds the filter bank warming up.
	var left []float32
	for i := 1; i < 3; i++ {
		for j := range out.left[i] {
			if out.left[i][j] != out.right[i][j] {
				t.Fatalf("mono sample %d differs between channels", j)
			}
		}
		left = append(left, out.left[i]...)
	}

	const (
		wantFreq = 2 * 44100.0 / 64
		wantAmp  = 0.25 / math.Sqrt2
	)
	peak, peakAmp := 0.0, 0.0
	for f := 50.0; f < 8000; f += 25 {
		if a := dftAmplitude(left, f, 44100); a > peakAmp {
			peak, peakAmp = f, a
		}
	}
	if math.Abs(peak-wantFreq) > 25 {
		t.Errorf("peak at %v Hz, want %v Hz", peak, wantFreq)
	}
	if a := dftAmplitude(left, wantFreq, 44100); math.Abs(a-wantAmp) > 0.01*wantAmp {
		t.Errorf("amplitude %v, want %v", a, wantAmp)
	}
	for i, v := range left {
		if math.Abs(float64(v)) > wantAmp*1.01 {
			t.Fatalf("sample %d = %v exceeds the tone amplitude", i, v)
		}
	}
}

func TestDecoder_IncompleteFrame(t *testing.T) {
	t.Parallel()
	frame := buildFrame(mono128k(), 417, nil)
	d := NewDecoder(nil, testConfig())
	d.Write(0, [][]byte{frame[:200]})

	if d.Decode() {
		t.Fatal("decoded a partial frame")
	}
	if !errors.Is(d.Err(), decoder.ErrInsufficientData) || d.Bits.Index() != 0 {
		t.Fatalf("Err = %v, cursor %d", d.Err(), d.Bits.Index())
	}

	d.Write(0, [][]byte{frame[200:]})
	if !d.Decode() {
		t.Fatalf("Decode after completing the frame: %v", d.Err())
	}
}

func TestDecoder_RejectedHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header func(h *frameHeader)
	}{
		{"free format bitrate", func(h *frameHeader) { h.bitRateIndex = 0 }},
		{"bad bitrate", func(h *frameHeader) { h.bitRateIndex = 15 }},
		{"reserved sample rate", func(h *frameHeader) { h.sampleRate = 3 }},
		{"layer I", func(h *frameHeader) { h.layer = layerI }},
		{"MPEG-2", func(h *frameHeader) { h.version = versionMPEG2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := mono128k()
			tt.header(&h)
			d := NewDecoder(nil, testConfig())
			d.Write(0, [][]byte{buildFrame(h, 417, nil)})

			if d.Decode() {
				t.Fatal("accepted")
			}
			if !errors.Is(d.Err(), decoder.ErrFrameRejected) {
				t.Errorf("Err = %v", d.Err())
			}
			if d.Bits.Index() != 0 {
				t.Errorf("cursor moved to %d", d.Bits.Index())
			}
		})
	}
}

func resyncConfig() Config {
	cfg := testConfig()
	cfg.Resync = true
	return cfg
}

func TestDecoder_Resync(t *testing.T) {
	t.Parallel()
	d := NewDecoder(nil, resyncConfig())
	d.Write(0, [][]byte{{0x12, 0x34, 0xFF, 0x00, 0x56}, buildFrame(mono128k(), 417, nil)})

	if !d.Decode() {
		t.Fatalf("Decode: %v", d.Err())
	}
	if d.Resyncs() != 1 {
		t.Errorf("resyncs = %d", d.Resyncs())
	}
	if got := d.Bits.Index() >> 3; got != 5+417 {
		t.Errorf("cursor = %d, want %d", got, 5+417)
	}
}

func TestDecoder_StaysOnBadHeaderByDefault(t *testing.T) {
	t.Parallel()
	if DefaultConfig().Resync {
		t.Fatal("DefaultConfig enables resync")
	}
	d := NewDecoder(nil, testConfig())
	d.Write(0, [][]byte{{0x12, 0x34, 0xFF, 0x00, 0x56}, buildFrame(mono128k(), 417, nil)})

	for range 3 {
		if d.Decode() {
			t.Fatal("decoded past a bad header without resync")
		}
	}
	if d.Bits.Index() != 0 || d.Resyncs() != 0 {
		t.Errorf("cursor %d resyncs %d, want both 0", d.Bits.Index(), d.Resyncs())
	}
}

func TestDecoder_ResyncWithoutSyncWord(t *testing.T) {
	t.Parallel()
	d := NewDecoder(nil, resyncConfig())
	d.Write(0, [][]byte{{0x12, 0x34, 0x56, 0x78, 0x9A, 0xFF}})

	if d.Decode() {
		t.Fatal("decoded garbage")
	}
	if !errors.Is(d.Err(), decoder.ErrInsufficientData) {
		t.Errorf("Err = %v", d.Err())
	}
	if got := d.Bits.Index() >> 3; got != 5 {
		t.Errorf("cursor = %d, want the trailing byte", got)
	}
}

func TestDecoder_CurrentTimeSubtractsEnqueued(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{enqueued: 0.5}
	d := NewDecoder(out, testConfig())
	d.Write(10, [][]byte{buildFrame(mono128k(), 417, nil)})

	if d.CurrentTime() != 9.5 {
		t.Errorf("current = %v before decoding, want 9.5", d.CurrentTime())
	}
	if !d.Decode() {
		t.Fatalf("Decode: %v", d.Err())
	}
	if got := d.DecodedTime() - d.CurrentTime(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("decoded - current = %v, want 0.5", got)
	}
}

func TestDecoder_DecodedTimeSnapsToNextUnit(t *testing.T) {
	t.Parallel()
	d := NewDecoder(nil, testConfig())
	frame := buildFrame(mono128k(), 417, nil)
	d.Write(10, [][]byte{frame})
	d.Write(11, [][]byte{frame})

	// The first frame ends exactly where the second unit begins.
	d.Decode()
	if d.DecodedTime() != 11 {
		t.Errorf("decoded = %v, want 11", d.DecodedTime())
	}
	d.Decode()
	if want := 11 + float64(SamplesPerFrame)/44100; math.Abs(d.DecodedTime()-want) > 1e-9 {
		t.Errorf("decoded = %v, want %v", d.DecodedTime(), want)
	}
}

func TestSynthesisWindowSymmetry(t *testing.T) {
	t.Parallel()
	w := synthesisWindow()
	if w[0] != 0 || w[256] != 37519.0 {
		t.Errorf("w[0] = %v, w[256] = %v", w[0], w[256])
	}
	for i := 1; i < 256; i++ {
		want := -w[i]
		if i%64 == 0 {
			want = w[i]
		}
		if w[512-i] != want {
			t.Fatalf("w[%d] = %v, want %v", 512-i, w[512-i], want)
		}
	}
}

// matrixSum is the matrixing computed term by term: V[i] is
// Σ s[k] cos((16+i)(2k+1)π/64).
func matrixSum(s *[32][3]int, p int) [64]float64 {
	var v [64]float64
	for i := range v {
		for k := range 32 {
			v[i] += float64(s[k][p]) * math.Cos(float64((16+i)*(2*k+1))*math.Pi/64)
		}
	}
	return v
}

func TestMatrixTransform_MatchesDirectSum(t *testing.T) {
	t.Parallel()
	var s [32][3]int
	for k := range s {
		for p := range s[k] {
			s[k][p] = (k*7919+p*104729)%60001 - 30000
		}
	}
	for p := range 3 {
		var v [64]float32
		matrixTransform(&s, p, v[:])
		want := matrixSum(&s, p)
		for i := range v {
			if diff := math.Abs(float64(v[i]) - want[i]); diff > 1e-5*math.Abs(want[i])+0.5 {
				t.Fatalf("p %d: V[%d] = %v, want %v", p, i, v[i], want[i])
			}
		}
	}
}

func TestMatrixTransform_DCInput(t *testing.T) {
	t.Parallel()
	var s [32][3]int
	s[0][1] = 1000
	var v [64]float32
	matrixTransform(&s, 1, v[:])

	// A single subband 0 sample gives V[i] = 1000·cos((16+i)π/64).
	for i := range v {
		want := 1000 * math.Cos(float64(16+i)*math.Pi/64)
		if math.Abs(float64(v[i])-want) > 1e-3 {
			t.Fatalf("V[%d] = %v, want %v", i, v[i], want)
		}
	}
}
