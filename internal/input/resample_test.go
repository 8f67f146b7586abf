package input

import (
	"io"
	"testing"

	"voicedriver/internal/opuscodec"
)

// fakeDecoder hands out fixed-size frames of already-stereo PCM and
// reports io.EOF once exhausted, mirroring the contract rawDecoder and
// dcaDecoder both follow.
type fakeDecoder struct {
	frames [][2]float32
	pos    int
}

func (f *fakeDecoder) Read(dst []float32) (int, error) {
	n := 0
	for n*2 < len(dst) && f.pos < len(f.frames) {
		dst[n*2] = f.frames[f.pos][0]
		dst[n*2+1] = f.frames[f.pos][1]
		n++
		f.pos++
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *fakeDecoder) Close() error { return nil }

func newFakeParsed(numFrames int) *Parsed {
	frames := make([][2]float32, numFrames)
	for i := range frames {
		frames[i] = [2]float32{float32(i), -float32(i)}
	}
	return &Parsed{
		Decoder:    &fakeDecoder{frames: frames},
		SampleRate: opuscodec.SampleRate,
		Stereo:     true,
	}
}

func TestNewEngineNativeSkipsResampler(t *testing.T) {
	e, err := NewEngine(newFakeParsed(10))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if !e.Native() {
		t.Fatal("Native() = false for an input already at the driver's output rate")
	}
}

func TestEngineNextFillsExactFrameSamplesNative(t *testing.T) {
	e, err := NewEngine(newFakeParsed(FrameSamples)) // FrameSamples stereo frames: two ticks' worth
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	dst := make([]float32, FrameSamples)
	n, err := e.Next(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("Next: %v", err)
	}
	if n != FrameSamples {
		t.Fatalf("Next() n = %d, want %d", n, FrameSamples)
	}
	if dst[0] != 0 || dst[1] != 0 {
		t.Fatalf("first frame = (%v, %v), want (0, 0)", dst[0], dst[1])
	}
}

func TestEngineNextRejectsWrongDstLength(t *testing.T) {
	e, err := NewEngine(newFakeParsed(10))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Next(make([]float32, FrameSamples-1)); err == nil {
		t.Fatal("Next() accepted a dst not sized to FrameSamples")
	}
}

func TestEngineNextReturnsEOFWhenDecoderExhausted(t *testing.T) {
	e, err := NewEngine(newFakeParsed(0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	dst := make([]float32, FrameSamples)
	if _, err := e.Next(dst); err != io.EOF {
		t.Fatalf("Next() err = %v, want io.EOF on an already-exhausted decoder", err)
	}
}

func TestEngineCloseClosesUnderlyingDecoder(t *testing.T) {
	p := newFakeParsed(1)
	e, err := NewEngine(p)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
