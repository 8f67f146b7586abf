package mixer

import (
	"errors"
	"io"

	"voicedriver/internal/input"
	"voicedriver/internal/opuscodec"
	"voicedriver/internal/trackapi"
)

// errFakeDecode is a stand-in for a genuine mid-stream decode failure
// (a corrupt packet, a resampler error), distinct from io.EOF.
var errFakeDecode = errors.New("fake decode failure")

// fakeDecoder hands out fixed frames of stereo PCM (or raw Opus-shaped
// payloads via NextRawFrame) and reports io.EOF once exhausted,
// mirroring rawDecoder/dcaDecoder's contract.
type fakeDecoder struct {
	frames    [][2]float32
	rawFrames [][]byte
	pos       int
	rawPos    int
	closed    bool

	// readErr/rawErr, when set, are returned in place of io.EOF —
	// simulating a genuine decode failure instead of exhaustion.
	readErr error
	rawErr  error
}

func (f *fakeDecoder) Read(dst []float32) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
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

func (f *fakeDecoder) Close() error { f.closed = true; return nil }

func (f *fakeDecoder) NextRawFrame() ([]byte, error) {
	if f.rawErr != nil {
		return nil, f.rawErr
	}
	if f.rawPos >= len(f.rawFrames) {
		return nil, io.EOF
	}
	frame := f.rawFrames[f.rawPos]
	f.rawPos++
	return frame, nil
}

func newFakeParsed(numFrames int) *input.Parsed {
	frames := make([][2]float32, numFrames)
	for i := range frames {
		frames[i] = [2]float32{float32(i), -float32(i)}
	}
	return &input.Parsed{
		Decoder:    &fakeDecoder{frames: frames},
		SampleRate: opuscodec.SampleRate,
		Stereo:     true,
	}
}

func newFakeRawParsed(rawFrames [][]byte) *input.Parsed {
	return &input.Parsed{
		Decoder:    &fakeDecoder{rawFrames: rawFrames},
		SampleRate: opuscodec.SampleRate,
		Stereo:     true,
	}
}

func newFakeParsedWithReadErr(err error) *input.Parsed {
	return &input.Parsed{
		Decoder:    &fakeDecoder{readErr: err},
		SampleRate: opuscodec.SampleRate,
		Stereo:     true,
	}
}

func newFakeRawParsedWithErr(err error) *input.Parsed {
	return &input.Parsed{
		Decoder:    &fakeDecoder{rawErr: err},
		SampleRate: opuscodec.SampleRate,
		Stereo:     true,
	}
}

// fakeSource is a trackapi.InputSource backed by a factory that
// produces the fixture bytes fresh on every Reader/Recreate call.
type fakeSource struct {
	open func() (io.ReadCloser, error)
}

func (s *fakeSource) Reader() (io.ReadCloser, error) { return s.open() }

func (s *fakeSource) Recreate() (trackapi.InputSource, error) {
	return &fakeSource{open: s.open}, nil
}
