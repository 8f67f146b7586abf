package input

import (
	"fmt"
	"io"

	resampler "github.com/tphakala/go-audio-resampler"

	"voicedriver/internal/opuscodec"
)

// Engine decodes a Parsed input and resamples it to the driver's fixed
// 48kHz stereo output, always producing exactly FrameSamples per call
// so the mixer's per-tick mix buffer never needs a variable-length
// path. Grounded on original_source's DecodeState.resampler
// (driver/tasks/mixer/state.rs), which wraps rubato's FftFixedOut the
// same way: a fixed-output resampler hides the input's native rate
// from the mixer entirely.
type Engine struct {
	parsed   *Parsed
	resample *resampler.Resampler
	carry    []float32 // leftover resampled samples not yet consumed
}

// FrameSamples is the number of interleaved stereo float32s the mixer
// consumes per 20ms tick (960 frames * 2 channels).
const FrameSamples = opuscodec.SampleRate / 50 * opuscodec.Channels

// NewEngine builds a resample engine around an already-opened Parsed
// input. When the input's native rate already matches the driver's
// output rate, no resampler is constructed and Next just passes
// samples through — this is the passthrough-eligible path spec.md
// §4.4 describes (still subject to the mono/volume/loop checks that
// gate true RTP passthrough).
func NewEngine(p *Parsed) (*Engine, error) {
	e := &Engine{parsed: p}
	if p.SampleRate == opuscodec.SampleRate {
		return e, nil
	}
	r, err := resampler.New(p.SampleRate, opuscodec.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("input: resample: %w", err)
	}
	e.resample = r
	return e, nil
}

// Native reports whether this engine is passing samples through
// unresampled — i.e. the input's native rate already matches the
// driver's fixed output rate.
func (e *Engine) Native() bool { return e.resample == nil }

// Next fills dst (must be exactly FrameSamples long) with one tick's
// worth of 48kHz stereo audio, pulling from the underlying Decoder and
// resampling as needed. Returns io.EOF once the Decoder is exhausted
// and no carried-over samples remain.
func (e *Engine) Next(dst []float32) (int, error) {
	if len(dst) != FrameSamples {
		return 0, fmt.Errorf("input: resample: dst must be %d samples, got %d", FrameSamples, len(dst))
	}

	n := 0
	for n < len(dst) {
		if len(e.carry) > 0 {
			copied := copy(dst[n:], e.carry)
			e.carry = e.carry[copied:]
			n += copied
			continue
		}

		raw := make([]float32, FrameSamples)
		read, err := e.parsed.Decoder.Read(raw)
		raw = raw[:read*2]

		var produced []float32
		if e.resample != nil && len(raw) > 0 {
			resampled, rerr := e.resample.Resample(raw)
			if rerr != nil {
				return n, fmt.Errorf("input: resample: %w", rerr)
			}
			produced = resampled
		} else {
			produced = raw
		}

		copied := copy(dst[n:], produced)
		n += copied
		if copied < len(produced) {
			e.carry = append(e.carry[:0], produced[copied:]...)
		}

		if err == io.EOF && len(e.carry) > 0 {
			// dst is full; the carried samples are returned next call.
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close releases the underlying Decoder.
func (e *Engine) Close() error { return e.parsed.Decoder.Close() }
