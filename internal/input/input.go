// Package input implements the container-probe and decode surface the
// mixer's readying step (spec.md §4.2) drives from the blocking pool:
// recognize a container format from its header, parse it into a
// Decoder, and hand back enough metadata for the mixer's resample
// engine to size itself. Grounded on original_source's input/parsed.rs
// and input/live_input.rs ("tagged variants for the small closed set,
// dynamic dispatch for the open set" — spec.md §9 design note).
package input

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"voicedriver/internal/trackapi"
)

// Decoder produces interleaved stereo float32 samples at the
// container's native sample rate, one call at a time. A single call
// may return fewer than len(dst)/2 frames; the resample engine loops
// until its output buffer is full or Decoder returns io.EOF.
type Decoder interface {
	// Read fills dst (interleaved L/R float32) and returns the number
	// of stereo frames written. Returns io.EOF once no more audio is
	// available; a final partial read (n > 0, err == io.EOF) is valid.
	Read(dst []float32) (n int, err error)

	// Close releases any codec resources (an Opus decoder's internal
	// state, an open file handle, etc).
	Close() error
}

// RawFrameSource is implemented by decoders whose container already
// carries Opus natively (DCA), letting the mixer pull the next
// frame's original encoded bytes and forward them unmodified as an
// RTP payload instead of decoding to PCM and re-encoding (RTP
// passthrough, spec.md §4.4).
type RawFrameSource interface {
	// NextRawFrame reads and returns the next frame's encoded bytes,
	// advancing the stream exactly as far as a PCM Read of the same
	// frame would have. Returns io.EOF once exhausted.
	NextRawFrame() ([]byte, error)
}

// Seeker is implemented by decoders whose underlying container
// supports random access to a byte offset. Decoders that can't seek
// natively fall back to InputSource.Recreate + discard-ahead instead
// (spec.md §4.2).
type Seeker interface {
	SeekTo(pos time.Duration) error
}

// Parsed is what a successful container parse produces: a ready
// Decoder plus enough metadata for the mixer to size its resample
// engine. Grounded on original_source's input/parsed.rs.
type Parsed struct {
	Decoder    Decoder
	SampleRate int
	Stereo     bool
}

// FormatReader recognizes and opens one container format from a byte
// stream.
type FormatReader interface {
	// Probe reports whether header looks like this format. header is
	// at most 16 bytes and may be shorter at end of stream.
	Probe(header []byte) bool

	// Open parses the full stream into a Parsed decoder. Called only
	// after Probe has matched. seeker is non-nil when the original
	// stream (before bufio wrapping) supports io.Seeker, letting a
	// format that stores a fixed byte-per-sample layout (SbirdRaw)
	// seek directly instead of falling back to Recreate + discard.
	Open(r *bufio.Reader, seeker io.Seeker) (*Parsed, error)
}

// readers lists the container formats this driver recognizes, probed
// in order. Supplements spec.md §6 (SbirdRaw) with the DCA container
// pulled in from original_source.
var readers = []FormatReader{
	RawReader{},
	DCAReader{},
}

// Open probes r's header against the known container formats and
// parses it with the first match.
func Open(raw io.Reader) (*Parsed, error) {
	seeker, _ := raw.(io.Seeker)
	r := bufio.NewReaderSize(raw, 4096)
	header, err := r.Peek(16)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("input: reading header: %w", err)
	}
	for _, fr := range readers {
		if fr.Probe(header) {
			return fr.Open(r, seeker)
		}
	}
	return nil, fmt.Errorf("input: unrecognized container (first bytes %x)", header)
}

// ComposedInput adapts a factory function into a trackapi.InputSource,
// for sources naturally expressed as "a function that opens a fresh
// reader" (files, HTTP bodies, subprocess pipes) rather than an object
// that can rewind itself. Grounded on original_source's Compose
// recreator (input/mod.rs).
type ComposedInput struct {
	factory func() (io.ReadCloser, error)
}

// NewComposedInput wraps factory. factory is called once per Reader
// or Recreate call; it must return an unread stream each time.
func NewComposedInput(factory func() (io.ReadCloser, error)) *ComposedInput {
	return &ComposedInput{factory: factory}
}

func (c *ComposedInput) Reader() (io.ReadCloser, error) { return c.factory() }

func (c *ComposedInput) Recreate() (trackapi.InputSource, error) {
	return &ComposedInput{factory: c.factory}, nil
}

// FileInput is the common case of ComposedInput: a track backed by a
// path on disk, reopened from byte zero on every seek-to-start/loop.
func FileInput(path string, open func(path string) (io.ReadCloser, error)) *ComposedInput {
	return NewComposedInput(func() (io.ReadCloser, error) { return open(path) })
}
