package input

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// rawMagic is the 8-byte SbirdRaw container header. Grounded verbatim
// on original_source's input/codecs/raw.rs.
var rawMagic = [8]byte{'S', 'b', 'i', 'r', 'd', 'R', 'a', 'w'}

// rawHeaderLen is the byte offset at which sample data begins: 8-byte
// magic + LE u32 sample rate + LE u32 channel count.
const rawHeaderLen = 16

// RawReader recognizes and opens the SbirdRaw container: a fixed
// 16-byte header followed by interleaved little-endian f32 samples,
// packetized roughly every 20ms (spec.md §6).
type RawReader struct{}

func (RawReader) Probe(header []byte) bool {
	return len(header) >= 8 && bytes.Equal(header[:8], rawMagic[:])
}

func (RawReader) Open(r *bufio.Reader, seeker io.Seeker) (*Parsed, error) {
	var hdr [rawHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("input: raw: reading header: %w", err)
	}
	if !bytes.Equal(hdr[:8], rawMagic[:]) {
		return nil, fmt.Errorf("input: raw: bad magic")
	}
	rate := binary.LittleEndian.Uint32(hdr[8:12])
	channels := binary.LittleEndian.Uint32(hdr[12:16])
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("input: raw: unsupported channel count %d", channels)
	}

	dec := &rawDecoder{
		r:          r,
		seeker:     seeker,
		sampleRate: int(rate),
		stereo:     channels == 2,
	}
	return &Parsed{Decoder: dec, SampleRate: int(rate), Stereo: dec.stereo}, nil
}

// rawDecoder reads interleaved LE f32 samples directly off the
// container. Mono streams are duplicated to both output channels so
// every Decoder in this package always yields stereo frames.
type rawDecoder struct {
	r          io.Reader
	seeker     io.Seeker
	sampleRate int
	stereo     bool
	buf        [4]byte
}

func (d *rawDecoder) Read(dst []float32) (int, error) {
	frames := len(dst) / 2
	n := 0
	for n < frames {
		left, err := d.readSample()
		if err != nil {
			return n, err
		}
		right := left
		if d.stereo {
			right, err = d.readSample()
			if err != nil {
				if n > 0 {
					// Odd trailing sample on a stereo stream: surface it as
					// the final partial frame rather than discarding it.
					dst[2*n] = left
					dst[2*n+1] = left
					n++
				}
				return n, err
			}
		}
		dst[2*n] = left
		dst[2*n+1] = right
		n++
	}
	return n, nil
}

func (d *rawDecoder) readSample() (float32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint32(d.buf[:])
	return math.Float32frombits(bits), nil
}

func (d *rawDecoder) Close() error { return nil }

// SeekTo seeks directly to the sample corresponding to pos, when the
// underlying stream supports io.Seeker. Position 0 is byte offset 16
// (rawHeaderLen), matching original_source's raw.rs backseek support.
func (d *rawDecoder) SeekTo(pos time.Duration) error {
	if d.seeker == nil {
		return fmt.Errorf("input: raw: underlying stream does not support seeking")
	}
	bytesPerFrame := int64(4)
	if d.stereo {
		bytesPerFrame = 8
	}
	frameOffset := int64(pos.Seconds() * float64(d.sampleRate))
	target := int64(rawHeaderLen) + frameOffset*bytesPerFrame
	if _, err := d.seeker.Seek(target, io.SeekStart); err != nil {
		return err
	}
	// Drop bytes buffered from before the seek so the next Read starts
	// at target.
	if br, ok := d.r.(*bufio.Reader); ok {
		if src, ok := d.seeker.(io.Reader); ok {
			br.Reset(src)
		}
	}
	return nil
}
