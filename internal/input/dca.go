package input

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"voicedriver/internal/opuscodec"
)

// dcaMagic is the 4-byte DCA1 container header.
var dcaMagic = [4]byte{'D', 'C', 'A', '1'}

// dcaMaxMetadataBytes bounds the JSON metadata block, matching
// original_source's input/codecs/dca/metadata.rs.
const dcaMaxMetadataBytes = 32 * 1024

// DCAMetadata is the optional JSON block preceding a DCA stream's Opus
// frames. All fields are informational for playback; a missing or
// empty block is not an error. Grounded on original_source's
// input/codecs/dca/metadata.rs.
type DCAMetadata struct {
	Opus *DCAOpusInfo `json:"opus,omitempty"`
	Info *DCASongInfo `json:"info,omitempty"`
}

// DCAOpusInfo describes the encode parameters used to produce the
// stream, so a decoder can size itself without guessing.
type DCAOpusInfo struct {
	Mode        string `json:"mode"`
	SampleRate  int    `json:"sample_rate"`
	FrameSize   int    `json:"frame_size"`
	Channels    int    `json:"channels"`
	VBR         bool   `json:"abr"`
}

// DCASongInfo is free-form track metadata, carried through for a host
// that wants to expose it (title/artist/etc), never consumed by the
// driver itself.
type DCASongInfo struct {
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
	Cover   string `json:"cover,omitempty"`
}

// DCAReader recognizes and opens the DCA container: 4-byte magic, an
// LE int32 metadata length (may be 0), that many bytes of JSON, then a
// stream of (LE int16 length, Opus frame) pairs.
type DCAReader struct{}

func (DCAReader) Probe(header []byte) bool {
	return len(header) >= 4 && header[0] == dcaMagic[0] && header[1] == dcaMagic[1] &&
		header[2] == dcaMagic[2] && header[3] == dcaMagic[3]
}

func (DCAReader) Open(r *bufio.Reader, _ io.Seeker) (*Parsed, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("input: dca: reading magic: %w", err)
	}

	var metaLen int32
	if err := binary.Read(r, binary.LittleEndian, &metaLen); err != nil {
		return nil, fmt.Errorf("input: dca: reading metadata length: %w", err)
	}
	if metaLen < 0 || metaLen > dcaMaxMetadataBytes {
		return nil, fmt.Errorf("input: dca: metadata length %d out of bounds", metaLen)
	}

	var meta DCAMetadata
	if metaLen > 0 {
		buf := make([]byte, metaLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("input: dca: reading metadata: %w", err)
		}
		if err := json.Unmarshal(buf, &meta); err != nil {
			return nil, fmt.Errorf("input: dca: parsing metadata: %w", err)
		}
	}

	dec, err := opuscodec.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("input: dca: %w", err)
	}

	frameSize := 960
	sampleRate := opuscodec.SampleRate
	if meta.Opus != nil {
		if meta.Opus.FrameSize > 0 {
			frameSize = meta.Opus.FrameSize
		}
		if meta.Opus.SampleRate > 0 {
			sampleRate = meta.Opus.SampleRate
		}
	}

	return &Parsed{
		Decoder: &dcaDecoder{r: r, opus: dec, frameSamples: frameSize},
		SampleRate: sampleRate,
		Stereo:     true,
	}, nil
}

// dcaDecoder reads length-prefixed Opus frames and decodes them one
// at a time. It does not implement Seeker: DCA frames don't carry a
// timestamp, so seeking relies on InputSource.Recreate plus discarding
// frames up to the target (spec.md §4.2 fallback path).
type dcaDecoder struct {
	r            io.Reader
	opus         *opuscodec.Decoder
	frameSamples int
	pending      []float32
	pendingAt    int
}

// NextRawFrame implements input.RawFrameSource: it reads the next
// length-prefixed Opus frame straight off the wire, without decoding
// it, for the mixer's RTP-passthrough path.
func (d *dcaDecoder) NextRawFrame() ([]byte, error) {
	return d.readFrame()
}

func (d *dcaDecoder) Read(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		if d.pendingAt < len(d.pending) {
			copied := copy(dst[n:], d.pending[d.pendingAt:])
			d.pendingAt += copied
			n += copied
			continue
		}
		if err := d.decodeNextFrame(); err != nil {
			return n / 2, err
		}
	}
	return n / 2, nil
}

func (d *dcaDecoder) readFrame() ([]byte, error) {
	var frameLen int16
	if err := binary.Read(d.r, binary.LittleEndian, &frameLen); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if frameLen <= 0 {
		return nil, fmt.Errorf("input: dca: invalid frame length %d", frameLen)
	}
	packet := make([]byte, frameLen)
	if _, err := io.ReadFull(d.r, packet); err != nil {
		return nil, fmt.Errorf("input: dca: reading frame: %w", err)
	}
	return packet, nil
}

func (d *dcaDecoder) decodeNextFrame() error {
	packet, err := d.readFrame()
	if err != nil {
		return err
	}
	out := make([]float32, d.frameSamples*opuscodec.Channels)
	n, err := d.opus.Decode(packet, out)
	if err != nil {
		return err
	}
	d.pending = out[:n*opuscodec.Channels]
	d.pendingAt = 0
	return nil
}

func (d *dcaDecoder) Close() error { return nil }
