package udprx

import (
	"strings"
	"time"

	"voicedriver/internal/opuscodec"
)

// decodeSizesMs is the ladder of assumed Opus frame durations a
// per-SSRC decoder bumps through on a BufferTooSmall error, in order:
// 20ms covers the overwhelming majority of real traffic, 40/60ms cover
// a sender deliberately batching frames. Grounded on original_source's
// udp_rx/ssrc_state.rs.
var decodeSizesMs = [...]int{20, 40, 60}

// SsrcState is everything the udp-rx task tracks for one remote
// sender: its own Opus decoder (decoders carry state across frames and
// must not be shared across streams), its jitter buffer, and the
// auto-bumped decode size. Grounded on original_source's
// udp_rx/ssrc_state.rs.
type SsrcState struct {
	SSRC    uint32
	Decoder *opuscodec.Decoder
	Playout *PlayoutBuffer

	sizeIdx  int
	lastSeen time.Time
}

// NewSsrcState builds a fresh per-sender decode+jitter pipeline.
func NewSsrcState(ssrc uint32, bufferLength, spikeLength int) (*SsrcState, error) {
	dec, err := opuscodec.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &SsrcState{
		SSRC:     ssrc,
		Decoder:  dec,
		Playout:  NewPlayoutBuffer(bufferLength, spikeLength),
		lastSeen: time.Now(),
	}, nil
}

// Touch records that a packet was just seen for this sender, resetting
// its idle-prune clock.
func (s *SsrcState) Touch(now time.Time) { s.lastSeen = now }

// Idle reports whether this sender has gone silent for longer than
// timeout, the udp-rx task's cue to prune it (original_source's
// prune_time).
func (s *SsrcState) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.lastSeen) > timeout
}

func (s *SsrcState) decodeSizeMillis() int { return decodeSizesMs[s.sizeIdx] }

func (s *SsrcState) bumpDecodeSize() bool {
	if s.sizeIdx >= len(decodeSizesMs)-1 {
		return false
	}
	s.sizeIdx++
	return true
}

func (s *SsrcState) frameBuffer() []float32 {
	samples := opuscodec.SampleRate / 1000 * s.decodeSizeMillis() * opuscodec.Channels
	return make([]float32, samples)
}

// Decode decodes one Opus packet (nil requests PLC for a lost packet)
// into interleaved stereo float32 PCM. On a BufferTooSmall error from
// the underlying decoder it bumps the assumed frame size once and
// retries, remembering the larger size for subsequent calls on this
// sender — original_source's decode-size auto-bump.
func (s *SsrcState) Decode(packet []byte) ([]float32, error) {
	out := s.frameBuffer()
	n, err := s.Decoder.Decode(packet, out)
	if err == nil {
		return out[:n*opuscodec.Channels], nil
	}
	if !isBufferTooSmall(err) || !s.bumpDecodeSize() {
		return nil, err
	}
	out = s.frameBuffer()
	n, err = s.Decoder.Decode(packet, out)
	if err != nil {
		return nil, err
	}
	return out[:n*opuscodec.Channels], nil
}

// DecodeFEC recovers the frame lost just before the current packet
// from the current packet's in-band FEC payload (spec.md §4.6).
func (s *SsrcState) DecodeFEC(packet []byte) ([]float32, error) {
	out := s.frameBuffer()
	n, err := s.Decoder.DecodeFEC(packet, out)
	if err != nil {
		return nil, err
	}
	return out[:n*opuscodec.Channels], nil
}

func isBufferTooSmall(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "buffer") &&
		strings.Contains(strings.ToLower(err.Error()), "small")
}
