// Package opuscodec wraps gopkg.in/hraban/opus.v2 with the setup
// sequence the teacher's audio.go uses for its own capture encoder:
// fixed sample rate/channel count, DTX off, in-band FEC on, and an
// explicit packet-loss-percent hint the adaptive ladder can update.
// Repurposed here from mic-capture encode to track re-encode
// (internal/mixer/mix.go, non-passthrough) and connection decode
// (internal/udprx/ssrc.go).
package opuscodec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// SampleRate and Channels are fixed for the whole driver (spec.md §1
// Non-goals: fixed 48kHz stereo output).
const (
	SampleRate = 48000
	Channels   = 2
)

// MaxPacketBytes bounds a single encoded Opus frame, matching the
// teacher's opusMaxPacketBytes constant in audio.go.
const MaxPacketBytes = 4000

// Encoder wraps opus.Encoder with the fixed rate/channels this driver
// always uses, plus the FEC/loss-percent knobs internal/adapt drives.
type Encoder struct {
	enc *opus.Encoder
}

// NewEncoder builds an encoder at bitrateKbps with in-band FEC enabled
// and DTX disabled — a continuously-ticking mixer has no use for
// discontinuous transmission, it always has a frame (silent or not)
// to emit every 20ms (spec.md §4.1 step 6).
func NewEncoder(bitrateKbps int) (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: new encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrateKbps * 1000); err != nil {
		return nil, fmt.Errorf("opuscodec: set bitrate: %w", err)
	}
	if err := enc.SetInBandFEC(true); err != nil {
		return nil, fmt.Errorf("opuscodec: set fec: %w", err)
	}
	if err := enc.SetDTX(false); err != nil {
		return nil, fmt.Errorf("opuscodec: set dtx: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// SetBitrate updates the target bitrate mid-stream, used by
// Driver.ApplyQualityHint (internal/adapt's ladder).
func (e *Encoder) SetBitrate(kbps int) error {
	return e.enc.SetBitrate(kbps * 1000)
}

// SetPacketLossPercent informs the encoder's FEC of the observed
// network loss rate, so in-band FEC redundancy scales with it.
func (e *Encoder) SetPacketLossPercent(pct int) error {
	return e.enc.SetPacketLossPerc(pct)
}

// Encode encodes one 20ms frame (960 samples/channel, interleaved
// stereo float32 in pcm) into a fresh byte slice.
func (e *Encoder) Encode(pcm []float32) ([]byte, error) {
	out := make([]byte, MaxPacketBytes)
	n, err := e.enc.EncodeFloat32(pcm, out)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: encode: %w", err)
	}
	return out[:n], nil
}

// Decoder wraps opus.Decoder, with the frame-size auto-bump
// internal/udprx/ssrc.go drives on BufferTooSmall.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder builds a decoder at the driver's fixed rate/channels.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opuscodec: new decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes packet into dst, which must hold one frame of the
// expected duration (ms/1000*SampleRate*Channels float32s).
// A nil packet requests PLC (packet-loss concealment) for one frame.
func (d *Decoder) Decode(packet []byte, dst []float32) (n int, err error) {
	n, err = d.dec.DecodeFloat32(packet, dst)
	if err != nil {
		return 0, fmt.Errorf("opuscodec: decode: %w", err)
	}
	return n, nil
}

// DecodeFEC recovers the previous frame from the forward-error
// correction payload carried in packet, used when the packet before
// this one was lost but this one arrived (spec.md §4.6).
func (d *Decoder) DecodeFEC(packet []byte, dst []float32) (n int, err error) {
	n, err = d.dec.DecodeFloat32FEC(packet, dst)
	if err != nil {
		return 0, fmt.Errorf("opuscodec: decode fec: %w", err)
	}
	return n, nil
}
