package rtpcrypto

import (
	"fmt"

	"github.com/pion/rtp"
)

// OpusPayloadType is the dynamic RTP payload type this driver always
// negotiates for Opus, matching the teacher's own fixed payload type
// in transport.go.
const OpusPayloadType = 120

// TimestampStep is how much the 32-bit RTP timestamp advances per
// 20ms/960-sample frame at 48kHz.
const TimestampStep = 960

// RtpState tracks the per-stream sequence number and timestamp a
// sending mixer advances every tick, and builds the encrypted RTP
// packets the udp transport writes to the wire. Grounded on spec.md
// §4.5 and original_source's message/mixer.rs.
type RtpState struct {
	SSRC      uint32
	Sequence  uint16
	Timestamp uint32

	cipher *Cipher
}

// NewRtpState starts a fresh stream at exactly the given
// sequence/timestamp origin; it does not pick random starting values
// itself. Driver passes ConnectionInfo's StartSequence/StartTimestamp.
func NewRtpState(ssrc uint32, startSequence uint16, startTimestamp uint32, cipher *Cipher) *RtpState {
	return &RtpState{SSRC: ssrc, Sequence: startSequence, Timestamp: startTimestamp, cipher: cipher}
}

// NextPacket builds, encrypts and marshals one RTP packet carrying
// payload (an already Opus-encoded frame, or the passthrough bytes
// read straight off a compressed source — spec.md §4.4), then
// advances Sequence and Timestamp for the next call.
func (s *RtpState) NextPacket(payload []byte, marker bool) ([]byte, error) {
	header := rtp.Header{
		Version:        2,
		Marker:         marker,
		PayloadType:    OpusPayloadType,
		SequenceNumber: s.Sequence,
		Timestamp:      s.Timestamp,
		SSRC:           s.SSRC,
	}

	headerBytes, err := header.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: marshal header: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(headerBytes, payload)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: encrypt: %w", err)
	}

	s.Sequence++
	s.Timestamp += TimestampStep

	return append(headerBytes, encrypted...), nil
}

// ParsePacket splits and decrypts a received RTP packet into its
// header and plaintext Opus payload.
func (s *RtpState) ParsePacket(raw []byte) (rtp.Header, []byte, error) {
	var packet rtp.Packet
	if err := packet.Unmarshal(raw); err != nil {
		return rtp.Header{}, nil, fmt.Errorf("rtpcrypto: unmarshal: %w", err)
	}

	headerBytes := raw[:len(raw)-len(packet.Payload)]
	plaintext, err := s.cipher.Decrypt(headerBytes, packet.Payload)
	if err != nil {
		return rtp.Header{}, nil, fmt.Errorf("rtpcrypto: decrypt: %w", err)
	}
	return packet.Header, plaintext, nil
}
