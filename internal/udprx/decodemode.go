package udprx

import "fmt"

// DecodeMode selects how far the receive pipeline carries an inbound
// packet before handing it to Sink. Grounded on spec.md §6's
// decode_mode option and original_source's ssrc_state.rs
// get_voice_tick, which branches on DecodeMode::Decode to skip the
// Opus decoder entirely for a host that only wants raw bitstream or
// ciphertext (e.g. relaying or recording without ever touching PCM).
type DecodeMode int

const (
	// ModeDecryptDecode decrypts and decodes every packet into PCM,
	// the default and only mode that populates DecodedFrame.PCM.
	ModeDecryptDecode DecodeMode = iota

	// ModeDecryptOnly decrypts but does not decode; DecodedFrame
	// carries the plaintext Opus payload in Payload instead of PCM.
	ModeDecryptOnly

	// ModePass does neither: DecodedFrame carries the packet exactly
	// as it arrived off the wire, still encrypted.
	ModePass
)

func (m DecodeMode) String() string {
	switch m {
	case ModeDecryptDecode:
		return "decrypt_decode"
	case ModeDecryptOnly:
		return "decrypt_only"
	case ModePass:
		return "pass"
	default:
		return "unknown"
	}
}

// ParseDecodeMode maps a config decode_mode name to a DecodeMode.
func ParseDecodeMode(name string) (DecodeMode, error) {
	switch name {
	case "", "decrypt_decode":
		return ModeDecryptDecode, nil
	case "decrypt_only":
		return ModeDecryptOnly, nil
	case "pass":
		return ModePass, nil
	default:
		return 0, fmt.Errorf("udprx: unknown decode mode %q", name)
	}
}
