// Package rtpcrypto implements RTP header construction and the
// XSalsa20-Poly1305 payload encryption schemes used over a voice
// transport, grounded on spec.md §4.5/§6 and original_source's
// message/mixer.rs (`crypto_secretbox::XSalsa20Poly1305`). RTP framing
// uses github.com/pion/rtp; encryption uses
// golang.org/x/crypto/nacl/secretbox, the direct Go equivalent of the
// Rust crypto_secretbox crate, already an indirect dependency of the
// teacher's go.mod via the pion stack.
package rtpcrypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// CryptoMode selects how the 24-byte secretbox nonce is derived and
// transmitted alongside an encrypted RTP payload.
type CryptoMode int

const (
	// ModeNormal derives the nonce from the 12-byte RTP header,
	// zero-padded to 24 bytes. No extra bytes are sent.
	ModeNormal CryptoMode = iota

	// ModeSuffix appends a fresh random 24-byte nonce to the end of
	// every encrypted payload.
	ModeSuffix

	// ModeLite appends a 4-byte big-endian incrementing counter, used
	// as the nonce zero-padded to 24 bytes. Cheaper on the wire than
	// Suffix at the cost of requiring strict ordering on encrypt.
	ModeLite
)

func (m CryptoMode) String() string {
	switch m {
	case ModeNormal:
		return "xsalsa20_poly1305"
	case ModeSuffix:
		return "xsalsa20_poly1305_suffix"
	case ModeLite:
		return "xsalsa20_poly1305_lite"
	default:
		return "unknown"
	}
}

// ParseCryptoMode maps a voice-gateway crypto mode name to a CryptoMode.
func ParseCryptoMode(name string) (CryptoMode, error) {
	switch name {
	case "xsalsa20_poly1305":
		return ModeNormal, nil
	case "xsalsa20_poly1305_suffix":
		return ModeSuffix, nil
	case "xsalsa20_poly1305_lite":
		return ModeLite, nil
	default:
		return 0, fmt.Errorf("rtpcrypto: unknown crypto mode %q", name)
	}
}

// Cipher encrypts/decrypts RTP payloads under one CryptoMode and a
// fixed 32-byte session key.
type Cipher struct {
	mode    CryptoMode
	key     [32]byte
	counter uint32 // ModeLite only
}

// NewCipher builds a Cipher for mode using key (must be exactly 32
// bytes, the session key negotiated over the voice gateway).
func NewCipher(mode CryptoMode, key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("rtpcrypto: key must be 32 bytes, got %d", len(key))
	}
	c := &Cipher{mode: mode}
	copy(c.key[:], key)
	return c, nil
}

// Encrypt seals plaintext, returning the encrypted payload to place
// after the RTP header (with any mode-specific trailer already
// appended) and ready to write to the wire as-is. header is the
// 12-byte RTP header already marshaled for this packet, used verbatim
// as the nonce source under ModeNormal.
func (c *Cipher) Encrypt(header, plaintext []byte) ([]byte, error) {
	var nonce [24]byte

	switch c.mode {
	case ModeNormal:
		copy(nonce[:], header)
		sealed := secretbox.Seal(nil, plaintext, &nonce, &c.key)
		return sealed, nil

	case ModeSuffix:
		if _, err := rand.Read(nonce[:]); err != nil {
			return nil, fmt.Errorf("rtpcrypto: generating suffix nonce: %w", err)
		}
		sealed := secretbox.Seal(nil, plaintext, &nonce, &c.key)
		return append(sealed, nonce[:]...), nil

	case ModeLite:
		c.counter++
		putUint32BE(nonce[:4], c.counter)
		sealed := secretbox.Seal(nil, plaintext, &nonce, &c.key)
		return append(sealed, nonce[:4]...), nil

	default:
		return nil, fmt.Errorf("rtpcrypto: unknown crypto mode %v", c.mode)
	}
}

// Decrypt opens a payload produced by Encrypt, given the 12-byte RTP
// header it arrived with.
func (c *Cipher) Decrypt(header, payload []byte) ([]byte, error) {
	var nonce [24]byte
	body := payload

	switch c.mode {
	case ModeNormal:
		copy(nonce[:], header)

	case ModeSuffix:
		if len(payload) < 24 {
			return nil, fmt.Errorf("rtpcrypto: suffix payload too short")
		}
		split := len(payload) - 24
		copy(nonce[:], payload[split:])
		body = payload[:split]

	case ModeLite:
		if len(payload) < 4 {
			return nil, fmt.Errorf("rtpcrypto: lite payload too short")
		}
		split := len(payload) - 4
		copy(nonce[:4], payload[split:])
		body = payload[:split]

	default:
		return nil, fmt.Errorf("rtpcrypto: unknown crypto mode %v", c.mode)
	}

	opened, ok := secretbox.Open(nil, body, &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("rtpcrypto: decrypt: authentication failed")
	}
	return opened, nil
}

func putUint32BE(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}
