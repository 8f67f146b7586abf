package voicedriver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config controls the mixer/udprx tasks' fixed parameters (spec.md §6).
// Constructed once at Driver creation; not hot-reloaded mid-session.
type Config struct {
	// PlayoutBufferLength is the target steady-state depth, in packets,
	// of a per-SSRC jitter buffer before it starts draining.
	PlayoutBufferLength int `json:"playout_buffer_length"`

	// PlayoutSpikeLength is additional headroom above PlayoutBufferLength
	// the buffer may grow to absorb a burst before it starts dropping
	// the oldest packets.
	PlayoutSpikeLength int `json:"playout_spike_length"`

	// DecodeSizeHint is stored and saved with the config, but nothing
	// reads it: a fresh SsrcState always starts at 20ms and bumps from
	// there on BufferTooSmall (internal/udprx/ssrc.go).
	DecodeSizeHint time.Duration `json:"decode_size_hint_ms"`

	// CryptoMode selects the RTP header-extension/nonce layout.
	CryptoMode string `json:"crypto_mode"`

	// DecodeMode controls how far the receive pipeline carries an
	// inbound packet: "decrypt_decode" (default), "decrypt_only", or
	// "pass". See internal/udprx.DecodeMode.
	DecodeMode string `json:"decode_mode"`

	// BitrateKbps is the initial Opus encode bitrate for tracks the
	// mixer re-encodes (non-passthrough). Adjustable later via
	// Driver.ApplyQualityHint.
	BitrateKbps int `json:"bitrate_kbps"`

	// UseSoftclip selects the mixer's output limiter: a soft knee
	// above softClipThreshold when true, a hard clamp to [-1,1] when
	// false.
	UseSoftclip bool `json:"use_softclip"`
}

// Default returns the configuration the teacher ships out of the box,
// repurposed from user-preference defaults to driver defaults.
func Default() Config {
	return Config{
		PlayoutBufferLength: 10,
		PlayoutSpikeLength:  6,
		DecodeSizeHint:      20 * time.Millisecond,
		CryptoMode:          "xsalsa20_poly1305_lite",
		DecodeMode:          "decrypt_decode",
		BitrateKbps:         64,
		UseSoftclip:         true,
	}
}

// LoadConfig reads a JSON-encoded Config from path. Following the
// teacher's posture in internal/config, a missing file is not an error:
// Default() is returned instead so a fresh host never fails to start.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as indented JSON, creating parent
// directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
