// Package mixer implements the driver's real-time tick loop: draining
// per-track commands, readying inputs on the blocking pool, mixing
// audio, and emitting RTP once every 20ms. Grounded on spec.md §4 and
// original_source's driver/tasks/mixer/*.
package mixer

import (
	"time"

	"voicedriver/internal/input"
)

// InputState is the readiness state machine every InternalTrack's
// input moves through: NotReady, Preparing, Ready. A seek on a Ready
// track, or a loop-around, sends it back to Preparing. Grounded
// on original_source's driver/tasks/mixer/state.rs.
type InputState int

const (
	// StateNotReady means the input has not yet been submitted to the
	// blocking pool for container probing/decoding.
	StateNotReady InputState = iota

	// StatePreparing means a probe/decode request is in flight on the
	// blocking pool; the mixer polls a one-shot completion channel
	// for it once per tick without blocking.
	StatePreparing

	// StateReady means the input has a live Decoder and resample
	// Engine and can be polled for audio every tick.
	StateReady
)

func (s InputState) String() string {
	switch s {
	case StateNotReady:
		return "not-ready"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PreparingState holds what the mixer needs while an input is on the
// blocking pool: the channel the pool worker will deliver its result
// on, and any seek the track received mid-flight. A later seek
// overwrites an earlier one (last-writer-wins) rather than queuing —
// grounded on spec.md §9 Open Question (a) and original_source's
// handling of a queued_seek during Preparing.
type PreparingState struct {
	Result      <-chan prepareResult
	QueuedSeek  *time.Duration
}

type prepareResult struct {
	parsed *input.Parsed
	err    error
}

// Passthrough classifies whether a track's RTP payload can be copied
// straight from its container instead of being decoded and re-encoded
// by the mixer. Grounded on spec.md §4.4 and original_source's
// mixer/result.rs MixType.
type Passthrough int

const (
	// PassthroughInactive means the track has not yet sent a frame by
	// either path. A track whose frame goes through the PCM mix path is
	// marked PassthroughBlocked, not left Inactive.
	PassthroughInactive Passthrough = iota

	// PassthroughActive means the track's current frame is copied
	// verbatim from its source Opus payload straight to the wire.
	PassthroughActive

	// PassthroughBlocked means this track can never use passthrough
	// again for its lifetime: its volume was changed from 1.0 while
	// Ready, or one of its frames went through the PCM mix path —
	// alongside other playing tracks, or alone but not eligible.
	PassthroughBlocked
)

func (p Passthrough) String() string {
	switch p {
	case PassthroughInactive:
		return "inactive"
	case PassthroughActive:
		return "active"
	case PassthroughBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// DecodeState is everything a Ready track carries for mixing: its
// Parsed input, the fixed-output resample engine wrapped around it,
// and scratch space for the current tick's decoded frame. Grounded on
// original_source's driver/tasks/mixer/state.rs DecodeState.
type DecodeState struct {
	Parsed      *input.Parsed
	Engine      *input.Engine
	Passthrough Passthrough
	Scratch     [input.FrameSamples]float32
}

// NewDecodeState builds decode state around a freshly parsed input.
func NewDecodeState(parsed *input.Parsed) (*DecodeState, error) {
	engine, err := input.NewEngine(parsed)
	if err != nil {
		return nil, err
	}
	passthrough := PassthroughInactive
	return &DecodeState{Parsed: parsed, Engine: engine, Passthrough: passthrough}, nil
}

// Close releases the underlying decoder.
func (d *DecodeState) Close() error { return d.Engine.Close() }
