package mixer

import "math"

// silentFramesBeforeStop is the length of the run of consecutive
// all-zero mix frames at which the tick loop stops sending RTP: the
// first silentFramesBeforeStop-1 frames of the run are still emitted,
// the one that completes it is not — a connected
// peer that has gone quiet doesn't need a stream of empty packets
// forever, but stopping instantly on the very first silent frame would
// read as a glitch on the wire. Spec.md §4.1 step 6.
const silentFramesBeforeStop = 5

// resumePreambleFrames is how many frames, once sound returns after a
// silence gap, the tick loop sends as literal silence in place of the
// mixed audio, clearing any remote-side decoder carry. The mixed audio
// of those frames is not sent.
const resumePreambleFrames = 3

// silenceThreshold below which a frame counts as silent. Adapted from
// the teacher's internal/vad RMS-based speech gate (vad.go), inverted:
// instead of gating transmission of captured mic input on detected
// speech, it gates RTP emission on post-mix near-silence.
const silenceThreshold = 1e-4

// EmissionGate tracks whether the tick loop should actually emit the
// RTP packet for the frame it just mixed, hysteresis-style: it takes
// silentFramesBeforeStop consecutive silent frames to stop emitting,
// and the first resumePreambleFrames frames once sound returns are
// emitted as silence.
type EmissionGate struct {
	silentRun    int
	preambleLeft int
	emitting     bool
}

// GateDecision is what Observe decided for one tick's frame.
type GateDecision struct {
	// Emit is false when the stream has gone quiet long enough that
	// nothing should be sent this tick at all.
	Emit bool

	// Silence is true for the resumePreambleFrames frames right after
	// emission resumes: the caller should send a literal silence
	// payload instead of the real mixed/passthrough audio for this
	// tick, per spec.md §4.1 step 6's decoder-carry preamble.
	Silence bool
}

// NewEmissionGate starts in the emitting state, matching a
// freshly-connected stream's initial behavior.
func NewEmissionGate() *EmissionGate {
	return &EmissionGate{emitting: true}
}

// Observe folds in one tick's mixed PCM (nil for a passthrough frame,
// which is never silent by construction — an encoder wouldn't have
// produced a frame for true silence) and returns what the tick loop
// should do with the frame it just mixed.
func (g *EmissionGate) Observe(pcm []float32) GateDecision {
	if pcm == nil {
		g.silentRun = 0
		g.preambleLeft = 0
		g.emitting = true
		return GateDecision{Emit: true}
	}

	if rms(pcm) < silenceThreshold {
		g.silentRun++
		if g.silentRun >= silentFramesBeforeStop {
			g.emitting = false
			g.preambleLeft = 0
		}
		return GateDecision{Emit: g.emitting}
	}

	wasStopped := !g.emitting
	g.silentRun = 0
	g.emitting = true
	if wasStopped {
		g.preambleLeft = resumePreambleFrames
	}
	if g.preambleLeft > 0 {
		g.preambleLeft--
		return GateDecision{Emit: true, Silence: true}
	}
	return GateDecision{Emit: true}
}

func rms(pcm []float32) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
