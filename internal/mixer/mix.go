package mixer

import (
	"io"
	"math"

	"voicedriver/internal/input"
	"voicedriver/internal/trackapi"
)

// softClipThreshold is where the limiter starts compressing instead of
// passing samples straight through. Grounded on spec.md §4.1 step 5
// ("soft-clip"), redesigned from the teacher's hard clampFloat32 in
// audio.go's playbackLoop — a hard clamp on a multi-track mix produces
// audible crackle at the ceiling, a soft knee doesn't.
const softClipThreshold = 0.95

func softClip(x float32) float32 {
	ax := float32(math.Abs(float64(x)))
	if ax <= softClipThreshold {
		return x
	}
	sign := float32(1)
	if x < 0 {
		sign = -1
	}
	over := ax - softClipThreshold
	compressed := softClipThreshold + (1-softClipThreshold)*over/(1+over)
	if compressed > 1 {
		compressed = 1
	}
	return sign * compressed
}

// hardClip clamps straight to [-1,1], the use_softclip=false alternate
// path spec.md §4.1 step 5 calls for.
func hardClip(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// mixResult is the outcome of one tick's mix step.
type mixResult struct {
	status MixStatus

	// PCM is populated unless Passthrough is true.
	PCM []float32

	// Passthrough is true when exactly one track qualified to have its
	// original encoded Opus payload forwarded as-is (spec.md §4.4).
	Passthrough bool
	RawPayload  []byte
}

// Tick advances every Ready track by one frame, mixes their
// contributions (or detects a passthrough-eligible single track), and
// returns the result for the tick loop to RTP-encode/emit. Tracks
// whose decode reaches EOF are looped or ended in place. Grounded on
// spec.md §4.1 steps 3-5 and §4.4, and original_source's mixer/mix.rs.
func Tick(tracks []*InternalTrack, pool *BlockingPool, out []float32, useSoftclip bool) mixResult {
	for i := range out {
		out[i] = 0
	}

	var status MixStatus
	playing := make([]*InternalTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.State == StatePreparing {
			status.TracksPreparing++
		}
		if t.Playing == trackapi.ModePlay && t.State == StateReady {
			playing = append(playing, t)
		}
	}

	if len(playing) == 0 {
		return mixResult{status: status, PCM: out}
	}

	if len(playing) == 1 {
		solo := playing[0]
		if source, ok := passthroughEligible(solo); ok {
			raw, err := source.NextRawFrame()
			if err == nil {
				solo.Decode.Passthrough = PassthroughActive
				solo.Position += trackapi.FrameDuration
				solo.PlayTime += trackapi.FrameDuration
				status.TracksMixed = 1
				status.Passthrough = true
				return mixResult{status: status, Passthrough: true, RawPayload: raw}
			}
			if err == io.EOF {
				solo.doLoop(pool)
				if solo.Playing == trackapi.ModeEnd {
					status.TracksEnded++
				}
				return mixResult{status: status}
			}
			if err != nil {
				solo.DecodeErr = &trackapi.PlayError{Kind: trackapi.PlayErrorDecode, Err: err}
				solo.Playing = trackapi.ModeEnd
				status.TracksEnded++
				return mixResult{status: status}
			}
		}
	}

	for _, t := range playing {
		if t.Decode.Passthrough != PassthroughBlocked {
			t.Decode.Passthrough = PassthroughBlocked
		}
		n, err := t.Decode.Engine.Next(t.Decode.Scratch[:])
		for i := 0; i < n; i++ {
			out[i] += t.Decode.Scratch[i] * t.Volume
		}
		t.Position += trackapi.FrameDuration
		t.PlayTime += trackapi.FrameDuration
		status.TracksMixed++

		if err == io.EOF {
			t.doLoop(pool)
			if t.Playing == trackapi.ModeEnd {
				status.TracksEnded++
			}
		} else if err != nil {
			t.DecodeErr = &trackapi.PlayError{Kind: trackapi.PlayErrorDecode, Err: err}
			t.Playing = trackapi.ModeEnd
			status.TracksEnded++
		}
	}

	clip := hardClip
	if useSoftclip {
		clip = softClip
	}
	for i := range out {
		out[i] = clip(out[i])
	}

	return mixResult{status: status, PCM: out}
}

// passthroughEligible reports whether t currently qualifies to have
// its original encoded frames forwarded unmodified: full volume, never
// blocked, native (unresampled) rate, and a decoder whose container
// already carries Opus.
func passthroughEligible(t *InternalTrack) (input.RawFrameSource, bool) {
	if t.Volume != 1.0 {
		return nil, false
	}
	if t.Decode.Passthrough == PassthroughBlocked {
		return nil, false
	}
	if !t.Decode.Engine.Native() {
		return nil, false
	}
	source, ok := t.Decode.Parsed.Decoder.(input.RawFrameSource)
	return source, ok
}
