package mixer

import "testing"

func loudFrame() []float32 {
	pcm := make([]float32, 8)
	for i := range pcm {
		pcm[i] = 0.5
	}
	return pcm
}

func quietFrame() []float32 {
	return make([]float32, 8) // all zero, well under silenceThreshold
}

func TestEmissionGateStartsEmitting(t *testing.T) {
	g := NewEmissionGate()
	if !g.Observe(loudFrame()).Emit {
		t.Fatal("Observe() false on the first loud frame from a fresh gate")
	}
}

func TestEmissionGateStopsAfterConsecutiveSilentFrames(t *testing.T) {
	g := NewEmissionGate()
	var last GateDecision
	for i := 0; i < silentFramesBeforeStop; i++ {
		last = g.Observe(quietFrame())
	}
	if last.Emit {
		t.Fatal("Observe() still true after silentFramesBeforeStop consecutive silent frames")
	}
}

func TestEmissionGateKeepsEmittingBeforeThreshold(t *testing.T) {
	g := NewEmissionGate()
	for i := 0; i < silentFramesBeforeStop-1; i++ {
		if !g.Observe(quietFrame()).Emit {
			t.Fatalf("Observe() false on silent frame %d, want still emitting below threshold", i)
		}
	}
}

func TestEmissionGateResumesImmediatelyOnSound(t *testing.T) {
	g := NewEmissionGate()
	for i := 0; i < silentFramesBeforeStop; i++ {
		g.Observe(quietFrame())
	}
	if !g.Observe(loudFrame()).Emit {
		t.Fatal("Observe() false on the first loud frame after a silence gap")
	}
}

func TestEmissionGatePassthroughFrameAlwaysEmits(t *testing.T) {
	g := NewEmissionGate()
	for i := 0; i < silentFramesBeforeStop; i++ {
		g.Observe(quietFrame())
	}
	if !g.Observe(nil).Emit {
		t.Fatal("Observe(nil) false — a passthrough frame should always emit")
	}
}

func TestEmissionGateForcesSilencePreambleOnResume(t *testing.T) {
	g := NewEmissionGate()
	for i := 0; i < silentFramesBeforeStop; i++ {
		g.Observe(quietFrame())
	}
	for i := 0; i < resumePreambleFrames; i++ {
		d := g.Observe(loudFrame())
		if !d.Emit || !d.Silence {
			t.Fatalf("preamble frame %d: got %+v, want Emit=true Silence=true", i, d)
		}
	}
	d := g.Observe(loudFrame())
	if !d.Emit || d.Silence {
		t.Fatalf("frame after preamble: got %+v, want Emit=true Silence=false", d)
	}
}

func TestEmissionGatePassthroughDoesNotTriggerPreamble(t *testing.T) {
	g := NewEmissionGate()
	for i := 0; i < silentFramesBeforeStop; i++ {
		g.Observe(quietFrame())
	}
	g.Observe(nil)
	d := g.Observe(loudFrame())
	if !d.Emit || d.Silence {
		t.Fatalf("loud frame after a passthrough reset: got %+v, want Emit=true Silence=false", d)
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	if got := rms(quietFrame()); got != 0 {
		t.Fatalf("rms(quietFrame) = %v, want 0", got)
	}
}

func TestRMSOfConstantSignal(t *testing.T) {
	pcm := []float32{0.5, 0.5, 0.5, 0.5}
	if got := rms(pcm); got != 0.5 {
		t.Fatalf("rms() = %v, want 0.5", got)
	}
}
