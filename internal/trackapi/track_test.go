package trackapi

import (
	"testing"
	"time"
)

func TestPlayModeChangeToRefusesAfterEnd(t *testing.T) {
	m := ModeEnd
	m.ChangeTo(ModePlay)
	if m != ModeEnd {
		t.Fatalf("ChangeTo after End = %v, want End to stick", m)
	}
}

func TestPlayModeChangeTo(t *testing.T) {
	m := ModePlay
	m.ChangeTo(ModePause)
	if m != ModePause {
		t.Fatalf("ChangeTo(Pause) = %v, want Pause", m)
	}
}

func TestPlayModeIsDone(t *testing.T) {
	if ModePlay.IsDone() {
		t.Error("ModePlay.IsDone() = true, want false")
	}
	if !ModeEnd.IsDone() {
		t.Error("ModeEnd.IsDone() = false, want true")
	}
}

func TestLoopStateDecrement(t *testing.T) {
	l := LoopFinite(2)
	if !l.Decrement() || l.N != 1 {
		t.Fatalf("first decrement: ok=%v N=%d, want true/1", true, l.N)
	}
	if !l.Decrement() || l.N != 0 {
		t.Fatalf("second decrement: N=%d, want 0", l.N)
	}
	if l.Decrement() {
		t.Fatal("third decrement should report false, out of loops")
	}
}

func TestLoopInfiniteNeverStops(t *testing.T) {
	l := LoopInfinite()
	for i := 0; i < 100; i++ {
		if !l.Decrement() {
			t.Fatalf("infinite loop stopped decrementing at iteration %d", i)
		}
	}
}

func TestActionCombineKeepsLatestSeek(t *testing.T) {
	first := 5 * time.Second
	second := 10 * time.Second
	a := Action{SeekTo: &first}
	a.Combine(Action{SeekTo: &second})
	if a.SeekTo == nil || *a.SeekTo != second {
		t.Fatalf("Combine kept %v, want %v", a.SeekTo, second)
	}
}

func TestActionCombineOrsMakePlayable(t *testing.T) {
	a := Action{MakePlayable: false}
	a.Combine(Action{MakePlayable: true})
	if !a.MakePlayable {
		t.Fatal("Combine did not OR MakePlayable")
	}
}

func TestTrackHandlePlayDoesNotBlockOnFullChannel(t *testing.T) {
	commands := make(chan TrackCommand, 1)
	commands <- TrackCommand{Kind: CmdStop}
	h := NewTrackHandle(commands)

	done := make(chan struct{})
	go func() {
		h.Play()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Play() blocked on a full command channel")
	}
}

func TestTrackHandleGetInfoRoundTrips(t *testing.T) {
	commands := make(chan TrackCommand, 4)
	h := NewTrackHandle(commands)

	got := make(chan TrackState, 1)
	go func() { got <- h.GetInfo() }()

	cmd := <-commands
	if cmd.Kind != CmdRequestState {
		t.Fatalf("Kind = %v, want CmdRequestState", cmd.Kind)
	}
	want := TrackState{Playing: ModePlay, Volume: 1.0}
	cmd.Request <- want

	if s := <-got; s != want {
		t.Fatalf("GetInfo() = %+v, want %+v", s, want)
	}
}

func TestNewTrackDefaults(t *testing.T) {
	tr := NewTrack(nil)
	if tr.Playing != ModePlay {
		t.Errorf("Playing = %v, want ModePlay", tr.Playing)
	}
	if tr.Volume != 1.0 {
		t.Errorf("Volume = %v, want 1.0", tr.Volume)
	}
	if tr.Loops.Infinite || tr.Loops.N != 0 {
		t.Errorf("Loops = %+v, want finite with N=0", tr.Loops)
	}
}
