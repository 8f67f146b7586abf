package mixer

import "testing"

func TestInputStateString(t *testing.T) {
	cases := map[InputState]string{
		StateNotReady:  "not-ready",
		StatePreparing: "preparing",
		StateReady:     "ready",
		InputState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("InputState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestPassthroughString(t *testing.T) {
	cases := map[Passthrough]string{
		PassthroughInactive: "inactive",
		PassthroughActive:   "active",
		PassthroughBlocked:  "blocked",
		Passthrough(99):     "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Passthrough(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestNewDecodeStateStartsInactive(t *testing.T) {
	parsed := newFakeParsed(10)
	ds, err := NewDecodeState(parsed)
	if err != nil {
		t.Fatalf("NewDecodeState: %v", err)
	}
	if ds.Passthrough != PassthroughInactive {
		t.Fatalf("Passthrough = %v, want PassthroughInactive", ds.Passthrough)
	}
	if ds.Engine == nil {
		t.Fatal("Engine is nil")
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
