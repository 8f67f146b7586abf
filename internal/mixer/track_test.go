package mixer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/trackapi"
)

func newTestTrack(commands chan trackapi.TrackCommand) *InternalTrack {
	src := &fakeSource{open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}}
	return decomposeTrack(interconnect.TrackContext{
		ID: 1,
		Track: trackapi.Track{
			Playing: trackapi.ModePlay,
			Volume:  1.0,
			Loops:   trackapi.LoopFinite(0),
			Input:   src,
			Events:  trackapi.NewEventStore(),
		},
		Commands: commands,
	})
}

func TestDecomposeTrackStartsNotReady(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	if tr.State != StateNotReady {
		t.Fatalf("State = %v, want StateNotReady", tr.State)
	}
	if tr.Playing != trackapi.ModePlay {
		t.Fatalf("Playing = %v, want ModePlay", tr.Playing)
	}
}

func TestProcessCommandsAppliesSetVolumeAndCombinesActions(t *testing.T) {
	cmds := make(chan trackapi.TrackCommand, 4)
	tr := newTestTrack(cmds)

	cmds <- trackapi.TrackCommand{Kind: trackapi.CmdSetVolume, Volume: 0.5}
	cmds <- trackapi.TrackCommand{Kind: trackapi.CmdMakePlayable}
	close(cmds)

	action := tr.processCommands(time.Now())
	if tr.Volume != 0.5 {
		t.Fatalf("Volume = %v, want 0.5", tr.Volume)
	}
	if !action.MakePlayable {
		t.Fatal("combined Action.MakePlayable = false, want true")
	}
}

func TestApplyCommandSetVolumeBlocksPassthroughOnChange(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	tr.Decode = &DecodeState{Passthrough: PassthroughActive}

	var action trackapi.Action
	tr.applyCommand(trackapi.TrackCommand{Kind: trackapi.CmdSetVolume, Volume: 0.75}, time.Now(), &action)

	if tr.Decode.Passthrough != PassthroughBlocked {
		t.Fatalf("Passthrough = %v, want PassthroughBlocked after a volume change", tr.Decode.Passthrough)
	}
}

func TestApplyCommandSetVolumeToSameValueDoesNotBlock(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	tr.Volume = 1.0
	tr.Decode = &DecodeState{Passthrough: PassthroughActive}

	var action trackapi.Action
	tr.applyCommand(trackapi.TrackCommand{Kind: trackapi.CmdSetVolume, Volume: 1.0}, time.Now(), &action)

	if tr.Decode.Passthrough != PassthroughActive {
		t.Fatalf("Passthrough = %v, want unchanged PassthroughActive", tr.Decode.Passthrough)
	}
}

func TestApplyCommandStopMovesStraightToEnd(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	var action trackapi.Action
	tr.applyCommand(trackapi.TrackCommand{Kind: trackapi.CmdStop}, time.Now(), &action)
	if tr.Playing != trackapi.ModeEnd {
		t.Fatalf("Playing = %v, want ModeEnd after CmdStop", tr.Playing)
	}
}

func TestApplyCommandRequestStateRepliesOnChannel(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	reply := make(chan trackapi.TrackState, 1)

	var action trackapi.Action
	tr.applyCommand(trackapi.TrackCommand{Kind: trackapi.CmdRequestState, Request: reply}, time.Now(), &action)

	select {
	case state := <-reply:
		if state.Playing != trackapi.ModePlay {
			t.Fatalf("state.Playing = %v, want ModePlay", state.Playing)
		}
	default:
		t.Fatal("CmdRequestState did not reply on the request channel")
	}
}

func TestSeekDuringNotReadyBeginsReadyingAndStashesSeek(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	pool := NewBlockingPool()
	defer pool.Close()

	tr.seek(3*time.Second, pool)

	if tr.State != StatePreparing {
		t.Fatalf("State = %v, want StatePreparing after seeking a NotReady track", tr.State)
	}
	if tr.Prep == nil || tr.Prep.QueuedSeek == nil || *tr.Prep.QueuedSeek != 3*time.Second {
		t.Fatal("seek on a NotReady track did not stash the requested position")
	}
}

func TestSeekDuringPreparingOverwritesStashedSeek(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	tr.State = StatePreparing
	tr.Prep = &PreparingState{Result: make(chan prepareResult)}

	pool := NewBlockingPool()
	defer pool.Close()

	tr.seek(1*time.Second, pool)
	tr.seek(2*time.Second, pool)

	if *tr.Prep.QueuedSeek != 2*time.Second {
		t.Fatalf("QueuedSeek = %v, want the latest seek (2s)", *tr.Prep.QueuedSeek)
	}
}

func TestDoLoopEndsTrackWhenNoLoopsRemain(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	tr.Loops = trackapi.LoopFinite(0)

	pool := NewBlockingPool()
	defer pool.Close()

	tr.doLoop(pool)
	if tr.Playing != trackapi.ModeEnd {
		t.Fatalf("Playing = %v, want ModeEnd when loop count is exhausted", tr.Playing)
	}
}

func TestDoLoopRestartsWhenLoopsRemain(t *testing.T) {
	cmds := make(chan trackapi.TrackCommand, 1)
	tr := newTestTrack(cmds)
	tr.Loops = trackapi.LoopFinite(1)
	tr.Position = 5 * time.Second

	pool := NewBlockingPool()
	defer pool.Close()

	tr.doLoop(pool)

	if tr.Playing == trackapi.ModeEnd {
		t.Fatal("Playing = ModeEnd, want playback to continue after a loop restart")
	}
	if tr.Position != 0 {
		t.Fatalf("Position = %v, want reset to 0 after a loop restart", tr.Position)
	}
	if tr.State != StatePreparing {
		t.Fatalf("State = %v, want StatePreparing after a loop restart resubmits to the pool", tr.State)
	}
}

func TestGetOrReadyInputAdvancesNotReadyToPreparing(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	pool := NewBlockingPool()
	defer pool.Close()

	decode, perr := tr.getOrReadyInput(pool)
	if decode != nil || perr != nil {
		t.Fatalf("getOrReadyInput on a NotReady track = (%v, %v), want (nil, nil)", decode, perr)
	}
	if tr.State != StatePreparing {
		t.Fatalf("State = %v, want StatePreparing", tr.State)
	}
}

func TestGetOrReadyInputReportsParseError(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	result := make(chan prepareResult, 1)
	result <- prepareResult{err: errors.New("fixture parse error")}
	tr.State = StatePreparing
	tr.Prep = &PreparingState{Result: result}

	decode, perr := tr.getOrReadyInput(nil)
	if decode != nil {
		t.Fatal("getOrReadyInput returned a DecodeState alongside a parse error")
	}
	if perr == nil || perr.Kind != trackapi.PlayErrorParse {
		t.Fatalf("perr = %v, want a PlayErrorParse", perr)
	}
	if tr.Playing != trackapi.ModeEnd {
		t.Fatalf("Playing = %v, want ModeEnd after a readying failure", tr.Playing)
	}
}

func TestGetOrReadyInputBecomesReadyAndAppliesQueuedSeek(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	parsed := newFakeParsed(10)
	result := make(chan prepareResult, 1)
	result <- prepareResult{parsed: parsed}
	queued := 2 * time.Second
	tr.State = StatePreparing
	tr.Prep = &PreparingState{Result: result, QueuedSeek: &queued}

	pool := NewBlockingPool()
	defer pool.Close()

	decode, perr := tr.getOrReadyInput(pool)
	if perr != nil {
		t.Fatalf("unexpected PlayError: %v", perr)
	}
	if decode != nil {
		t.Fatal("getOrReadyInput should not hand back a DecodeState when a queued seek re-enters Preparing")
	}
	if tr.State != StatePreparing {
		t.Fatalf("State = %v, want StatePreparing (seek re-entered readying)", tr.State)
	}
}

func TestGetOrReadyInputReturnsDecodeStateWhenReady(t *testing.T) {
	tr := newTestTrack(make(chan trackapi.TrackCommand, 1))
	parsed := newFakeParsed(10)
	result := make(chan prepareResult, 1)
	result <- prepareResult{parsed: parsed}
	tr.State = StatePreparing
	tr.Prep = &PreparingState{Result: result}

	decode, perr := tr.getOrReadyInput(nil)
	if perr != nil {
		t.Fatalf("unexpected PlayError: %v", perr)
	}
	if decode == nil {
		t.Fatal("getOrReadyInput did not return a DecodeState once ready")
	}
	if tr.State != StateReady {
		t.Fatalf("State = %v, want StateReady", tr.State)
	}

	// Polling again while already Ready just returns the same state.
	decode2, perr2 := tr.getOrReadyInput(nil)
	if perr2 != nil || decode2 != tr.Decode {
		t.Fatal("getOrReadyInput on an already-Ready track should keep returning its DecodeState")
	}
}

