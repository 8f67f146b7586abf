package mixer

import (
	"log"
	"time"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/trackapi"
)

// InternalTrack is the mixer-owned representation of one track: the
// playback/volume/loop state a TrackHandle's commands mutate, plus the
// InputState machine the mixer alone drives forward every tick.
// Grounded on original_source's driver/tasks/mixer/track.rs.
type InternalTrack struct {
	ID uint64

	Playing  trackapi.PlayMode
	Volume   float32
	Loops    trackapi.LoopState
	Position time.Duration
	PlayTime time.Duration

	Source trackapi.InputSource
	State  InputState
	Prep   *PreparingState
	Decode *DecodeState

	// DecodeErr is set by Tick when a Ready track's decode fails outright
	// (as opposed to a clean EOF). tickTracks fires it as EventError on
	// the track's event store and reaps the track on the following tick, the same
	// one-tick-delayed path doLoop's EOF handling already uses.
	DecodeErr *trackapi.PlayError

	events   trackapi.EventStore
	commands <-chan trackapi.TrackCommand
}

// decomposeTrack builds the mixer's InternalTrack from a TrackContext
// handed over the interconnect by the driver's AddTrack.
func decomposeTrack(ctx interconnect.TrackContext) *InternalTrack {
	return &InternalTrack{
		ID:       ctx.ID,
		Playing:  ctx.Track.Playing,
		Volume:   ctx.Track.Volume,
		Loops:    ctx.Track.Loops,
		Source:   ctx.Track.Input,
		State:    StateNotReady,
		events:   ctx.Track.Events,
		commands: ctx.Commands,
	}
}

// state returns a snapshot for TrackHandle.GetInfo / event payloads.
func (t *InternalTrack) state() trackapi.TrackState {
	ready := trackapi.ReadyUninitialised
	switch t.State {
	case StatePreparing:
		ready = trackapi.ReadyPreparing
	case StateReady:
		ready = trackapi.ReadyPlayable
	}
	return trackapi.TrackState{
		Playing:  t.Playing,
		Volume:   t.Volume,
		Position: t.Position,
		PlayTime: t.PlayTime,
		Loops:    t.Loops,
		Ready:    ready,
	}
}

// processCommands drains every command currently queued on the
// track's channel (non-blocking: a per-tick snapshot, not a wait) and
// applies each in turn, returning the combined Action for the mixer's
// tick loop to act on afterward. Grounded on original_source's
// InternalTrack::process_commands.
func (t *InternalTrack) processCommands(now time.Time) trackapi.Action {
	var action trackapi.Action
	for {
		select {
		case cmd, ok := <-t.commands:
			if !ok {
				return action
			}
			t.applyCommand(cmd, now, &action)
		default:
			return action
		}
	}
}

func (t *InternalTrack) applyCommand(cmd trackapi.TrackCommand, now time.Time, action *trackapi.Action) {
	switch cmd.Kind {
	case trackapi.CmdPlay:
		t.Playing.ChangeTo(trackapi.ModePlay)
	case trackapi.CmdPause:
		t.Playing.ChangeTo(trackapi.ModePause)
	case trackapi.CmdStop:
		t.Playing.ChangeTo(trackapi.ModeStop)
		t.Playing = trackapi.ModeEnd
	case trackapi.CmdSetVolume:
		if cmd.Volume != t.Volume && t.Decode != nil {
			t.Decode.Passthrough = PassthroughBlocked
		}
		t.Volume = cmd.Volume
	case trackapi.CmdSeek:
		seekTo := cmd.SeekTo
		action.SeekTo = &seekTo
	case trackapi.CmdLoop:
		t.Loops = cmd.Loops
	case trackapi.CmdMakePlayable:
		action.MakePlayable = true
	case trackapi.CmdAddEvent:
		if cmd.Handler == nil {
			return
		}
		if cmd.EventKind == trackapi.EventPeriodic && cmd.EventPeriod > 0 {
			t.events.AddPeriodic(cmd.EventPeriod, cmd.Handler)
		} else {
			t.events.Add(cmd.EventKind, cmd.Handler)
		}
	case trackapi.CmdDo:
		t.runView(cmd.Apply, action)
	case trackapi.CmdRequestState:
		select {
		case cmd.Request <- t.state():
		default:
		}
	}
}

// runView builds a View over the track's mutable fields, lets fn
// inspect/mutate them, and folds any returned Action in.
func (t *InternalTrack) runView(fn func(trackapi.View) *trackapi.Action, action *trackapi.Action) {
	if fn == nil {
		return
	}
	ready := trackapi.ReadyUninitialised
	switch t.State {
	case StatePreparing:
		ready = trackapi.ReadyPreparing
	case StateReady:
		ready = trackapi.ReadyPlayable
	}
	view := trackapi.View{
		Position: &t.Position,
		PlayTime: &t.PlayTime,
		Volume:   &t.Volume,
		Playing:  &t.Playing,
		Loops:    &t.Loops,
		Ready:    ready,
	}
	if result := fn(view); result != nil {
		action.Combine(*result)
	}
}

// ApplyAction carries out a combined Action against the track: a seek
// (queued if the input is still Preparing, dispatched to the pool
// otherwise) and/or forcing the NotReady state to begin readying
// immediately instead of waiting for the track to be polled for audio.
func (t *InternalTrack) ApplyAction(action trackapi.Action, pool *BlockingPool) {
	if action.SeekTo != nil {
		t.seek(*action.SeekTo, pool)
	}
	if action.MakePlayable && t.State == StateNotReady {
		t.beginReadying(pool)
	}
}

func (t *InternalTrack) seek(pos time.Duration, pool *BlockingPool) {
	switch t.State {
	case StatePreparing:
		if t.Prep.QueuedSeek != nil {
			log.Printf("[mixer] track %d: overwriting stashed seek %v with %v", t.ID, *t.Prep.QueuedSeek, pos)
		}
		seekCopy := pos
		t.Prep.QueuedSeek = &seekCopy

	case StateReady:
		result := pool.Seek(t.Source, t.Decode.Parsed, pos)
		t.State = StatePreparing
		t.Prep = &PreparingState{Result: remapSeekResult(result)}

	case StateNotReady:
		// No input yet to seek within; stash it as though we were
		// Preparing so it applies the moment readying finishes.
		t.beginReadying(pool)
		seekCopy := pos
		t.Prep.QueuedSeek = &seekCopy
	}
}

// remapSeekResult adapts a seek's result channel (which always carries
// the same *input.Parsed back on success) to the same prepareResult
// type beginReadying's channel uses, so getOrReadyInput has one poll
// path regardless of why the track re-entered Preparing.
func remapSeekResult(ch <-chan prepareResult) <-chan prepareResult { return ch }

func (t *InternalTrack) beginReadying(pool *BlockingPool) {
	result := pool.Prepare(t.Source)
	t.State = StatePreparing
	t.Prep = &PreparingState{Result: result}
}

// getOrReadyInput advances the track's InputState machine by exactly
// one step if it can: submitting NotReady input to the pool, polling a
// Preparing input's result channel without blocking, or doing nothing
// for a track already Ready. Returns the live DecodeState on the call
// that completes readying and on every later call while the track
// stays Ready; nil otherwise.
func (t *InternalTrack) getOrReadyInput(pool *BlockingPool) (*DecodeState, *trackapi.PlayError) {
	switch t.State {
	case StateNotReady:
		t.beginReadying(pool)
		return nil, nil

	case StatePreparing:
		select {
		case res := <-t.Prep.Result:
			if res.err != nil {
				t.Playing = trackapi.ModeEnd
				return nil, &trackapi.PlayError{Kind: trackapi.PlayErrorParse, Err: res.err}
			}
			decode, err := NewDecodeState(res.parsed)
			if err != nil {
				t.Playing = trackapi.ModeEnd
				return nil, &trackapi.PlayError{Kind: trackapi.PlayErrorCreate, Err: err}
			}
			t.Decode = decode
			t.State = StateReady

			if t.Prep.QueuedSeek != nil {
				pos := *t.Prep.QueuedSeek
				t.Prep = nil
				t.seek(pos, pool)
				return nil, nil
			}
			t.Prep = nil
			return t.Decode, nil

		default:
			return nil, nil
		}

	case StateReady:
		return t.Decode, nil
	}
	return nil, nil
}

// doLoop applies one loop-around on end-of-file: if the track has
// loops remaining, it is reset to the beginning (recreating the
// source and resubmitting to the pool, since most containers can't
// cheaply rewind their Decoder in place) and playback continues;
// otherwise the track ends. Grounded on original_source's
// InternalTrack::do_loop.
func (t *InternalTrack) doLoop(pool *BlockingPool) {
	if !t.Loops.Decrement() {
		t.Playing = trackapi.ModeEnd
		return
	}

	if t.Decode != nil {
		t.Decode.Close()
		t.Decode = nil
	}
	fresh, err := t.Source.Recreate()
	if err != nil {
		log.Printf("[mixer] track %d: recreate for loop failed: %v", t.ID, err)
		t.Playing = trackapi.ModeEnd
		return
	}
	t.Source = fresh
	t.Position = 0
	t.beginReadying(pool)
}

// Dispose releases this track's decode resources. Called by the tick
// loop on a track reaching ModeEnd, then the InternalTrack itself is
// handed to the disposal task rather than dropped in place.
func (t *InternalTrack) Dispose() {
	if t.Decode != nil {
		t.Decode.Close()
	}
}
