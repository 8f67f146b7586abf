// Package trackapi holds the public track/event types shared between
// the root voicedriver package and internal/mixer, internal/events.
// It exists only to break the import cycle the two would otherwise
// form: the root package re-exports these as type aliases, while
// internal/mixer decomposes a trackapi.Track into its own
// InternalTrack representation (internal/mixer/track.go).
package trackapi

import (
	"fmt"
	"io"
	"time"
)

// FrameDuration is the fixed mixer tick length: one 20 ms Opus frame at
// 48 kHz, 960 samples per channel.
const FrameDuration = 20 * time.Millisecond

// FrameSize is the number of stereo sample-pairs in one output frame.
const FrameSize = 960

// PlayMode is a track's playback state. End is terminal: no transition
// leads out of it.
type PlayMode int

const (
	ModePlay PlayMode = iota
	ModePause
	ModeStop
	ModeEnd
)

func (m PlayMode) String() string {
	switch m {
	case ModePlay:
		return "play"
	case ModePause:
		return "pause"
	case ModeStop:
		return "stop"
	case ModeEnd:
		return "end"
	default:
		return "unknown"
	}
}

// IsDone reports whether m is terminal.
func (m PlayMode) IsDone() bool { return m == ModeEnd }

// ChangeTo transitions *m to next, refusing to leave a terminal End state.
func (m *PlayMode) ChangeTo(next PlayMode) {
	if *m == ModeEnd {
		return
	}
	*m = next
}

// LoopState describes how many more times a track should restart from
// the beginning after reaching EOF.
type LoopState struct {
	Infinite bool
	N        int // remaining loops when !Infinite; 0 means "don't loop again"
}

// LoopInfinite returns a LoopState that never stops looping.
func LoopInfinite() LoopState { return LoopState{Infinite: true} }

// LoopFinite returns a LoopState good for n additional plays after the first.
func LoopFinite(n int) LoopState { return LoopState{N: n} }

// Decrement applies one loop-around, returning whether playback should
// continue. Mirrors songbird's InternalTrack::do_loop.
func (l *LoopState) Decrement() bool {
	if l.Infinite {
		return true
	}
	if l.N == 0 {
		return false
	}
	l.N--
	return true
}

// ReadyState mirrors mixer.InputState's readiness without exposing the
// input machinery itself to callers outside internal/mixer.
type ReadyState int

const (
	ReadyUninitialised ReadyState = iota
	ReadyPreparing
	ReadyPlayable
)

func (r ReadyState) String() string {
	switch r {
	case ReadyUninitialised:
		return "uninitialised"
	case ReadyPreparing:
		return "preparing"
	case ReadyPlayable:
		return "playable"
	default:
		return "unknown"
	}
}

// TrackState is a point-in-time snapshot of a track, handed to event
// handlers and returned by TrackHandle.GetInfo.
type TrackState struct {
	Playing  PlayMode
	Volume   float32
	Position time.Duration
	PlayTime time.Duration
	Loops    LoopState
	Ready    ReadyState
}

// PlayErrorKind classifies why a track's input failed to ready, seek
// or decode.
type PlayErrorKind int

const (
	PlayErrorParse PlayErrorKind = iota
	PlayErrorCreate
	PlayErrorSeek
	PlayErrorDecode
)

func (k PlayErrorKind) String() string {
	switch k {
	case PlayErrorParse:
		return "parse"
	case PlayErrorCreate:
		return "create"
	case PlayErrorSeek:
		return "seek"
	case PlayErrorDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// PlayError is the user-facing error fired as EventError on a track's
// event store when readying or decoding its input fails. The mixer
// never panics on bad input; it reports the failure here and
// transitions the track to End.
type PlayError struct {
	Kind PlayErrorKind
	Err  error
}

func (e *PlayError) Error() string {
	return fmt.Sprintf("track %s: %v", e.Kind, e.Err)
}

func (e *PlayError) Unwrap() error { return e.Err }

// View is the mutable per-tick window into a live track that a CmdDo
// closure is allowed to touch. It never exposes the mixer's decode
// state or input machinery — only what a user callback should see.
type View struct {
	Position *time.Duration
	PlayTime *time.Duration
	Volume   *float32
	Playing  *PlayMode
	Loops    *LoopState
	Ready    ReadyState
}

// Action is the per-tick outcome of draining one track's commands: an
// optional seek target and whether the track should be force-readied.
// Mirrors songbird's mixer::track::Action.
type Action struct {
	SeekTo       *time.Duration
	MakePlayable bool
}

// Combine merges other into a, keeping the most recent seek request and
// OR-ing MakePlayable.
func (a *Action) Combine(other Action) {
	if other.SeekTo != nil {
		a.SeekTo = other.SeekTo
	}
	a.MakePlayable = a.MakePlayable || other.MakePlayable
}

// CommandKind tags which field of TrackCommand is meaningful.
type CommandKind int

const (
	CmdPlay CommandKind = iota
	CmdPause
	CmdStop
	CmdSetVolume
	CmdSeek
	CmdAddEvent
	CmdLoop
	CmdMakePlayable
	CmdDo
	CmdRequestState
)

// TrackCommand is sent down a track's per-track command channel. Issued
// by a TrackHandle, consumed by the mixer once per tick (§4.1 step 2 of
// the spec this module implements).
type TrackCommand struct {
	Kind        CommandKind
	Volume      float32
	SeekTo      time.Duration
	Loops       LoopState
	EventKind   TrackEvent
	EventPeriod time.Duration
	Handler     Handler
	Request     chan<- TrackState
	Apply       func(View) *Action
}

// TrackHandle is the user-facing control surface for a track already
// handed to a Driver. All methods are non-blocking sends down the
// track's command channel; the mixer thread never blocks on a caller.
type TrackHandle struct {
	commands chan<- TrackCommand
}

// NewTrackHandle wraps a command channel. Most callers get a
// TrackHandle back from Driver.AddTrack instead of constructing one
// directly.
func NewTrackHandle(commands chan<- TrackCommand) TrackHandle {
	return TrackHandle{commands: commands}
}

func (h TrackHandle) send(cmd TrackCommand) {
	select {
	case h.commands <- cmd:
	default:
		// Per-track command channels are generously buffered (64 deep,
		// see Driver.AddTrack and Driver.SetTrack) so a full channel means
		// the track has already ended and nobody is draining it.
	}
}

func (h TrackHandle) Play()  { h.send(TrackCommand{Kind: CmdPlay}) }
func (h TrackHandle) Pause() { h.send(TrackCommand{Kind: CmdPause}) }
func (h TrackHandle) Stop()  { h.send(TrackCommand{Kind: CmdStop}) }

// SetVolume sets playback volume. Unbounded but soft-clipped downstream;
// any value other than 1.0 permanently blocks passthrough for this track.
func (h TrackHandle) SetVolume(v float32) { h.send(TrackCommand{Kind: CmdSetVolume, Volume: v}) }

// Seek requests a position change. On a Preparing input the request is
// stashed (last-writer-wins) until readying completes.
func (h TrackHandle) Seek(d time.Duration) { h.send(TrackCommand{Kind: CmdSeek, SeekTo: d}) }

func (h TrackHandle) Loop(l LoopState) { h.send(TrackCommand{Kind: CmdLoop, Loops: l}) }

// MakePlayable forces the mixer to begin readying a NotReady input even
// before the track is polled for audio.
func (h TrackHandle) MakePlayable() { h.send(TrackCommand{Kind: CmdMakePlayable}) }

// On registers fn to run whenever kind fires for this track.
func (h TrackHandle) On(kind TrackEvent, fn Handler) {
	h.send(TrackCommand{Kind: CmdAddEvent, EventKind: kind, Handler: fn})
}

// OnPeriodic registers fn to run at most once per period while the
// track is alive, against EventPeriodic.
func (h TrackHandle) OnPeriodic(period time.Duration, fn Handler) {
	h.send(TrackCommand{Kind: CmdAddEvent, EventKind: EventPeriodic, EventPeriod: period, Handler: fn})
}

// Do schedules fn to run against the track's View on the mixer thread
// during the next command-drain. fn may return an Action (e.g. a seek)
// to be applied immediately after.
func (h TrackHandle) Do(fn func(View) *Action) { h.send(TrackCommand{Kind: CmdDo, Apply: fn}) }

// GetInfo blocks the caller (never the mixer) until the mixer has
// produced a fresh TrackState snapshot.
func (h TrackHandle) GetInfo() TrackState {
	reply := make(chan TrackState, 1)
	h.send(TrackCommand{Kind: CmdRequestState, Request: reply})
	return <-reply
}

// Track is the value a caller builds and hands to Driver.AddTrack; the
// driver decomposes it into the mixer-owned InternalTrack plus the
// caller-owned TrackHandle.
type Track struct {
	Playing PlayMode
	Volume  float32
	Loops   LoopState
	Input   InputSource
	Events  EventStore
}

// InputSource is the user-supplied audio origin for a Track. Concrete
// implementations live in internal/input; this interface is kept here
// (rather than in internal/input) purely to let Track reference it
// without internal/trackapi depending on internal/input.
type InputSource interface {
	// Reader opens a fresh byte stream for the container probe/decode
	// step to consume. Called once when the mixer begins readying the
	// track (ReadyUninitialised -> ReadyPreparing).
	Reader() (io.ReadCloser, error)

	// Recreate returns a fresh, unread copy of the same source, used
	// when a seek or loop needs to restart decode from the beginning
	// and the underlying reader cannot itself seek.
	Recreate() (InputSource, error)
}

// NewTrack returns a Track ready to Play with volume 1.0, no loop.
func NewTrack(input InputSource) Track {
	return Track{
		Playing: ModePlay,
		Volume:  1.0,
		Loops:   LoopFinite(0),
		Input:   input,
		Events:  NewEventStore(),
	}
}
