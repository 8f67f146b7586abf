// Package interconnect defines the typed channel bundle binding the
// driver's core, mixer, events, udp-rx and disposal tasks together.
// Grounded on songbird's message/mod.rs, message/core.rs,
// message/mixer.rs, message/events.rs and message/disposal.rs: Rust's
// per-message-kind flume::Sender<T> is re-expressed as a struct of Go
// channels, one per task, following the teacher's own
// channel-of-a-concrete-struct idiom rather than a generic bus library.
package interconnect

import (
	"time"

	"voicedriver/internal/trackapi"
)

// TrackContext bundles everything ownership of one track is split
// across when it is handed from the driver to the mixer task: the
// command channel the TrackHandle writes to, the track's initial
// event store, and an opaque per-track payload the mixer decomposes
// into its own InternalTrack representation. Grounded on songbird's
// TrackContext (driver/tasks/mixer/track.rs) and message/mixer.rs's
// AddTrack variant.
type TrackContext struct {
	ID       uint64
	Track    trackapi.Track
	Commands <-chan trackapi.TrackCommand
}

// MixerMessageKind tags a MixerMessage's meaning. Grounded on
// message/mixer.rs's MixerMessage enum.
type MixerMessageKind int

const (
	MixerAddTrack MixerMessageKind = iota
	MixerSetTrack // replace all tracks with a single new one
	MixerSetConfig
	MixerSetMute
	MixerRebuildEncoder
	MixerReplaceInterconnect
	MixerPoison
)

// MixerMessage is sent on Interconnect.Mixer.
type MixerMessage struct {
	Kind         MixerMessageKind
	AddTrack     *TrackContext
	BitrateKbps  int
	Muted        bool
	SetSoftclip  bool // whether UseSoftclip should be applied this message
	UseSoftclip  bool
	Interconnect *Interconnect
}

// EventMessageKind tags an EventMessage's meaning. Grounded on
// message/events.rs's EventMessage enum.
type EventMessageKind int

const (
	EventsAddTrack EventMessageKind = iota
	EventsFireCore
	EventsTick
	EventsRemoveTrack
	EventsPoison
)

// EventMessage is sent on Interconnect.Events.
type EventMessage struct {
	Kind      EventMessageKind
	TrackID   uint64
	Store     trackapi.EventStore
	Core      trackapi.EventData
	Fired     []TrackFire
	Timestamp time.Time
}

// TrackFire pairs a track ID with the event that just happened to it,
// handed from the mixer to the events task once per tick.
type TrackFire struct {
	TrackID uint64
	Data    trackapi.EventData
	State   trackapi.TrackState
}

// CoreMessageKind tags a CoreMessage's meaning. Grounded on
// message/core.rs's CoreMessage enum.
type CoreMessageKind int

const (
	CoreConnectionChange CoreMessageKind = iota
	CoreReconnect
	CoreFullReconnect
	CoreRtcpReport
)

// CoreMessage is sent on Interconnect.Core — the only channel the
// udp-rx and mixer tasks use to ask the driver's Core task to take
// action above their own scope (spec.md §7: reconnect escalation).
type CoreMessage struct {
	Kind   CoreMessageKind
	Err    error
	Report RtcpReport
}

// RtcpReport is the minimal quality signal udp-rx derives from
// incoming RTCP and forwards to Core, which may hand it to
// Driver.ApplyQualityHint (internal/adapt).
type RtcpReport struct {
	FractionLost float64
	JitterMillis float64
	RTT          time.Duration
}

// DisposalMessage carries a value whose destructor (or just garbage
// collection) must not run on the mixer's real-time thread. Grounded
// verbatim on songbird's message/disposal.rs — the payload is opaque
// by design, the disposal task's only job is to receive and drop it.
type DisposalMessage struct {
	Value any
}

// MixerInputResultMessage describes the result of one track's
// asynchronous input-readying request. No task in this module sends or
// receives it: the mixer's BlockingPool delivers its results as
// internal/mixer prepareResult values instead. Grounded on
// message/input_parser.rs.
type MixerInputResultMessage struct {
	TrackID uint64
	Parsed  any   // *input.Parsed on success; nil on failure
	Err     error
}
