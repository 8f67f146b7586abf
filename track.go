package voicedriver

import "voicedriver/internal/trackapi"

// Track, TrackHandle and friends live in internal/trackapi so that
// internal/mixer and internal/events can depend on them without
// importing this root package back (which would form an import
// cycle). These aliases are the public surface.

const (
	FrameDuration = trackapi.FrameDuration
	FrameSize     = trackapi.FrameSize
)

type (
	PlayMode     = trackapi.PlayMode
	LoopState    = trackapi.LoopState
	ReadyState   = trackapi.ReadyState
	TrackState   = trackapi.TrackState
	PlayError    = trackapi.PlayError
	PlayErrorKind = trackapi.PlayErrorKind
	View         = trackapi.View
	Action       = trackapi.Action
	TrackCommand = trackapi.TrackCommand
	CommandKind  = trackapi.CommandKind
	TrackHandle  = trackapi.TrackHandle
	Track        = trackapi.Track
	InputSource  = trackapi.InputSource
)

const (
	ModePlay = trackapi.ModePlay
	ModePause = trackapi.ModePause
	ModeStop = trackapi.ModeStop
	ModeEnd  = trackapi.ModeEnd
)

const (
	ReadyUninitialised = trackapi.ReadyUninitialised
	ReadyPreparing     = trackapi.ReadyPreparing
	ReadyPlayable      = trackapi.ReadyPlayable
)

const (
	PlayErrorParse  = trackapi.PlayErrorParse
	PlayErrorCreate = trackapi.PlayErrorCreate
	PlayErrorSeek   = trackapi.PlayErrorSeek
)

var (
	LoopInfinite    = trackapi.LoopInfinite
	LoopFinite      = trackapi.LoopFinite
	NewTrackHandle  = trackapi.NewTrackHandle
	NewTrack        = trackapi.NewTrack
)
