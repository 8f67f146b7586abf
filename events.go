package voicedriver

import "voicedriver/internal/trackapi"

// TrackEvent, EventData and EventStore live in internal/trackapi; see
// the comment at the top of track.go for why.

type (
	TrackEvent = trackapi.TrackEvent
	EventData  = trackapi.EventData
	Handler    = trackapi.Handler
	EventStore = trackapi.EventStore
)

const (
	EventReady             = trackapi.EventReady
	EventPlayable          = trackapi.EventPlayable
	EventEnd               = trackapi.EventEnd
	EventLoop              = trackapi.EventLoop
	EventError             = trackapi.EventError
	EventPeriodic          = trackapi.EventPeriodic
	EventDriverConnect     = trackapi.EventDriverConnect
	EventDriverReconnect   = trackapi.EventDriverReconnect
	EventDriverDisconnect  = trackapi.EventDriverDisconnect
)

var NewEventStore = trackapi.NewEventStore

// CoreContext is passed to driver-level event handlers (connect/
// reconnect/disconnect) — the driver-scope analogue of EventData for
// track events. It stays in the root package: nothing under internal/
// needs it. driver.go does not pass it to handlers; it sends
// driver-level connection events to the events task as EventData,
// fired on the global store.
type CoreContext struct {
	Event ConnectionInfo
	Err   error
}
