package trackapi

import "time"

// TrackEvent identifies a point in a track's lifecycle (or the driver's)
// that a handler can be attached to. Grounded on songbird's Event enum.
type TrackEvent int

const (
	EventReady TrackEvent = iota
	EventPlayable
	EventEnd
	EventLoop
	EventError
	EventPeriodic
	EventDriverConnect
	EventDriverReconnect
	EventDriverDisconnect
)

func (e TrackEvent) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventPlayable:
		return "playable"
	case EventEnd:
		return "end"
	case EventLoop:
		return "loop"
	case EventError:
		return "error"
	case EventPeriodic:
		return "periodic"
	case EventDriverConnect:
		return "driver-connect"
	case EventDriverReconnect:
		return "driver-reconnect"
	case EventDriverDisconnect:
		return "driver-disconnect"
	default:
		return "unknown"
	}
}

// EventData is delivered to a registered handler when its TrackEvent
// fires. Track is nil for driver-scoped events.
type EventData struct {
	Kind  TrackEvent
	Track *TrackState
	Err   error
	Fired time.Time
}

// Handler is a user callback attached to a TrackEvent. Returning false
// deregisters the handler; returning true keeps it armed for the next
// matching event (meaningful only for EventPeriodic/EventLoop, which can
// fire more than once).
type Handler func(EventData) (rearm bool)

type registeredHandler struct {
	kind    TrackEvent
	handler Handler
	period  time.Duration // only meaningful for EventPeriodic
	last    time.Time
}

// EventStore holds the handlers attached to one track (or, for the
// global store owned by the events task, to the driver itself).
// Grounded on songbird's EventStore (driver/tasks/events.rs): a flat
// slice of (event, handler) pairs, fired in registration order and
// pruned in place when a handler deregisters.
type EventStore struct {
	handlers []registeredHandler
}

// NewEventStore returns an empty store.
func NewEventStore() EventStore {
	return EventStore{}
}

// Add registers fn against kind.
func (s *EventStore) Add(kind TrackEvent, fn Handler) {
	s.handlers = append(s.handlers, registeredHandler{kind: kind, handler: fn})
}

// AddPeriodic registers fn to fire at most once per period against
// EventPeriodic.
func (s *EventStore) AddPeriodic(period time.Duration, fn Handler) {
	s.handlers = append(s.handlers, registeredHandler{kind: EventPeriodic, handler: fn, period: period})
}

// Fire invokes every handler registered for kind, dropping any handler
// whose callback returns false. EventPeriodic handlers additionally
// self-throttle against their configured period.
func (s *EventStore) Fire(kind TrackEvent, data EventData, now time.Time) {
	if len(s.handlers) == 0 {
		return
	}
	kept := s.handlers[:0]
	for _, rh := range s.handlers {
		if rh.kind != kind {
			kept = append(kept, rh)
			continue
		}
		if kind == EventPeriodic && rh.period > 0 && now.Sub(rh.last) < rh.period {
			kept = append(kept, rh)
			continue
		}
		rh.last = now
		if rh.handler(data) {
			kept = append(kept, rh)
		}
	}
	s.handlers = kept
}

// Len reports how many handlers remain registered, across all event
// kinds. Used by the events task to remove a track's store once
// it has both fired EventEnd and gone empty.
func (s *EventStore) Len() int { return len(s.handlers) }
