// Package events implements the events task: the goroutine that owns
// every track's EventStore plus the driver's own global store, and
// fires handlers in response to EventMessages the mixer and driver
// send it. Grounded on songbird's driver/tasks/events.rs.
package events

import (
	"log"
	"time"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/trackapi"
)

// Task owns the event stores and runs on its own goroutine, reading
// from an Interconnect.Events channel until it is closed (Poison) or
// replaced (MixerReplaceInterconnect-style restart, mirrored here via
// Run returning and the Core task launching a fresh Task).
type Task struct {
	global trackapi.EventStore
	tracks map[uint64]*trackapi.EventStore
}

// New returns an events task with an empty global store and no tracks
// registered yet.
func New() *Task {
	return &Task{tracks: make(map[uint64]*trackapi.EventStore)}
}

// Global exposes the driver-scope event store so Core can register
// connect/reconnect/disconnect handlers before Run starts.
func (t *Task) Global() *trackapi.EventStore { return &t.global }

// Run drains ic.Events until the channel is closed, dispatching each
// EventMessage to the relevant store(s). It returns when the channel
// closes, whether from Poison or from a RestartVolatileInternals swap
// — the caller (Core) is responsible for deciding whether to launch a
// replacement Task against a fresh Interconnect.
func (t *Task) Run(ic *interconnect.Interconnect) {
	for msg := range ic.Events {
		switch msg.Kind {
		case interconnect.EventsAddTrack:
			store := msg.Store
			t.tracks[msg.TrackID] = &store

		case interconnect.EventsRemoveTrack:
			delete(t.tracks, msg.TrackID)

		case interconnect.EventsFireCore:
			t.global.Fire(msg.Core.Kind, msg.Core, msg.Timestamp)

		case interconnect.EventsTick:
			t.handleTick(msg)

		case interconnect.EventsPoison:
			return
		}
	}
}

// handleTick fires every event reported for this tick against its
// track's store, fires EventPeriodic against both that store and the
// global store, and removes any track store that has both fired
// EventEnd and run out of handlers — mirroring songbird's per-tick
// cleanup in driver/tasks/events.rs.
func (t *Task) handleTick(msg interconnect.EventMessage) {
	now := msg.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	for _, fire := range msg.Fired {
		store, ok := t.tracks[fire.TrackID]
		if !ok {
			log.Printf("[events] tick fire for unknown track %d", fire.TrackID)
			continue
		}
		store.Fire(fire.Data.Kind, fire.Data, now)

		if fire.Data.Kind == trackapi.EventEnd && store.Len() == 0 {
			delete(t.tracks, fire.TrackID)
		}
	}

	for _, store := range t.tracks {
		store.Fire(trackapi.EventPeriodic, trackapi.EventData{Kind: trackapi.EventPeriodic, Fired: now}, now)
	}
	t.global.Fire(trackapi.EventPeriodic, trackapi.EventData{Kind: trackapi.EventPeriodic, Fired: now}, now)
}
