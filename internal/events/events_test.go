package events

import (
	"testing"
	"time"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/trackapi"
)

func TestRunFiresTrackEventsAndPrunesEndedEmpty(t *testing.T) {
	ic := interconnect.New()
	task := New()
	done := make(chan struct{})
	go func() {
		task.Run(ic)
		close(done)
	}()

	var store trackapi.EventStore
	fired := make(chan trackapi.TrackEvent, 1)
	store.Add(trackapi.EventEnd, func(d trackapi.EventData) bool {
		fired <- d.Kind
		return false // deregister, leaving the store empty so it gets pruned
	})

	ic.Events <- interconnect.EventMessage{Kind: interconnect.EventsAddTrack, TrackID: 1, Store: store}
	ic.Events <- interconnect.EventMessage{
		Kind: interconnect.EventsTick,
		Fired: []interconnect.TrackFire{
			{TrackID: 1, Data: trackapi.EventData{Kind: trackapi.EventEnd}},
		},
		Timestamp: time.Now(),
	}

	select {
	case kind := <-fired:
		if kind != trackapi.EventEnd {
			t.Fatalf("fired kind = %v, want EventEnd", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}

	close(ic.Events)
	<-done

	if _, ok := task.tracks[1]; ok {
		t.Fatal("track 1's store still registered after EventEnd emptied it")
	}
}

func TestRunFiresGlobalCoreEvents(t *testing.T) {
	ic := interconnect.New()
	task := New()
	fired := make(chan struct{}, 1)
	task.Global().Add(trackapi.EventDriverReconnect, func(trackapi.EventData) bool {
		fired <- struct{}{}
		return true
	})

	done := make(chan struct{})
	go func() {
		task.Run(ic)
		close(done)
	}()

	ic.Events <- interconnect.EventMessage{
		Kind: interconnect.EventsFireCore,
		Core: trackapi.EventData{Kind: trackapi.EventDriverReconnect},
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("global handler never fired")
	}

	close(ic.Events)
	<-done
}

func TestRunExitsOnChannelClose(t *testing.T) {
	ic := interconnect.New()
	task := New()
	done := make(chan struct{})
	go func() {
		task.Run(ic)
		close(done)
	}()

	close(ic.Events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after its channel closed")
	}
}

func TestRunRemovesTrackOnExplicitMessage(t *testing.T) {
	ic := interconnect.New()
	task := New()
	done := make(chan struct{})
	go func() {
		task.Run(ic)
		close(done)
	}()

	ic.Events <- interconnect.EventMessage{Kind: interconnect.EventsAddTrack, TrackID: 7, Store: trackapi.NewEventStore()}
	ic.Events <- interconnect.EventMessage{Kind: interconnect.EventsRemoveTrack, TrackID: 7}
	// Drive a tick referencing the removed track; Run must not panic, just log.
	ic.Events <- interconnect.EventMessage{
		Kind:      interconnect.EventsTick,
		Fired:     []interconnect.TrackFire{{TrackID: 7, Data: trackapi.EventData{Kind: trackapi.EventEnd}}},
		Timestamp: time.Now(),
	}

	close(ic.Events)
	<-done

	if _, ok := task.tracks[7]; ok {
		t.Fatal("track 7's store still registered after EventsRemoveTrack")
	}
}
