package interconnect

import "log"

// Interconnect is the typed channel bundle every long-lived task holds
// a copy of. It is intentionally a flat struct of channels rather than
// an interface: the teacher's own tasks (audio.go's
// captureLoop/playbackLoop) pass concrete channel structs between
// goroutines the same way, and a struct lets Poison close every
// channel without a type switch.
type Interconnect struct {
	Core     chan CoreMessage
	Mixer    chan MixerMessage
	Events   chan EventMessage
	Disposal chan DisposalMessage
}

// New builds an Interconnect with reasonably buffered channels: Core
// and Disposal are low-rate, Mixer and Events see one message per
// track operation or per tick and are buffered generously so the
// mixer's real-time thread never blocks handing work off to them.
func New() *Interconnect {
	return &Interconnect{
		Core:     make(chan CoreMessage, 16),
		Mixer:    make(chan MixerMessage, 256),
		Events:   make(chan EventMessage, 256),
		Disposal: make(chan DisposalMessage, 256),
	}
}

// Poison closes every channel in ic, signalling every task holding a
// copy to drain what remains and exit. Safe to call at most once per
// Interconnect; a second call on an already-poisoned Interconnect
// panics on double-close, matching the one-shot nature of songbird's
// poison_all (message/mod.rs).
func (ic *Interconnect) Poison() {
	close(ic.Core)
	close(ic.Mixer)
	close(ic.Events)
	close(ic.Disposal)
}

// RestartVolatileInternals builds a fresh Interconnect, tells the old
// one's mixer task about the replacement via MixerReplaceInterconnect,
// and returns the new Interconnect for the Core task to adopt and
// rebroadcast to the udp-rx and events tasks it owns directly.
//
// Grounded on songbird's restart_volatile_internals (message/mod.rs):
// used when a send down an Interconnect channel fails, which can only
// mean a receiving task has died — rather than try to resurrect the
// exact same task, the Core task spins up a fresh events task and a
// fresh channel set and asks the mixer to switch over, so a wedged
// events task can never permanently stall mixer→events delivery.
func (old *Interconnect) RestartVolatileInternals() *Interconnect {
	log.Printf("[interconnect] restarting volatile internals")
	fresh := New()
	select {
	case old.Mixer <- MixerMessage{Kind: MixerReplaceInterconnect, Interconnect: fresh}:
	default:
		log.Printf("[interconnect] mixer channel unavailable during restart, dropping notice")
	}
	return fresh
}

// SendMixer delivers msg to ic.Mixer, reporting whether the task on
// the other end is still alive to receive it. A false return is the
// caller's cue to ask Core to RestartVolatileInternals.
func (ic *Interconnect) SendMixer(msg MixerMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ic.Mixer <- msg
	return true
}

// SendEvents delivers msg to ic.Events, same liveness contract as
// SendMixer.
func (ic *Interconnect) SendEvents(msg EventMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ic.Events <- msg
	return true
}

// SendCore delivers msg to ic.Core, same liveness contract as
// SendMixer.
func (ic *Interconnect) SendCore(msg CoreMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ic.Core <- msg
	return true
}

// SendDisposal hands value off to the disposal task. Never blocks
// forever: disposal's channel is large and its worker never does
// anything slow enough to back it up, but a best-effort non-blocking
// send still protects a caller on the mixer thread if disposal has
// fallen behind.
func (ic *Interconnect) SendDisposal(value any) {
	defer func() { recover() }()
	select {
	case ic.Disposal <- DisposalMessage{Value: value}:
	default:
		log.Printf("[interconnect] disposal channel full, dropping on sender side")
	}
}
