// Package disposal implements the disposal task: a goroutine whose
// only job is to receive values the mixer's real-time thread needs to
// stop owning — ended InternalTracks, closed decoders, anything with a
// destructor slow enough to blow the 20ms tick budget — and let them
// be garbage collected off that thread.
//
// Grounded verbatim on songbird's tasks/disposal.rs, whose entire
// runner is "do nothing but receive and drop."
package disposal

import "voicedriver/internal/interconnect"

// Run drains ic.Disposal until the channel is closed. Every received
// value is simply allowed to fall out of scope; there is no payload
// this task interprets; an InternalTrack internal/mixer has finished
// with is just a value here.
func Run(ic *interconnect.Interconnect) {
	for range ic.Disposal {
		// Intentionally empty: the value is dropped by the range loop
		// itself once the iteration variable is reassigned.
	}
}
