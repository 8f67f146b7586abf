package mixer

import "voicedriver/internal/trackapi"

// InputReadyingError pairs a track ID with the PlayError its input
// readying step produced. The tick loop does not use it: tickTracks
// fires the PlayError from getOrReadyInput as an EventError directly.
// Grounded on
// original_source's mixer/result.rs InputReadyingError::into_user.
type InputReadyingError struct {
	TrackID uint64
	Err     *trackapi.PlayError
}

// MixStatus summarizes what one tick's mix step produced: how many
// tracks contributed audio, how many are still being readied, how
// many ended this tick, and whether RTP passthrough applied. Grounded
// on original_source's mixer/result.rs MixType, generalized into a
// plain status struct rather than a closed enum since Go callers
// (logging, metrics) want all of these fields at once rather than a
// single tagged outcome.
type MixStatus struct {
	TracksMixed     int
	TracksPreparing int
	TracksEnded     int
	Passthrough     bool
}
