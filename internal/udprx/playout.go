// Package udprx implements the receive side of a voice UDP session:
// demultiplexing incoming RTP by SSRC, jitter-buffering each stream,
// and decoding Opus into PCM for a host to consume. Grounded on
// spec.md §3/§4.6 and original_source's driver/tasks/udp_rx/*.
package udprx

// PlayoutMode tracks whether a buffer is still accumulating packets
// toward its target depth (Filling) or steadily releasing them
// (Draining).
type PlayoutMode int

const (
	Filling PlayoutMode = iota
	Draining
)

// maxWindow bounds how far an incoming packet's offset from the
// buffer's base sequence number may be before it is dropped outright
// rather than grown into. Grounded verbatim on original_source's
// udp_rx/playout_buffer.rs offset bound.
const maxWindow = 64

// timestampStep is how much the 32-bit RTP timestamp advances per
// 20ms/960-sample frame at 48kHz — original_source's MONO_FRAME_SIZE.
const timestampStep = 960

// StoredPacket is one jitter-buffered RTP payload — decrypted Opus
// under the default decode mode, or the packet's raw wire payload
// verbatim under ModePass (internal/udprx.DecodeMode).
type StoredPacket struct {
	Sequence  uint16
	Timestamp uint32
	Payload   []byte
}

// PlayoutBuffer is a per-SSRC jitter buffer: an offset-indexed,
// growable deque of optional packets (a nil slot is a gap — a packet
// that hasn't arrived yet, or never will). It switches from Filling to
// Draining once it holds TargetDepth packets, and back to Filling if
// it ever empties out entirely, matching original_source's
// udp_rx/playout_buffer.rs Fill/Drain state machine keyed by RTP
// timestamp/sequence comparison rather than wall-clock arrival time.
//
// currentTimestamp tracks the playback clock's own RTP timestamp,
// started targetDepth frames behind the first packet seen. Pop
// withholds a packet — reverting to Filling rather than releasing it —
// whenever that packet's own timestamp is still ahead of the playback
// clock, which is how a genuine n-frame speech gap (rather than mere
// reordering) is told apart from steady-state draining.
type PlayoutBuffer struct {
	mode        PlayoutMode
	targetDepth int
	capacity    int // targetDepth + spike headroom

	slots    []*StoredPacket
	baseSeq  uint16
	haveBase bool

	currentTimestamp     uint32
	haveCurrentTimestamp bool
}

// NewPlayoutBuffer returns a buffer targeting steady-state depth
// targetDepth, willing to grow up to targetDepth+spikeLength before it
// starts dropping the oldest slot to make room for a new one.
func NewPlayoutBuffer(targetDepth, spikeLength int) *PlayoutBuffer {
	return &PlayoutBuffer{
		mode:        Filling,
		targetDepth: targetDepth,
		capacity:    targetDepth + spikeLength,
	}
}

// Push inserts pkt at the deque offset implied by its sequence number
// relative to the buffer's base. Packets whose offset falls outside
// [0, maxWindow) — too far in the past to matter, or absurdly far in
// the future — are silently dropped. Once capacity is exceeded the
// oldest slot is evicted to keep the buffer bounded.
func (b *PlayoutBuffer) Push(pkt StoredPacket) {
	if !b.haveBase {
		b.baseSeq = pkt.Sequence
		b.haveBase = true
	}
	if !b.haveCurrentTimestamp {
		b.currentTimestamp = pkt.Timestamp - uint32(b.targetDepth)*timestampStep
		b.haveCurrentTimestamp = true
	}

	offset := int(int16(pkt.Sequence - b.baseSeq))
	if offset < 0 || offset >= maxWindow {
		return
	}

	for len(b.slots) <= offset {
		b.slots = append(b.slots, nil)
	}
	b.slots[offset] = &pkt

	for len(b.slots) > b.capacity {
		b.slots = b.slots[1:]
		b.baseSeq++
	}

	// Matches original_source's store_packet: the buffer's total length —
	// gaps included — decides Fill->Drain, not a contiguous run. A single
	// missed packet shouldn't stall playout of everything queued behind it.
	if b.mode == Filling && len(b.slots) >= b.targetDepth {
		b.mode = Draining
	}
}

// Pop releases the next packet in sequence order. ok is false either
// because the buffer is still Filling (not enough depth yet to start
// steady playout, or a withheld packet just reverted it to Filling) or
// because it has run dry. A returned *StoredPacket of nil with ok true
// is a gap: the packet at this sequence position never arrived, and
// the caller should treat it as a loss (PLC/FEC, spec.md §4.6).
func (b *PlayoutBuffer) Pop() (*StoredPacket, bool) {
	if b.mode == Filling || len(b.slots) == 0 {
		b.mode = Filling
		return nil, false
	}

	slot := b.slots[0]

	if slot != nil && b.haveCurrentTimestamp {
		tsDiff := int32(b.currentTimestamp - slot.Timestamp)
		if tsDiff > 0 {
			// The next packet due for playout is still ahead of the
			// playback clock: a genuine speech gap, not reordering.
			// Withhold it in place and fall back to Filling until the
			// buffer rebuilds, per original_source's fetch_packet.
			b.mode = Filling
			b.advanceTimestamp()
			return nil, false
		}
	}

	b.slots = b.slots[1:]
	b.baseSeq++

	if len(b.slots) == 0 {
		b.mode = Filling
		b.haveCurrentTimestamp = false
	}
	b.advanceTimestamp()
	return slot, true
}

func (b *PlayoutBuffer) advanceTimestamp() {
	if b.haveCurrentTimestamp {
		b.currentTimestamp += timestampStep
	}
}

// Depth reports the current deque length, for quality-signal reporting.
func (b *PlayoutBuffer) Depth() int { return len(b.slots) }

// Mode reports the buffer's current Fill/Drain state.
func (b *PlayoutBuffer) Mode() PlayoutMode { return b.mode }
