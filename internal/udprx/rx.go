package udprx

import (
	"log"
	"net"
	"time"

	"github.com/pion/rtp"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/rtpcrypto"
)

// DecodedFrame is one tick's worth of audio from a single sender,
// handed to whatever the host registered as its receive sink. Exactly
// one of PCM or Payload is populated, depending on the Rx's
// DecodeMode: PCM for ModeDecryptDecode, Payload (plaintext Opus or,
// under ModePass, still-encrypted bytes) otherwise.
type DecodedFrame struct {
	SSRC    uint32
	PCM     []float32 // interleaved stereo float32, 48kHz
	Payload []byte
}

// Sink receives decoded audio as it drains from each sender's jitter
// buffer. The driver never mixes received audio back into its own
// outgoing stream on its own (spec.md §1: one active upstream
// connection, no general DSP) — it is purely handed to the host.
type Sink func(DecodedFrame)

// pruneTimeout is how long a sender may go without a packet before its
// SsrcState is dropped, matching original_source's udp_rx prune_time.
const pruneTimeout = 30 * time.Second

// Rx is the UDP receive task: one goroutine reading datagrams off a
// single net.PacketConn, demultiplexing by SSRC into per-sender
// jitter buffers, and draining those buffers on the same 20ms
// cadence the mixer ticks on. Grounded on spec.md §4.6 and the
// teacher's StartReceiving goroutine shape (transport.go), re-aimed at
// a raw UDP socket instead of a WebTransport datagram session.
type Rx struct {
	conn   net.PacketConn
	cipher *rtpcrypto.Cipher
	sink   Sink
	ic     *interconnect.Interconnect
	mode   DecodeMode

	bufferLength int
	spikeLength  int

	streams map[uint32]*SsrcState
}

// NewRx builds a receive task reading off conn, decrypting with
// cipher, and handing frames at the given DecodeMode to sink.
func NewRx(conn net.PacketConn, cipher *rtpcrypto.Cipher, bufferLength, spikeLength int, sink Sink, ic *interconnect.Interconnect, mode DecodeMode) *Rx {
	return &Rx{
		conn:         conn,
		cipher:       cipher,
		sink:         sink,
		ic:           ic,
		mode:         mode,
		bufferLength: bufferLength,
		spikeLength:  spikeLength,
		streams:      make(map[uint32]*SsrcState),
	}
}

// Listen reads datagrams off conn until ReadFrom errors (typically
// because the connection was closed by Stop); it does not watch ic for
// poisoning. Run it on its
// own goroutine; Drain should be ticked separately at the mixer's 20ms
// cadence so jitter-buffer release stays aligned with mix output.
func (r *Rx) Listen() {
	buf := make([]byte, 1500)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			log.Printf("[udprx] read: %v", err)
			return
		}
		r.handlePacket(buf[:n])
	}
}

func (r *Rx) handlePacket(raw []byte) {
	var packet rtp.Packet
	if err := packet.Unmarshal(raw); err != nil {
		log.Printf("[udprx] malformed rtp packet: %v", err)
		return
	}

	payload := packet.Payload
	if r.mode != ModePass {
		headerBytes := raw[:len(raw)-len(packet.Payload)]
		plaintext, err := r.cipher.Decrypt(headerBytes, packet.Payload)
		if err != nil {
			log.Printf("[udprx] decrypt failed ssrc=%d: %v", packet.SSRC, err)
			return
		}
		payload = plaintext
	}

	state, ok := r.streams[packet.SSRC]
	var err error
	if !ok {
		state, err = NewSsrcState(packet.SSRC, r.bufferLength, r.spikeLength)
		if err != nil {
			log.Printf("[udprx] new decoder for ssrc=%d: %v", packet.SSRC, err)
			return
		}
		r.streams[packet.SSRC] = state
	}
	state.Touch(time.Now())
	state.Playout.Push(StoredPacket{
		Sequence:  packet.SequenceNumber,
		Timestamp: packet.Timestamp,
		Payload:   payload,
	})
}

// Drain pops one packet (or gap) from every live sender's jitter
// buffer and delivers it to Sink. Under ModeDecryptDecode it decodes
// (running PLC on a gap; FEC is not used here) and delivers PCM; under
// ModeDecryptOnly or ModePass there is no decoder to drive a gap
// through, so a missed slot is simply skipped rather than synthesized.
// Called once per mixer tick by the driver's Core task. Also prunes
// senders that have gone idle past pruneTimeout.
func (r *Rx) Drain() {
	now := time.Now()
	for ssrc, state := range r.streams {
		if state.Idle(now, pruneTimeout) {
			delete(r.streams, ssrc)
			continue
		}

		pkt, ok := state.Playout.Pop()
		if !ok {
			continue
		}

		if r.mode != ModeDecryptDecode {
			if pkt == nil {
				continue
			}
			r.sink(DecodedFrame{SSRC: ssrc, Payload: pkt.Payload})
			continue
		}

		var pcm []float32
		var err error
		if pkt == nil {
			pcm, err = state.Decode(nil) // PLC
		} else {
			pcm, err = state.Decode(pkt.Payload)
		}
		if err != nil {
			log.Printf("[udprx] decode failed ssrc=%d: %v", ssrc, err)
			continue
		}

		r.sink(DecodedFrame{SSRC: ssrc, PCM: pcm})
	}
}
