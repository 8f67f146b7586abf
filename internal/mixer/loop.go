package mixer

import (
	"log"
	"time"

	"voicedriver/internal/interconnect"
	"voicedriver/internal/opuscodec"
	"voicedriver/internal/rtpcrypto"
	"voicedriver/internal/trackapi"
)

// Mixer owns the single real-time tick loop described by spec.md §4.1:
// one goroutine, one 20ms deadline, no blocking I/O on its own thread.
// Grounded on original_source's driver/tasks/mixer/mod.rs.
type Mixer struct {
	ic      *interconnect.Interconnect
	pool    *BlockingPool
	tracks  map[uint64]*InternalTrack
	rtp     *rtpcrypto.RtpState
	encoder *opuscodec.Encoder
	gate    *EmissionGate

	send        func([]byte) error
	bitrate     int
	muted       bool
	useSoftclip bool
}

// NewMixer builds a Mixer ready to Run. send is called once per
// emitted tick with a fully framed, encrypted RTP packet — typically a
// thin wrapper around a net.PacketConn.WriteTo bound to the voice
// gateway's negotiated remote address. useSoftclip selects the mix
// limiter: a soft knee when true, a hard clamp to [-1,1] when false
// (spec.md §6 use_softclip).
func NewMixer(ic *interconnect.Interconnect, rtp *rtpcrypto.RtpState, encoder *opuscodec.Encoder, send func([]byte) error, useSoftclip bool) *Mixer {
	return &Mixer{
		ic:          ic,
		pool:        NewBlockingPool(),
		tracks:      make(map[uint64]*InternalTrack),
		rtp:         rtp,
		encoder:     encoder,
		gate:        NewEmissionGate(),
		send:        send,
		useSoftclip: useSoftclip,
	}
}

// Run executes the tick loop until the mixer channel is closed
// (Poison) or a MixerPoison message arrives. It never returns early on
// a transient error from send — a single dropped packet is not worth
// stalling or restarting the whole loop over, it's logged and the tick
// continues (spec.md §4.1, §7: transport errors are the udp layer's
// concern, not the mixer's).
func (m *Mixer) Run() {
	defer m.pool.Close()

	deadline := time.Now()
	for {
		deadline = deadline.Add(trackapi.FrameDuration)

		if !m.drainControl() {
			return
		}

		fired := m.tickTracks()

		live := make([]*InternalTrack, 0, len(m.tracks))
		for _, t := range m.tracks {
			live = append(live, t)
		}

		out := make([]float32, trackapi.FrameSize*2)
		result := Tick(live, m.pool, out, m.useSoftclip)

		decision := m.gate.Observe(gatedPCM(result))
		if !m.muted && decision.Emit {
			toEmit := result
			if decision.Silence {
				toEmit = mixResult{status: result.status, PCM: make([]float32, trackapi.FrameSize*2)}
			}
			if err := m.emit(toEmit); err != nil {
				log.Printf("[mixer] emit failed: %v", err)
			}
		}

		m.ic.SendEvents(interconnect.EventMessage{Kind: interconnect.EventsTick, Fired: fired, Timestamp: time.Now()})

		sleepUntilDeadline(&deadline)
	}
}

// tickTracks drains every track's commands, advances its InputState,
// and routes any track that has ended (by command or by readying
// failure) to the disposal task. Returns the per-track events fired
// this tick for the events task.
func (m *Mixer) tickTracks() []interconnect.TrackFire {
	now := time.Now()
	var fired []interconnect.TrackFire

	for id, t := range m.tracks {
		action := t.processCommands(now)
		t.ApplyAction(action, m.pool)

		if _, perr := t.getOrReadyInput(m.pool); perr != nil {
			log.Printf("[mixer] track %d: %v", id, perr)
			fired = append(fired, interconnect.TrackFire{
				TrackID: id,
				Data:    trackapi.EventData{Kind: trackapi.EventError, Err: perr, Fired: now},
				State:   t.state(),
			})
			t.Playing = trackapi.ModeEnd
		}

		if t.DecodeErr != nil {
			log.Printf("[mixer] track %d: %v", id, t.DecodeErr)
			fired = append(fired, interconnect.TrackFire{
				TrackID: id,
				Data:    trackapi.EventData{Kind: trackapi.EventError, Err: t.DecodeErr, Fired: now},
				State:   t.state(),
			})
			t.DecodeErr = nil
		}

		if t.Playing == trackapi.ModeEnd {
			fired = append(fired, interconnect.TrackFire{
				TrackID: id,
				Data:    trackapi.EventData{Kind: trackapi.EventEnd, Fired: now},
				State:   t.state(),
			})
			t.Dispose()
			m.ic.SendDisposal(t)
			m.ic.SendEvents(interconnect.EventMessage{Kind: interconnect.EventsRemoveTrack, TrackID: id})
			delete(m.tracks, id)
		}
	}
	return fired
}

// drainControl applies every MixerMessage currently queued without
// blocking. Returns false once the channel closes or a MixerPoison
// message arrives, telling Run to exit.
func (m *Mixer) drainControl() bool {
	for {
		select {
		case msg, ok := <-m.ic.Mixer:
			if !ok {
				return false
			}
			if !m.applyControl(msg) {
				return false
			}
		default:
			return true
		}
	}
}

func (m *Mixer) applyControl(msg interconnect.MixerMessage) bool {
	switch msg.Kind {
	case interconnect.MixerAddTrack:
		if msg.AddTrack != nil {
			t := decomposeTrack(*msg.AddTrack)
			m.tracks[t.ID] = t
		}

	case interconnect.MixerSetTrack:
		for _, t := range m.tracks {
			t.Dispose()
			m.ic.SendDisposal(t)
		}
		m.tracks = make(map[uint64]*InternalTrack)
		if msg.AddTrack != nil {
			t := decomposeTrack(*msg.AddTrack)
			m.tracks[t.ID] = t
		}

	case interconnect.MixerSetConfig:
		if msg.BitrateKbps > 0 {
			m.bitrate = msg.BitrateKbps
			if err := m.encoder.SetBitrate(m.bitrate); err != nil {
				log.Printf("[mixer] set bitrate: %v", err)
			}
		}
		if msg.SetSoftclip {
			m.useSoftclip = msg.UseSoftclip
		}

	case interconnect.MixerSetMute:
		m.muted = msg.Muted

	case interconnect.MixerRebuildEncoder:
		enc, err := opuscodec.NewEncoder(m.bitrate)
		if err != nil {
			log.Printf("[mixer] rebuild encoder: %v", err)
			break
		}
		m.encoder = enc

	case interconnect.MixerReplaceInterconnect:
		if msg.Interconnect != nil {
			m.ic = msg.Interconnect
		}

	case interconnect.MixerPoison:
		return false
	}
	return true
}

// gatedPCM extracts the PCM the EmissionGate should evaluate for
// silence, or nil for a passthrough frame (already-encoded audio,
// never treated as silence since the mixer never decodes it).
func gatedPCM(result mixResult) []float32 {
	if result.Passthrough {
		return nil
	}
	return result.PCM
}

func (m *Mixer) emit(result mixResult) error {
	payload := result.RawPayload
	if !result.Passthrough {
		pcm := result.PCM
		if pcm == nil {
			pcm = make([]float32, trackapi.FrameSize*2)
		}
		encoded, err := m.encoder.Encode(pcm)
		if err != nil {
			return err
		}
		payload = encoded
	}

	packet, err := m.rtp.NextPacket(payload, false)
	if err != nil {
		return err
	}
	return m.send(packet)
}

// sleepUntilDeadline sleeps until *deadline, or — if the tick loop has
// fallen behind (a slow pool callback, GC pause, scheduler hiccup) —
// fast-forwards the deadline to the next frame boundary after now
// instead of trying to catch up tick-for-tick. Grounded on spec.md
// §4.1 step 8 ("sleep until prior deadline + 20ms, skip ticks to
// resync").
func sleepUntilDeadline(deadline *time.Time) {
	now := time.Now()
	if now.After(*deadline) {
		behind := now.Sub(*deadline)
		skipped := behind/trackapi.FrameDuration + 1
		*deadline = deadline.Add(skipped * trackapi.FrameDuration)
		return
	}
	time.Sleep(deadline.Sub(now))
}
