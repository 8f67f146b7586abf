package voicedriver

import (
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"voicedriver/internal/adapt"
	"voicedriver/internal/disposal"
	"voicedriver/internal/events"
	"voicedriver/internal/interconnect"
	"voicedriver/internal/mixer"
	"voicedriver/internal/opuscodec"
	"voicedriver/internal/rtpcrypto"
	"voicedriver/internal/trackapi"
	"voicedriver/internal/udprx"
)

// ConnectionInfo is everything a Driver needs to open one voice UDP
// session: the negotiated remote endpoint, SSRC, crypto key, and the
// starting RTP sequence/timestamp a voice gateway typically hands out
// alongside them. Grounded on spec.md §6 and original_source's
// ConnectionInfo (driver/connection.rs).
type ConnectionInfo struct {
	RemoteAddr     string
	SSRC           uint32
	CryptoKey      []byte
	StartSequence  uint16
	StartTimestamp uint32
}

// Driver is the root handle a host program creates once per voice
// session. It plays the Core role itself: New launches the mixer,
// events, udp-rx and disposal goroutines directly, and Driver holds
// the Interconnect binding them. Nothing watches or restarts those
// goroutines once they are running. Grounded on original_source's
// driver/tasks/mod.rs runner.
type Driver struct {
	cfg Config

	ic     *interconnect.Interconnect
	mix    *mixer.Mixer
	evTask *events.Task
	rx     *udprx.Rx
	conn   net.PacketConn

	nextTrackID uint64

	mu      sync.Mutex
	current ConnectionInfo

	quality qualitySample
}

// qualitySample is the most recent RTCP-derived signal
// ApplyQualityHint folds into internal/adapt's ladder, guarded by
// atomics so Core's goroutine and a host's own goroutine can both
// touch it without a full mutex on the hot path.
type qualitySample struct {
	lossRate atomic.Uint64 // float64 bits
	rttMs    atomic.Uint64 // float64 bits
	bitrate  atomic.Int64
}

// New constructs a Driver around a connected UDP socket and starts its
// Core, mixer, events and disposal tasks. conn should already be
// "connected" in the sense that WriteTo always targets info.RemoteAddr
// — the driver itself does not perform the voice gateway handshake
// (spec.md §1 scopes that out; only the UDP media session is this
// module's concern).
func New(conn net.PacketConn, info ConnectionInfo, cfg Config) (*Driver, error) {
	cipher, err := rtpcrypto.NewCipher(mustMode(cfg.CryptoMode), info.CryptoKey)
	if err != nil {
		return nil, fmt.Errorf("voicedriver: %w", err)
	}

	rtpState := rtpcrypto.NewRtpState(info.SSRC, info.StartSequence, info.StartTimestamp, cipher)

	encoder, err := opuscodec.NewEncoder(cfg.BitrateKbps)
	if err != nil {
		return nil, fmt.Errorf("voicedriver: %w", err)
	}

	remote, err := net.ResolveUDPAddr("udp", info.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("voicedriver: resolving remote addr: %w", err)
	}
	send := func(packet []byte) error {
		_, err := conn.WriteTo(packet, remote)
		return err
	}

	ic := interconnect.New()
	mix := mixer.NewMixer(ic, rtpState, encoder, send, cfg.UseSoftclip)
	evTask := events.New()

	d := &Driver{
		cfg:     cfg,
		ic:      ic,
		mix:     mix,
		evTask:  evTask,
		conn:    conn,
		current: info,
	}
	d.quality.bitrate.Store(int64(cfg.BitrateKbps))

	rxCipher, err := rtpcrypto.NewCipher(mustMode(cfg.CryptoMode), info.CryptoKey)
	if err != nil {
		return nil, fmt.Errorf("voicedriver: %w", err)
	}
	decodeMode, err := udprx.ParseDecodeMode(cfg.DecodeMode)
	if err != nil {
		log.Printf("[driver] %v, falling back to decrypt_decode", err)
		decodeMode = udprx.ModeDecryptDecode
	}
	d.rx = udprx.NewRx(conn, rxCipher, cfg.PlayoutBufferLength, cfg.PlayoutSpikeLength, func(udprx.DecodedFrame) {
		// No default receive sink: a host wanting received audio should
		// build its own Driver around udprx.NewRx directly, or this can
		// be extended with a SetReceiveSink method. Left minimal here
		// since spec.md's Track model is output-only (§3 Non-goals).
	}, ic, decodeMode)

	go mix.Run()
	go evTask.Run(ic)
	go disposal.Run(ic)
	go d.rx.Listen()
	go d.drainRx()

	return d, nil
}

func mustMode(name string) rtpcrypto.CryptoMode {
	mode, err := rtpcrypto.ParseCryptoMode(name)
	if err != nil {
		log.Printf("[driver] %v, falling back to xsalsa20_poly1305_lite", err)
		return rtpcrypto.ModeLite
	}
	return mode
}

// drainRx ticks the udp-rx task's jitter-buffer drain at the same
// cadence the mixer emits on, keeping receive-side playout aligned
// with the driver's own 20ms clock rather than draining on every
// packet arrival.
func (d *Driver) drainRx() {
	ticker := time.NewTicker(trackapi.FrameDuration)
	defer ticker.Stop()
	for range ticker.C {
		d.rx.Drain()
	}
}

// AddTrack hands track to the mixer and returns a handle the caller
// uses to control it. Grounded on original_source's
// driver/tasks/mod.rs CoreMessage::AddTrack path.
func (d *Driver) AddTrack(track Track) TrackHandle {
	id := atomic.AddUint64(&d.nextTrackID, 1)
	commands := make(chan trackapi.TrackCommand, 64)

	d.ic.SendEvents(interconnect.EventMessage{
		Kind:    interconnect.EventsAddTrack,
		TrackID: id,
		Store:   track.Events,
	})

	d.ic.SendMixer(interconnect.MixerMessage{
		Kind: interconnect.MixerAddTrack,
		AddTrack: &interconnect.TrackContext{
			ID:       id,
			Track:    track,
			Commands: commands,
		},
	})

	return trackapi.NewTrackHandle(commands)
}

// SetTrack replaces every live track with a single new one — songbird's
// "play exclusively" convenience, useful for a driver that only ever
// has one thing playing at a time.
func (d *Driver) SetTrack(track Track) TrackHandle {
	id := atomic.AddUint64(&d.nextTrackID, 1)
	commands := make(chan trackapi.TrackCommand, 64)

	d.ic.SendMixer(interconnect.MixerMessage{
		Kind: interconnect.MixerSetTrack,
		AddTrack: &interconnect.TrackContext{
			ID:       id,
			Track:    track,
			Commands: commands,
		},
	})

	return trackapi.NewTrackHandle(commands)
}

// SetMute gates or ungates the outgoing mix entirely: muted ticks still
// run the full mixer loop (tracks keep advancing, commands keep
// draining) but nothing is sent to the voice gateway. Grounded on
// spec.md §4.1 step 1/6 and original_source's MixerMessage::SetMute.
func (d *Driver) SetMute(muted bool) {
	d.ic.SendMixer(interconnect.MixerMessage{Kind: interconnect.MixerSetMute, Muted: muted})
}

// ApplyQualityHint feeds an outside-observed loss rate and RTT into
// internal/adapt's bitrate ladder and jitter-depth sizing, applying
// the result as a MixerSetConfig message. It is never called
// automatically from the mixer tick itself — only a host with its own
// RTCP receiver-report pipeline (outside this module's scope, spec.md
// §1) should drive this. Supplements spec.md §6's static
// playout_buffer_length with an adaptive suggestion.
func (d *Driver) ApplyQualityHint(lossRate, rttMs float64) {
	d.quality.lossRate.Store(math.Float64bits(lossRate))
	d.quality.rttMs.Store(math.Float64bits(rttMs))

	current := int(d.quality.bitrate.Load())
	next := adapt.NextBitrate(current, lossRate, rttMs)
	d.quality.bitrate.Store(int64(next))

	d.ic.SendMixer(interconnect.MixerMessage{
		Kind:        interconnect.MixerSetConfig,
		BitrateKbps: next,
	})

	depth := adapt.TargetJitterDepth(rttMs, lossRate)
	log.Printf("[driver] quality hint: bitrate=%dkbps suggested_jitter_depth=%dframes", next, depth)
}

// LastQualitySample returns the most recent loss rate, RTT and bitrate
// ApplyQualityHint recorded, for a host that wants to log or expose
// them without keeping its own copy.
func (d *Driver) LastQualitySample() (lossRate, rttMs float64, bitrateKbps int) {
	return math.Float64frombits(d.quality.lossRate.Load()),
		math.Float64frombits(d.quality.rttMs.Load()),
		int(d.quality.bitrate.Load())
}

// Reconnect retries the existing connection object: re-resolving the
// remote address and rebuilding the RTP/crypto state, keeping the
// Interconnect. It replaces the mixer, and tracks owned by the old
// mixer are not carried over to the new one. Grounded on
// original_source's tasks/mod.rs soft-reconnect path (spec.md §7).
func (d *Driver) Reconnect(info ConnectionInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cipher, err := rtpcrypto.NewCipher(mustMode(d.cfg.CryptoMode), info.CryptoKey)
	if err != nil {
		return fmt.Errorf("voicedriver: reconnect: %w", err)
	}
	remote, err := net.ResolveUDPAddr("udp", info.RemoteAddr)
	if err != nil {
		return fmt.Errorf("voicedriver: reconnect: resolving remote addr: %w", err)
	}

	rtpState := rtpcrypto.NewRtpState(info.SSRC, info.StartSequence, info.StartTimestamp, cipher)
	send := func(packet []byte) error {
		_, err := d.conn.WriteTo(packet, remote)
		return err
	}

	encoder, err := opuscodec.NewEncoder(int(d.quality.bitrate.Load()))
	if err != nil {
		return fmt.Errorf("voicedriver: reconnect: %w", err)
	}

	// Poisoning the old Interconnect's Mixer channel stops its Run loop;
	// the replacement mixer takes over with the tracks list it rebuilds
	// as the driver re-adds them. A soft reconnect intentionally does not
	// try to hand tracks across mixers — that degree of continuity needs
	// FullReconnect's fresh Interconnect instead.
	d.ic.SendMixer(interconnect.MixerMessage{Kind: interconnect.MixerPoison})
	d.mix = mixer.NewMixer(d.ic, rtpState, encoder, send, d.cfg.UseSoftclip)
	go d.mix.Run()

	d.current = info
	d.ic.SendEvents(interconnect.EventMessage{
		Kind: interconnect.EventsFireCore,
		Core: trackapi.EventData{Kind: trackapi.EventDriverReconnect, Fired: time.Now()},
	})
	return nil
}

// FullReconnect rebuilds the driver from scratch against a fresh
// connection object, restarting volatile internals (a new events task
// and Interconnect) on the assumption that whatever made Reconnect
// insufficient may have left a task wedged. Grounded on
// original_source's tasks/mod.rs FullReconnect escalation (spec.md §7).
func (d *Driver) FullReconnect(conn net.PacketConn, info ConnectionInfo, cfg Config) error {
	fresh, err := New(conn, info, cfg)
	if err != nil {
		return fmt.Errorf("voicedriver: full reconnect: %w", err)
	}

	d.mu.Lock()
	old := d.ic
	d.conn = fresh.conn
	d.mix = fresh.mix
	d.evTask = fresh.evTask
	d.rx = fresh.rx
	d.ic = fresh.ic
	d.current = info
	d.mu.Unlock()

	old.Poison()
	d.ic.SendEvents(interconnect.EventMessage{
		Kind: interconnect.EventsFireCore,
		Core: trackapi.EventData{Kind: trackapi.EventDriverReconnect, Fired: time.Now()},
	})
	return nil
}

// Stop poisons the Interconnect, signalling every task to drain and
// exit, and closes the underlying socket.
func (d *Driver) Stop() {
	d.ic.Poison()
	d.conn.Close()
}
