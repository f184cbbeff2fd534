// Package session owns the lifecycle of one peer media session: the
// offer/answer exchange, the datachannel echo protocol, track fan-out
// through the transform stage, and the recording sink keyed to track
// lifetime.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peerglass/peerglass/internal/app/record"
	"github.com/peerglass/peerglass/internal/app/relay"
	"github.com/peerglass/peerglass/internal/core"
	"github.com/peerglass/peerglass/internal/domain"
	"github.com/peerglass/peerglass/internal/vision"
)

const outStreamID = "peerglass"

type Options struct {
	ID    domain.SessionID
	Media core.MediaConnection
	Mode  vision.Mode
	Sink  record.Sink
	// OnClosed is invoked once when the session reaches a terminal
	// state; the registry uses it to purge the entry.
	OnClosed func(domain.SessionID)
}

type Manager struct {
	id   domain.SessionID
	mc   core.MediaConnection
	mode vision.Mode
	sink record.Sink

	onClosed func(domain.SessionID)

	cancel context.CancelFunc

	mu         sync.Mutex
	state      domain.ConnectionState
	liveTracks int

	stopSink  sync.Once
	closeOnce sync.Once
}

func NewManager(opts Options) *Manager {
	return &Manager{
		id:       opts.ID,
		mc:       opts.Media,
		mode:     opts.Mode,
		sink:     opts.Sink,
		onClosed: opts.OnClosed,
		state:    domain.StateNew,
	}
}

func (m *Manager) ID() domain.SessionID { return m.id }

func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HandleOffer registers the lifecycle callbacks, starts the recording
// sink before any track data can arrive, applies the remote
// description and returns the fully gathered local one. ctx bounds the
// session lifetime, not just this call.
func (m *Manager) HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.mc.OnDataChannel(m.bindDataChannel)
	m.mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.onTrack(trackCtx, track)
	})
	m.mc.OnStateChange(m.onEngineState)

	if err := m.mc.Start(ctx); err != nil {
		return nil, fmt.Errorf("session %s: start engine: %w", m.id, err)
	}

	if err := m.sink.Start(); err != nil {
		return nil, fmt.Errorf("session %s: start recording: %w", m.id, err)
	}

	answer, err := m.mc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		return nil, fmt.Errorf("session %s: apply offer: %w", m.id, err)
	}
	return answer, nil
}

// bindDataChannel wires the echo micro-protocol onto an incoming
// datachannel. Binary messages and unmarked text are ignored.
func (m *Manager) bindDataChannel(dc *webrtc.DataChannel) {
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		reply, ok := EchoReply(msg.Data)
		if !ok {
			return
		}
		if err := dc.SendText(string(reply)); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("session", string(m.id)).Msg("datachannel send")
		}
	})
}

// onEngineState mirrors the engine's state into the session, forward
// transitions only. Observing failed tears the session down.
func (m *Manager) onEngineState(s webrtc.PeerConnectionState) {
	next, ok := mapEngineState(s)
	if !ok {
		return
	}

	m.mu.Lock()
	if !m.state.CanTransition(next) {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = next
	m.mu.Unlock()

	log.Info().
		Str("module", "session").
		Str("session", string(m.id)).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("state change")

	if next == domain.StateFailed {
		m.Close()
	}
}

func mapEngineState(s webrtc.PeerConnectionState) (domain.ConnectionState, bool) {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return domain.StateNew, true
	case webrtc.PeerConnectionStateConnecting:
		return domain.StateConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return domain.StateConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return domain.StateDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return domain.StateFailed, true
	case webrtc.PeerConnectionStateClosed:
		return domain.StateClosed, true
	default:
		return 0, false
	}
}

// onTrack attaches one inbound track: exactly one outbound track per
// inbound kind, plus a recorder subscription when recording is on.
func (m *Manager) onTrack(ctx context.Context, track *webrtc.TrackRemote) {
	rl := relay.New(track)

	logger := log.With().
		Str("module", "session").
		Str("session", string(m.id)).
		Str("kind", rl.Kind().String()).
		Logger()

	switch rl.Kind() {
	case webrtc.RTPCodecTypeAudio:
		if err := m.attachAudio(ctx, rl, track); err != nil {
			logger.Error().Err(err).Msg("attach audio")
			return
		}
		if m.sink.Enabled() {
			rl.Subscribe("recorder", relay.WriterFunc(m.sink.WriteAudio))
		}
		rl.OnEnded(func() { m.trackEnded(&logger) })
	case webrtc.RTPCodecTypeVideo:
		cleanup, err := m.attachVideo(ctx, rl, track, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("attach video")
			return
		}
		if m.sink.Enabled() {
			rl.Subscribe("recorder", relay.WriterFunc(m.sink.WriteVideo))
		}
		rl.OnEnded(func() {
			cleanup()
			m.trackEnded(&logger)
		})
	default:
		logger.Warn().Msg("unsupported track kind")
		return
	}

	m.mu.Lock()
	m.liveTracks++
	m.mu.Unlock()

	go rl.Loop(ctx, &logger)
}

// attachAudio forwards the inbound audio stream to the peer unchanged.
func (m *Manager) attachAudio(ctx context.Context, rl *relay.Relay, track *webrtc.TrackRemote) error {
	out, err := webrtc.NewTrackLocalStaticRTP(track.Codec().RTPCodecCapability, "audio", outStreamID)
	if err != nil {
		return fmt.Errorf("audio out track: %w", err)
	}
	sender, err := m.mc.AddTrack(out)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}
	go drainRTCP(ctx, sender)
	rl.Subscribe("peer", out)
	return nil
}

// trackEnded stops the recording sink once the last live track of the
// session has ended. Stopping a disabled sink is a no-op.
func (m *Manager) trackEnded(logger *zerolog.Logger) {
	m.mu.Lock()
	m.liveTracks--
	remaining := m.liveTracks
	m.mu.Unlock()

	logger.Info().Int("remaining", remaining).Msg("track ended")
	if remaining > 0 {
		return
	}
	m.stopRecording(logger)
}

func (m *Manager) stopRecording(logger *zerolog.Logger) {
	m.stopSink.Do(func() {
		if err := m.sink.Stop(); err != nil {
			logger.Error().Err(err).Msg("stop recording")
		}
	})
}

// Close shuts the engine down and purges the session from the
// registry. Idempotent; also the terminal step of the failed path.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.state.CanTransition(domain.StateClosed) {
			m.state = domain.StateClosed
		}
		m.mu.Unlock()

		if m.cancel != nil {
			m.cancel()
		}
		if err := m.mc.Close(); err != nil {
			log.Error().Err(err).Str("module", "session").Str("session", string(m.id)).Msg("close engine")
		}

		logger := log.With().Str("module", "session").Str("session", string(m.id)).Logger()
		m.stopRecording(&logger)

		if m.onClosed != nil {
			m.onClosed(m.id)
		}
	})
}

// drainRTCP keeps the sender's interceptor chain fed; pion requires
// the application to read RTCP off every RTPSender.
func drainRTCP(ctx context.Context, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
