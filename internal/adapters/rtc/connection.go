// Package rtc adapts the pion negotiation engine to core.MediaConnection.
package rtc

import (
	"context"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/peerglass/peerglass/internal/domain"
)

type Connection struct {
	pc     *webrtc.PeerConnection
	id     domain.SessionID
	cancel context.CancelFunc

	onTrack       func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onDataChannel func(dc *webrtc.DataChannel)
	onState       func(state webrtc.PeerConnectionState)

	closeOnce sync.Once
}

// Config builds the engine configuration from the configured STUN urls.
func Config(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunURLs},
		},
	}
}

func NewConnection(cfg webrtc.Configuration, id domain.SessionID) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{pc: pc, id: id}, nil
}

func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("session", string(c.id)).Str("state", s.String()).Msg("peer state")
		if c.onState != nil {
			c.onState(s)
		}
	})

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("session", string(c.id)).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Info().Str("module", "rtc").Str("session", string(c.id)).Str("label", dc.Label()).Msg("datachannel opened")
		if c.onDataChannel != nil {
			c.onDataChannel(dc)
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("session", string(c.id)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("track received")
		if c.onTrack != nil {
			c.onTrack(ctx, track, receiver)
		}
	})

	return nil
}

// ApplyOfferAndCreateAnswer blocks until ICE gathering has completed so
// the returned description is final, not trickle-incremental.
func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		err = c.pc.Close()
		if err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("session", string(c.id)).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("session", string(c.id)).Msg("closed")
		}
	})
	return err
}

func (c *Connection) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

func (c *Connection) WriteRTCP(pkts []rtcp.Packet) error {
	return c.pc.WriteRTCP(pkts)
}

func (c *Connection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

func (c *Connection) OnDataChannel(fn func(dc *webrtc.DataChannel)) {
	c.onDataChannel = fn
}

func (c *Connection) OnStateChange(fn func(state webrtc.PeerConnectionState)) {
	c.onState = fn
}
