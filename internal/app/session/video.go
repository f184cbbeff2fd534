package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/peerglass/peerglass/internal/app/relay"
	"github.com/peerglass/peerglass/internal/media"
	"github.com/peerglass/peerglass/internal/vision"
)

const (
	videoQueueSize   = 256
	keyframeInterval = 3 * time.Second
)

// attachVideo wires the inbound video track to the outbound one. With
// an active transform mode and a registered codec the stream goes
// through the decode/transform/encode pipeline; otherwise packets pass
// through untouched. The returned cleanup tears the pipeline input
// down and must run when the relay ends.
func (m *Manager) attachVideo(ctx context.Context, rl *relay.Relay, track *webrtc.TrackRemote, logger *zerolog.Logger) (func(), error) {
	noop := func() {}
	mime := track.Codec().MimeType

	if m.mode == vision.ModeNone {
		return noop, m.attachVideoPassthrough(ctx, rl, track)
	}

	factory, ok := media.LookupCodec(mime)
	if !ok {
		logger.Warn().Str("mime", mime).Msg("no codec registered, passing video through")
		return noop, m.attachVideoPassthrough(ctx, rl, track)
	}
	depack, ok := media.DepacketizerForMime(mime)
	if !ok {
		logger.Warn().Str("mime", mime).Msg("no depacketizer, passing video through")
		return noop, m.attachVideoPassthrough(ctx, rl, track)
	}
	codec, err := factory()
	if err != nil {
		return noop, fmt.Errorf("video codec: %w", err)
	}

	out, err := webrtc.NewTrackLocalStaticSample(track.Codec().RTPCodecCapability, "video", outStreamID)
	if err != nil {
		codec.Close()
		return noop, fmt.Errorf("video out track: %w", err)
	}
	sender, err := m.mc.AddTrack(out)
	if err != nil {
		codec.Close()
		return noop, fmt.Errorf("add video track: %w", err)
	}
	go drainRTCP(ctx, sender)
	go m.keyframeLoop(ctx, track, logger)

	pch := relay.NewPacketChan(videoQueueSize)
	rl.Subscribe("pipeline", pch)

	src := media.NewPacketSource(pch.C(), depack, track.Codec().ClockRate)
	mode := m.mode
	pipe := media.NewPipeline(src, out, codec, func(f *media.Frame) *media.Frame {
		return vision.Apply(f, mode)
	})
	go func() {
		if err := pipe.Run(ctx, logger); err != nil {
			logger.Error().Err(err).Msg("transform pipeline")
		}
	}()

	return pch.Close, nil
}

// attachVideoPassthrough forwards RTP packets as-is, same shape as the
// audio path.
func (m *Manager) attachVideoPassthrough(ctx context.Context, rl *relay.Relay, track *webrtc.TrackRemote) error {
	out, err := webrtc.NewTrackLocalStaticRTP(track.Codec().RTPCodecCapability, "video", outStreamID)
	if err != nil {
		return fmt.Errorf("video out track: %w", err)
	}
	sender, err := m.mc.AddTrack(out)
	if err != nil {
		return fmt.Errorf("add video track: %w", err)
	}
	go drainRTCP(ctx, sender)
	rl.Subscribe("peer", out)
	return nil
}

// keyframeLoop periodically asks the sender for a keyframe so the
// re-encoded stream stays decodable for late joiners and after loss.
func (m *Manager) keyframeLoop(ctx context.Context, track *webrtc.TrackRemote, logger *zerolog.Logger) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
			if err := m.mc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
				logger.Debug().Err(err).Msg("keyframe request")
				return
			}
		}
	}
}
