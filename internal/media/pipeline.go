package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"github.com/rs/zerolog"
)

// SampleSource yields whole encoded access units in decode order.
type SampleSource interface {
	ReadSample(ctx context.Context) (pionmedia.Sample, error)
}

// SampleSink consumes re-encoded samples. *webrtc.TrackLocalStaticSample
// satisfies it.
type SampleSink interface {
	WriteSample(pionmedia.Sample) error
}

// TransformFunc rewrites one frame. It must preserve PTS and time base.
type TransformFunc func(*Frame) *Frame

// Pipeline decodes samples from a source, applies a per-frame
// transform, re-encodes and forwards to a sink. Timing metadata of the
// source sample is carried through to the emitted one regardless of
// what the codec reports.
type Pipeline struct {
	src       SampleSource
	dst       SampleSink
	codec     Codec
	transform TransformFunc
}

func NewPipeline(src SampleSource, dst SampleSink, c Codec, transform TransformFunc) *Pipeline {
	return &Pipeline{src: src, dst: dst, codec: c, transform: transform}
}

// Run loops until the source ends or ctx is canceled. A sample the
// codec cannot decode is skipped, not fatal.
func (p *Pipeline) Run(ctx context.Context, logger *zerolog.Logger) error {
	defer p.codec.Close()
	for {
		s, err := p.src.ReadSample(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("pipeline read: %w", err)
		}

		frame, err := p.codec.Decode(s)
		if err != nil {
			logger.Debug().Err(err).Msg("undecodable sample, skipping")
			continue
		}

		out := p.transform(frame)

		es, err := p.codec.Encode(out)
		if err != nil {
			logger.Warn().Err(err).Msg("encode failed, skipping frame")
			continue
		}
		es.Duration = s.Duration
		es.PacketTimestamp = s.PacketTimestamp

		if err := p.dst.WriteSample(es); err != nil {
			return fmt.Errorf("pipeline write: %w", err)
		}
	}
}

// DepacketizerForMime returns the payload depacketizer for a video MIME
// type negotiated by the engine.
func DepacketizerForMime(mimeType string) (rtp.Depacketizer, bool) {
	switch strings.ToLower(mimeType) {
	case "video/vp8":
		return &codecs.VP8Packet{}, true
	case "video/vp9":
		return &codecs.VP9Packet{}, true
	case "video/h264":
		return &codecs.H264Packet{}, true
	default:
		return nil, false
	}
}

const sampleBuilderMaxLate = 64

type packetSource struct {
	ch <-chan *rtp.Packet
	sb *samplebuilder.SampleBuilder
}

// NewPacketSource assembles full samples from relayed RTP packets.
func NewPacketSource(ch <-chan *rtp.Packet, depacketizer rtp.Depacketizer, clockRate uint32) SampleSource {
	return &packetSource{
		ch: ch,
		sb: samplebuilder.New(sampleBuilderMaxLate, depacketizer, clockRate),
	}
}

func (p *packetSource) ReadSample(ctx context.Context) (pionmedia.Sample, error) {
	for {
		if s := p.sb.Pop(); s != nil {
			return *s, nil
		}
		select {
		case <-ctx.Done():
			return pionmedia.Sample{}, ctx.Err()
		case pkt, ok := <-p.ch:
			if !ok {
				return pionmedia.Sample{}, io.EOF
			}
			p.sb.Push(pkt)
		}
	}
}
