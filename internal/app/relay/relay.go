// Package relay lets one inbound track feed multiple outbound
// consumers without duplicate reads of the source.
package relay

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Writer consumes relayed packets. *webrtc.TrackLocalStaticRTP and the
// recording sink adapters satisfy it.
type Writer interface {
	WriteRTP(*rtp.Packet) error
}

// WriterFunc adapts a plain function to Writer.
type WriterFunc func(*rtp.Packet) error

func (f WriterFunc) WriteRTP(pkt *rtp.Packet) error { return f(pkt) }

type subState int32

const (
	subOk subState = iota
	subDelete
)

type subscriber struct {
	w     Writer
	state subState
}

// Relay reads RTP from one remote track and fans every packet out to
// its subscribers. A write failure removes only that subscriber; the
// read loop ends when the source track does.
type Relay struct {
	src *webrtc.TrackRemote

	mu      sync.RWMutex
	subs    map[string]*subscriber
	onEnded func()
	ended   sync.Once
}

func New(src *webrtc.TrackRemote) *Relay {
	return &Relay{
		src:  src,
		subs: make(map[string]*subscriber),
	}
}

// Subscribe attaches a named consumer. Re-subscribing a name replaces
// the previous consumer.
func (r *Relay) Subscribe(name string, w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[name] = &subscriber{w: w}
}

// OnEnded registers a callback fired exactly once when the source
// track stops delivering packets. Must be set before Loop starts.
func (r *Relay) OnEnded(fn func()) {
	r.onEnded = fn
}

// Kind reports the source track kind.
func (r *Relay) Kind() webrtc.RTPCodecType {
	return r.src.Kind()
}

// Loop reads RTP packets from the source track and forwards them to
// all subscribers until the track ends or ctx is canceled.
func (r *Relay) Loop(ctx context.Context, logger *zerolog.Logger) {
	defer r.fireEnded()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done")
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay source ended")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	snapshot := make(map[string]*subscriber, len(r.subs))
	r.mu.RLock()
	maps.Copy(snapshot, r.subs)
	r.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for name, sub := range snapshot {
		if sub.state == subDelete {
			dirty = append(dirty, name)
			continue
		}
		if err := sub.w.WriteRTP(pkt); err != nil {
			logger.Warn().Err(err).Str("subscriber", name).Msg("relay write failed, dropping subscriber")
			sub.state = subDelete
			dirty = append(dirty, name)
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, name := range dirty {
			delete(r.subs, name)
		}
		r.mu.Unlock()
	}
}

func (r *Relay) fireEnded() {
	r.ended.Do(func() {
		if r.onEnded != nil {
			r.onEnded()
		}
	})
}
