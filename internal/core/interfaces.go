// Package core declares the seams between the signaling, session and
// media layers. Adapters own the concrete transports.
package core

import (
	"context"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// Frame is a raw binary payload (one outbound signaling message).
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MediaConnection wraps the external negotiation engine for one peer
// session. Implemented by the rtc adapter over a pion PeerConnection;
// session logic is written against this interface only.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources. Safe to call more than once.
	Close() error
	// ApplyOfferAndCreateAnswer blocks until the full local description,
	// ICE candidates included, has been produced.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// AddTrack attaches a local outbound track to the underlying PeerConnection.
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	// WriteRTCP sends control packets (e.g. keyframe requests) to the remote peer.
	WriteRTCP(pkts []rtcp.Packet) error
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnDataChannel sets a callback invoked when the remote opens a datachannel.
	OnDataChannel(func(dc *webrtc.DataChannel))
	// OnStateChange sets a callback for peer connection state transitions.
	OnStateChange(func(state webrtc.PeerConnectionState))
}
