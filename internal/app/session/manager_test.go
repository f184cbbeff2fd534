package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/peerglass/peerglass/internal/app/record"
	"github.com/peerglass/peerglass/internal/domain"
	"github.com/peerglass/peerglass/internal/vision"
)

type fakeMedia struct {
	mu       sync.Mutex
	started  bool
	closes   int
	applyErr error
	startErr error

	onState func(webrtc.PeerConnectionState)
}

func (f *fakeMedia) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeMedia) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeMedia) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}, nil
}

func (f *fakeMedia) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeMedia) WriteRTCP(pkts []rtcp.Packet) error { return nil }

func (f *fakeMedia) OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
}

func (f *fakeMedia) OnDataChannel(func(dc *webrtc.DataChannel)) {}

func (f *fakeMedia) OnStateChange(fn func(state webrtc.PeerConnectionState)) {
	f.onState = fn
}

func (f *fakeMedia) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeSink struct {
	record.Blackhole
	mu     sync.Mutex
	starts int
	stops  int
}

func (s *fakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func newTestManager(t *testing.T, mc *fakeMedia, sink record.Sink, onClosed func(domain.SessionID)) *Manager {
	t.Helper()
	return NewManager(Options{
		ID:       domain.NewSessionID(),
		Media:    mc,
		Mode:     vision.ModeNone,
		Sink:     sink,
		OnClosed: onClosed,
	})
}

func offer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
}

func TestHandleOfferReturnsAnswer(t *testing.T) {
	t.Parallel()

	mc := &fakeMedia{}
	sink := &fakeSink{}
	m := newTestManager(t, mc, sink, nil)

	answer, err := m.HandleOffer(context.Background(), offer())
	if err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		t.Errorf("unexpected answer: %+v", answer)
	}
	if !mc.started {
		t.Error("engine not started")
	}
	if sink.starts != 1 {
		t.Errorf("sink started %d times, want 1", sink.starts)
	}
	if m.State() != domain.StateNew {
		t.Errorf("state = %s before any engine event, want new", m.State())
	}
}

func TestHandleOfferErrors(t *testing.T) {
	t.Parallel()

	mc := &fakeMedia{applyErr: errors.New("bad sdp")}
	m := newTestManager(t, mc, &fakeSink{}, nil)
	if _, err := m.HandleOffer(context.Background(), offer()); err == nil {
		t.Fatal("expected error from failing engine")
	}

	mc = &fakeMedia{startErr: errors.New("engine down")}
	m = newTestManager(t, mc, &fakeSink{}, nil)
	if _, err := m.HandleOffer(context.Background(), offer()); err == nil {
		t.Fatal("expected error from failing start")
	}
}

func TestStateMirrorsEngineForwardOnly(t *testing.T) {
	t.Parallel()

	mc := &fakeMedia{}
	m := newTestManager(t, mc, &fakeSink{}, nil)
	if _, err := m.HandleOffer(context.Background(), offer()); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	mc.onState(webrtc.PeerConnectionStateConnecting)
	if m.State() != domain.StateConnecting {
		t.Fatalf("state = %s, want connecting", m.State())
	}
	mc.onState(webrtc.PeerConnectionStateConnected)
	if m.State() != domain.StateConnected {
		t.Fatalf("state = %s, want connected", m.State())
	}
	mc.onState(webrtc.PeerConnectionStateDisconnected)
	if m.State() != domain.StateDisconnected {
		t.Fatalf("state = %s, want disconnected", m.State())
	}

	// a late engine event cannot move the session backwards
	mc.onState(webrtc.PeerConnectionStateConnected)
	if m.State() != domain.StateDisconnected {
		t.Errorf("state went backwards to %s", m.State())
	}
}

func TestFailureTearsSessionDown(t *testing.T) {
	t.Parallel()

	var closedWith domain.SessionID
	closedCalls := 0
	mc := &fakeMedia{}
	sink := &fakeSink{}
	m := newTestManager(t, mc, sink, func(id domain.SessionID) {
		closedWith = id
		closedCalls++
	})
	if _, err := m.HandleOffer(context.Background(), offer()); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	mc.onState(webrtc.PeerConnectionStateConnecting)
	mc.onState(webrtc.PeerConnectionStateFailed)

	if !m.State().Terminal() {
		t.Errorf("state = %s after failure, want terminal", m.State())
	}
	if mc.closeCount() != 1 {
		t.Errorf("engine closed %d times, want 1", mc.closeCount())
	}
	if closedCalls != 1 || closedWith != m.ID() {
		t.Errorf("onClosed calls=%d id=%s", closedCalls, closedWith)
	}
	if sink.stops != 1 {
		t.Errorf("sink stopped %d times, want 1", sink.stops)
	}
}

func TestFailureAfterDisconnectTearsSessionDown(t *testing.T) {
	t.Parallel()

	closedCalls := 0
	mc := &fakeMedia{}
	sink := &fakeSink{}
	m := newTestManager(t, mc, sink, func(domain.SessionID) { closedCalls++ })
	if _, err := m.HandleOffer(context.Background(), offer()); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	// an unclean peer drop surfaces as disconnected first, then failed
	mc.onState(webrtc.PeerConnectionStateConnecting)
	mc.onState(webrtc.PeerConnectionStateConnected)
	mc.onState(webrtc.PeerConnectionStateDisconnected)
	mc.onState(webrtc.PeerConnectionStateFailed)

	if !m.State().Terminal() {
		t.Errorf("state = %s after engine failed, want terminal", m.State())
	}
	if mc.closeCount() != 1 {
		t.Errorf("engine closed %d times, want 1", mc.closeCount())
	}
	if closedCalls != 1 {
		t.Errorf("onClosed fired %d times, want 1", closedCalls)
	}
	if sink.stops != 1 {
		t.Errorf("sink stopped %d times, want 1", sink.stops)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	closedCalls := 0
	mc := &fakeMedia{}
	sink := &fakeSink{}
	m := newTestManager(t, mc, sink, func(domain.SessionID) { closedCalls++ })
	if _, err := m.HandleOffer(context.Background(), offer()); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	m.Close()
	m.Close()

	if m.State() != domain.StateClosed {
		t.Errorf("state = %s, want closed", m.State())
	}
	if mc.closeCount() != 1 {
		t.Errorf("engine closed %d times, want 1", mc.closeCount())
	}
	if closedCalls != 1 {
		t.Errorf("onClosed fired %d times, want 1", closedCalls)
	}
	if sink.stops != 1 {
		t.Errorf("sink stopped %d times, want 1", sink.stops)
	}

	// engine events after close are ignored
	mc.onState(webrtc.PeerConnectionStateConnected)
	if m.State() != domain.StateClosed {
		t.Errorf("state moved after close: %s", m.State())
	}
}
