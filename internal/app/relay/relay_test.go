package relay

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

type countingWriter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (w *countingWriter) WriteRTP(*rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.count++
	return nil
}

func (w *countingWriter) got() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestForwardFansOut(t *testing.T) {
	t.Parallel()

	r := New(nil)
	a := &countingWriter{}
	b := &countingWriter{}
	r.Subscribe("a", a)
	r.Subscribe("b", b)

	pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}
	r.forward(pkt, nopLogger())
	r.forward(pkt, nopLogger())

	if a.got() != 2 || b.got() != 2 {
		t.Errorf("fan-out counts a=%d b=%d, want 2 each", a.got(), b.got())
	}
}

func TestForwardDropsFailingSubscriber(t *testing.T) {
	t.Parallel()

	r := New(nil)
	bad := &countingWriter{err: errors.New("sink gone")}
	good := &countingWriter{}
	r.Subscribe("bad", bad)
	r.Subscribe("good", good)

	pkt := &rtp.Packet{}
	r.forward(pkt, nopLogger())
	r.forward(pkt, nopLogger())
	r.forward(pkt, nopLogger())

	if good.got() != 3 {
		t.Errorf("good subscriber missed packets: %d", good.got())
	}
	r.mu.RLock()
	_, stillThere := r.subs["bad"]
	r.mu.RUnlock()
	if stillThere {
		t.Error("failing subscriber not removed")
	}
}

func TestResubscribeReplaces(t *testing.T) {
	t.Parallel()

	r := New(nil)
	old := &countingWriter{}
	fresh := &countingWriter{}
	r.Subscribe("peer", old)
	r.Subscribe("peer", fresh)

	r.forward(&rtp.Packet{}, nopLogger())
	if old.got() != 0 || fresh.got() != 1 {
		t.Errorf("old=%d fresh=%d, want 0/1", old.got(), fresh.got())
	}
}

func TestFireEndedOnce(t *testing.T) {
	t.Parallel()

	r := New(nil)
	calls := 0
	r.OnEnded(func() { calls++ })
	r.fireEnded()
	r.fireEnded()
	if calls != 1 {
		t.Errorf("onEnded fired %d times, want 1", calls)
	}
}

func TestPacketChanDeliversInOrder(t *testing.T) {
	t.Parallel()

	p := NewPacketChan(4)
	for i := 0; i < 3; i++ {
		if err := p.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}}); err != nil {
			t.Fatalf("WriteRTP: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		pkt := <-p.C()
		if pkt.SequenceNumber != uint16(i) {
			t.Errorf("packet %d out of order: seq %d", i, pkt.SequenceNumber)
		}
	}
}

func TestPacketChanDropsWhenFull(t *testing.T) {
	t.Parallel()

	p := NewPacketChan(1)
	if err := p.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}); err != nil {
		t.Fatalf("WriteRTP: %v", err)
	}
	// buffer full, this one is dropped but the relay must not see an error
	if err := p.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2}}); err != nil {
		t.Fatalf("WriteRTP on full buffer: %v", err)
	}
	pkt := <-p.C()
	if pkt.SequenceNumber != 1 {
		t.Errorf("kept packet seq %d, want 1", pkt.SequenceNumber)
	}
	select {
	case extra := <-p.C():
		t.Errorf("unexpected packet seq %d", extra.SequenceNumber)
	default:
	}
}

func TestPacketChanClose(t *testing.T) {
	t.Parallel()

	p := NewPacketChan(1)
	p.Close()
	p.Close()
	if err := p.WriteRTP(&rtp.Packet{}); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteRTP after close: %v, want ErrClosed", err)
	}
	if _, ok := <-p.C(); ok {
		t.Error("channel still open after Close")
	}
}
