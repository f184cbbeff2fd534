package relay

import (
	"errors"
	"sync"

	"github.com/pion/rtp"
)

var ErrClosed = errors.New("packet channel closed")

// PacketChan is a buffered relay subscriber that hands packets to a
// consumer goroutine (the transform pipeline). Writes never block the
// relay loop: when the buffer is full the packet is dropped.
type PacketChan struct {
	ch chan *rtp.Packet

	mu     sync.Mutex
	closed bool
}

func NewPacketChan(size int) *PacketChan {
	return &PacketChan{ch: make(chan *rtp.Packet, size)}
}

func (p *PacketChan) WriteRTP(pkt *rtp.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.ch <- pkt:
	default:
		// consumer is behind, drop rather than stall the relay
	}
	return nil
}

// C delivers packets in arrival order. Closed when Close is called.
func (p *PacketChan) C() <-chan *rtp.Packet {
	return p.ch
}

func (p *PacketChan) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}
