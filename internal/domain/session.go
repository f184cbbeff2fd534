package domain

import "github.com/google/uuid"

type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ConnectionState mirrors the negotiation engine's peer state.
// Transitions only move forward along
// new → connecting → connected → disconnected, with failed reachable
// from any of the live states; any state may jump to closed. Failed
// and closed are terminal.
type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// CanTransition reports whether moving from s to next respects the
// forward-only state machine.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateClosed {
		return true
	}
	if next == StateFailed {
		// the engine may report failed after a disconnect, typically
		// when the peer drops uncleanly
		return s == StateConnecting || s == StateConnected || s == StateDisconnected
	}
	return next > s && next <= StateDisconnected
}
