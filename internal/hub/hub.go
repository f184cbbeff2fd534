// Package hub owns the participant directory and the signaling relay.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/peerglass/peerglass/internal/core"
	"github.com/peerglass/peerglass/internal/domain"
	"github.com/peerglass/peerglass/internal/protocol"
)

type entry struct {
	participant *domain.Participant
	conn        core.SignalConnection
}

// Hub routes signaling messages between registered participants and
// keeps the presence snapshot consistent: mutations and full-directory
// broadcasts happen under one lock, so every broadcast reflects a
// directory state that actually existed.
type Hub struct {
	mu      sync.RWMutex
	entries map[domain.ParticipantID]*entry
}

func New() *Hub {
	return &Hub{
		entries: make(map[domain.ParticipantID]*entry),
	}
}

// Register adds (or re-registers) a participant and broadcasts the
// updated presence list. A second Register with the same id overwrites
// the display name and connection; the id is kept stable so peers keep
// a valid routing target.
func (h *Hub) Register(id domain.ParticipantID, name string, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.entries[id]; ok {
		log.Info().Str("module", "hub").Str("id", string(id)).Str("name", name).Msg("re-registering participant")
		old.participant.Name = name
		old.conn = conn
	} else {
		h.entries[id] = &entry{
			participant: &domain.Participant{ID: id, Name: name},
			conn:        conn,
		}
		log.Info().Str("module", "hub").Str("id", string(id)).Str("name", name).Msg("participant joined")
	}

	h.send(id, protocol.NewSelfID(id))
	h.broadcastPresenceLocked()
}

// Leave removes a participant and broadcasts the updated presence list.
// Leaving a non-member is a no-op.
func (h *Hub) Leave(id domain.ParticipantID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[id]; !ok {
		return
	}
	delete(h.entries, id)
	log.Info().Str("module", "hub").Str("id", string(id)).Msg("participant left")
	h.broadcastPresenceLocked()
}

// RelaySignal forwards an opaque negotiation payload to the target.
// Unknown targets are dropped silently; relay is best-effort.
func (h *Hub) RelaySignal(from, to domain.ParticipantID, data json.RawMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.entries[to]; !ok {
		log.Debug().Str("module", "hub").Str("to", string(to)).Msg("signal target not registered, dropping")
		return
	}
	h.send(to, protocol.NewSignal(from, data))
}

// RelayPeerRequest forwards a connection request, tagged with the
// requester's display name. Best-effort, like RelaySignal.
func (h *Hub) RelayPeerRequest(from, to domain.ParticipantID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src, ok := h.entries[from]
	if !ok {
		return
	}
	if _, ok := h.entries[to]; !ok {
		log.Debug().Str("module", "hub").Str("to", string(to)).Msg("peer_request target not registered, dropping")
		return
	}
	h.send(to, protocol.NewPeerRequest(from, src.participant.Name))
}

// RelayPeerAccept forwards a connection acceptance. Best-effort.
func (h *Hub) RelayPeerAccept(from, to domain.ParticipantID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.entries[to]; !ok {
		log.Debug().Str("module", "hub").Str("to", string(to)).Msg("peer_accept target not registered, dropping")
		return
	}
	h.send(to, protocol.NewPeerAccept(from))
}

// Snapshot returns the current presence list.
func (h *Hub) Snapshot() []protocol.UserInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

// Len reports the number of registered participants.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *Hub) snapshotLocked() []protocol.UserInfo {
	users := make([]protocol.UserInfo, 0, len(h.entries))
	for id, e := range h.entries {
		users = append(users, protocol.UserInfo{ID: id, Name: e.participant.Name})
	}
	return users
}

// broadcastPresenceLocked sends the full directory to every registered
// connection. A failed send to one recipient never aborts delivery to
// the rest. Caller holds at least the read lock.
func (h *Hub) broadcastPresenceLocked() {
	msg := protocol.NewUserList(h.snapshotLocked())
	for id := range h.entries {
		h.send(id, msg)
	}
}

// send marshals and enqueues one message; delivery failures are logged
// and swallowed. Caller holds at least the read lock.
func (h *Hub) send(to domain.ParticipantID, v any) {
	e, ok := h.entries[to]
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("marshal outbound message")
		return
	}
	if err := e.conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("id", string(to)).Msg("send failed, skipping recipient")
	}
}
