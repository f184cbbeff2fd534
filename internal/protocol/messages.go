// Package protocol defines the JSON messages exchanged over the
// signaling WebSocket. The message set is closed: unknown types and
// structurally invalid payloads are rejected at parse time so the hub
// never routes on a half-parsed message.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/peerglass/peerglass/internal/domain"
)

type MessageType string

const (
	// client → server
	TypeJoin        MessageType = "join"
	TypeSignal      MessageType = "signal"
	TypePeerRequest MessageType = "peer_request"
	TypePeerAccept  MessageType = "peer_accept"

	// server → client (TypeSignal, TypePeerRequest and TypePeerAccept
	// flow both ways)
	TypeSelfID   MessageType = "self_id"
	TypeUserList MessageType = "user_list"
)

// ClientMessage is one inbound signaling message. Field presence is
// validated per type; Data stays opaque to the hub.
type ClientMessage struct {
	Type MessageType          `json:"type"`
	Name string               `json:"name,omitempty"`
	To   domain.ParticipantID `json:"to,omitempty"`
	Data json.RawMessage      `json:"data,omitempty"`
}

func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("parse signaling message: %w", err)
	}
	if err := msg.validate(); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

func (m ClientMessage) validate() error {
	switch m.Type {
	case TypeJoin:
		if m.Name == "" {
			return fmt.Errorf("join message missing name")
		}
	case TypeSignal:
		if m.To == "" {
			return fmt.Errorf("signal message missing to")
		}
		if len(m.Data) == 0 {
			return fmt.Errorf("signal message missing data")
		}
	case TypePeerRequest, TypePeerAccept:
		if m.To == "" {
			return fmt.Errorf("%s message missing to", m.Type)
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// UserInfo is one presence entry.
type UserInfo struct {
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

type SelfID struct {
	Type MessageType          `json:"type"`
	ID   domain.ParticipantID `json:"id"`
}

type Signal struct {
	Type MessageType          `json:"type"`
	From domain.ParticipantID `json:"from"`
	Data json.RawMessage      `json:"data"`
}

type PeerRequest struct {
	Type     MessageType          `json:"type"`
	From     domain.ParticipantID `json:"from"`
	FromName string               `json:"fromName"`
}

type PeerAccept struct {
	Type MessageType          `json:"type"`
	From domain.ParticipantID `json:"from"`
}

type UserList struct {
	Type  MessageType `json:"type"`
	Users []UserInfo  `json:"users"`
}

func NewSelfID(id domain.ParticipantID) SelfID {
	return SelfID{Type: TypeSelfID, ID: id}
}

func NewSignal(from domain.ParticipantID, data json.RawMessage) Signal {
	return Signal{Type: TypeSignal, From: from, Data: data}
}

func NewPeerRequest(from domain.ParticipantID, fromName string) PeerRequest {
	return PeerRequest{Type: TypePeerRequest, From: from, FromName: fromName}
}

func NewPeerAccept(from domain.ParticipantID) PeerAccept {
	return PeerAccept{Type: TypePeerAccept, From: from}
}

func NewUserList(users []UserInfo) UserList {
	return UserList{Type: TypeUserList, Users: users}
}
