// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)

type ParticipantID string

// Participant is one connected signaling client.
type Participant struct {
	ID   ParticipantID `json:"id"`
	Name string        `json:"name"`
}

// ValidateName checks a display name before it enters the directory.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}
