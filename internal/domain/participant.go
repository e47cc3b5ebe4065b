package domain

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantID string

// Participant is one person in a room's roster. Names are not unique;
// duplicate names are legal and any "same person rejoined" reconciliation
// happens above this layer by inspecting the roster.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	JoinedAt time.Time     `json:"joinedAt"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(name string) Participant {
	return Participant{
		ID:       ParticipantID("participant-" + uuid.NewString()),
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}
}
