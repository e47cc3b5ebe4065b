package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoundID string

// DefaultRoundTitle is used when a round is created implicitly by the
// first vote rather than by an explicit caller-supplied title.
const DefaultRoundTitle = "Current Estimate"

// Vote is one participant's cast value for a round. The value is an
// opaque token; the set of legal estimates is a presentation concern.
type Vote struct {
	Estimate string    `json:"estimate"`
	VotedAt  time.Time `json:"votedAt"`
}

// Round is the item currently being estimated in a room. Votes are keyed
// by participant id, one vote per participant, last write wins. While
// Revealed is false the vote values stay hidden from everyone but their
// caster.
type Round struct {
	ID        RoundID                `json:"id"`
	Title     string                 `json:"title"`
	Votes     map[ParticipantID]Vote `json:"votes"`
	Revealed  bool                   `json:"revealed"`
	CreatedAt time.Time              `json:"createdAt"`
}

func NewRound(title string) *Round {
	if title == "" {
		title = DefaultRoundTitle
	}
	return &Round{
		ID:        RoundID("round-" + uuid.NewString()),
		Title:     title,
		Votes:     make(map[ParticipantID]Vote),
		CreatedAt: time.Now().UTC(),
	}
}

// ArchivedRound is a closed-out round in the room's history. Outcome is
// empty when the round was advanced without recording a final value.
type ArchivedRound struct {
	RoundID     RoundID                `json:"roundId"`
	Title       string                 `json:"title"`
	Votes       map[ParticipantID]Vote `json:"votes"`
	Revealed    bool                   `json:"revealed"`
	Outcome     string                 `json:"outcome,omitempty"`
	CompletedAt time.Time              `json:"completedAt"`
}
