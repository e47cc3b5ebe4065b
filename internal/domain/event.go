package domain

type EventKind string

const (
	EventJoin      EventKind = "join"
	EventVote      EventKind = "vote"
	EventReveal    EventKind = "reveal"
	EventNextRound EventKind = "nextEstimate"
)

// Event is the closed set of room notifications pushed to subscribers.
// Payloads are invalidation hints, not state syncs; receivers re-fetch
// the room after any of them. VoteEvent in particular carries only the
// participant id so hidden values never leave the store before reveal.
type Event interface {
	Kind() EventKind
}

type JoinEvent struct {
	Type          EventKind     `json:"type"`
	ParticipantID ParticipantID `json:"participantId"`
	Name          string        `json:"name"`
}

func NewJoinEvent(id ParticipantID, name string) JoinEvent {
	return JoinEvent{Type: EventJoin, ParticipantID: id, Name: name}
}

func (JoinEvent) Kind() EventKind { return EventJoin }

type VoteEvent struct {
	Type          EventKind     `json:"type"`
	ParticipantID ParticipantID `json:"participantId"`
}

func NewVoteEvent(id ParticipantID) VoteEvent {
	return VoteEvent{Type: EventVote, ParticipantID: id}
}

func (VoteEvent) Kind() EventKind { return EventVote }

type RevealEvent struct {
	Type     EventKind `json:"type"`
	Revealed bool      `json:"revealed"`
}

func NewRevealEvent() RevealEvent {
	return RevealEvent{Type: EventReveal, Revealed: true}
}

func (RevealEvent) Kind() EventKind { return EventReveal }

type NextRoundEvent struct {
	Type    EventKind `json:"type"`
	Outcome string    `json:"outcome,omitempty"`
}

func NewNextRoundEvent(outcome string) NextRoundEvent {
	return NextRoundEvent{Type: EventNextRound, Outcome: outcome}
}

func (NextRoundEvent) Kind() EventKind { return EventNextRound }
