package domain

import "time"

type RoomID string

// Room is the full persisted state of one estimation session: metadata,
// the roster in join order, the round currently being voted on (nil until
// the first vote creates it) and the archive of rounds already played.
type Room struct {
	ID           RoomID
	Name         string
	CreatedAt    time.Time
	Participants []Participant
	Current      *Round
	History      []ArchivedRound
}
