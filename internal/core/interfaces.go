package core

import (
	"context"

	"github.com/hexark/planning-poker/internal/domain"
)

type ConnectionID string

// PushConnection abstracts the live channel the registry fans out to.
// Owned by the adapter; the adapter must Close() it.
type PushConnection interface {
	// TrySend never blocks. It returns ErrConnClosed when the remote end
	// is gone and ErrBackpressure when the send buffer is full.
	TrySend(data []byte) error
	Close()
}

// RoomStore is the persistence contract consumed by the session engine.
// Every mutating call slides the room's expiry forward by the store's
// TTL horizon; expiry is the only deletion path. Implementations must
// support concurrent UpsertVote calls for different participants of the
// same round without a read-modify-write of the whole vote map.
type RoomStore interface {
	CreateRoom(ctx context.Context, id domain.RoomID, name string) error
	RoomExists(ctx context.Context, id domain.RoomID) (bool, error)

	// GetRoom returns ErrNotFound for an absent or expired room. A room
	// without a current round is returned with Current == nil.
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)

	AddParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error

	// UpsertVote creates the current round implicitly when none exists.
	UpsertVote(ctx context.Context, id domain.RoomID, pid domain.ParticipantID, v domain.Vote) error

	// SetRevealed returns ErrNotFound when the room has no active round.
	// Revealing an already revealed round is a no-op.
	SetRevealed(ctx context.Context, id domain.RoomID, revealed bool) error

	// ArchiveRound closes the current round into the room's history,
	// recording outcome and a completion timestamp, and starts a fresh
	// empty round whose id it returns. ErrNotFound when no round exists.
	ArchiveRound(ctx context.Context, id domain.RoomID, outcome string) (domain.RoundID, error)
}
