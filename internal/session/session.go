// Package session holds the room lifecycle state machine: it validates
// requests, mutates the room store and fans change events out to
// subscribers. A round moves Open -> Revealed -> Archived; archiving
// always opens the next round, and there is no way back from Revealed.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/core"
	"github.com/hexark/planning-poker/internal/domain"
	"github.com/hexark/planning-poker/internal/roomid"
)

// MaxNameLen caps room and participant names; longer input is trimmed
// rather than rejected.
const MaxNameLen = 64

// Broadcaster fans one event out to a room's subscribers. Delivery is
// best-effort and must never block the caller.
type Broadcaster interface {
	Broadcast(roomID domain.RoomID, ev domain.Event)
}

// Limiter guards room creation. Implementations fail open.
type Limiter interface {
	Allow(ctx context.Context, addr string) bool
	Window() time.Duration
}

type Engine struct {
	store   core.RoomStore
	casts   Broadcaster
	alloc   *roomid.Allocator
	limiter Limiter
}

func New(store core.RoomStore, casts Broadcaster, alloc *roomid.Allocator, limiter Limiter) *Engine {
	return &Engine{store: store, casts: casts, alloc: alloc, limiter: limiter}
}

// CreateRoom allocates a collision-free id for the trimmed name and
// persists the room. No round exists until the first vote.
func (e *Engine) CreateRoom(ctx context.Context, name, clientAddr string) (domain.RoomID, error) {
	name = cleanName(name)
	if name == "" {
		return "", fmt.Errorf("room name required: %w", core.ErrInvalidInput)
	}
	if e.limiter != nil && !e.limiter.Allow(ctx, clientAddr) {
		return "", fmt.Errorf("room creation quota exceeded: %w", core.ErrRateLimited)
	}

	id, err := e.alloc.Allocate(ctx, name)
	if err != nil {
		return "", fmt.Errorf("allocate room id: %w", err)
	}
	if err := e.store.CreateRoom(ctx, id, name); err != nil {
		return "", err
	}
	log.Info().Str("module", "session").Str("room_id", string(id)).Msg("room created")
	return id, nil
}

// JoinRoom appends a new participant to the roster and announces the
// join. Joining is not idempotent: the same name twice yields two
// participants, and any rejoin reconciliation happens caller-side.
func (e *Engine) JoinRoom(ctx context.Context, roomID domain.RoomID, name string) (domain.Participant, error) {
	name = cleanName(name)
	if name == "" {
		return domain.Participant{}, fmt.Errorf("participant name required: %w", core.ErrInvalidInput)
	}
	if err := e.requireRoom(ctx, roomID); err != nil {
		return domain.Participant{}, err
	}

	p := domain.NewParticipant(name)
	if err := e.store.AddParticipant(ctx, roomID, p); err != nil {
		return domain.Participant{}, err
	}
	e.notify(roomID, domain.NewJoinEvent(p.ID, p.Name))
	log.Info().Str("module", "session").Str("room_id", string(roomID)).
		Str("participant_id", string(p.ID)).Msg("participant joined")
	return p, nil
}

// SubmitVote upserts the participant's vote for the current round,
// creating the round on first vote. Votes are accepted in any round
// state; one cast after reveal lands in the already-frozen round and is
// effectively discarded at archive time. The broadcast carries the
// participant id only, never the value.
func (e *Engine) SubmitVote(ctx context.Context, roomID domain.RoomID, pid domain.ParticipantID, estimate string) error {
	if pid == "" || estimate == "" {
		return fmt.Errorf("participantId and estimate required: %w", core.ErrInvalidInput)
	}
	if err := e.requireRoom(ctx, roomID); err != nil {
		return err
	}

	vote := domain.Vote{Estimate: estimate, VotedAt: time.Now().UTC()}
	if err := e.store.UpsertVote(ctx, roomID, pid, vote); err != nil {
		return err
	}
	e.notify(roomID, domain.NewVoteEvent(pid))
	return nil
}

// RevealVotes flips the current round to revealed. Revealing an already
// revealed round is a no-op success.
func (e *Engine) RevealVotes(ctx context.Context, roomID domain.RoomID) error {
	if err := e.store.SetRevealed(ctx, roomID, true); err != nil {
		return err
	}
	e.notify(roomID, domain.NewRevealEvent())
	log.Info().Str("module", "session").Str("room_id", string(roomID)).Msg("votes revealed")
	return nil
}

// AdvanceRound archives the current round (with the outcome, when one
// was agreed) and opens a fresh one.
func (e *Engine) AdvanceRound(ctx context.Context, roomID domain.RoomID, outcome string) error {
	if _, err := e.store.ArchiveRound(ctx, roomID, outcome); err != nil {
		return err
	}
	e.notify(roomID, domain.NewNextRoundEvent(outcome))
	return nil
}

// Room returns the room projected for one viewer: every participant is
// annotated with whether they voted, but the vote value itself appears
// only once the round is revealed, or on the viewer's own entry.
func (e *Engine) Room(ctx context.Context, roomID domain.RoomID, viewer domain.ParticipantID) (*RoomView, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return project(room, viewer), nil
}

func (e *Engine) requireRoom(ctx context.Context, roomID domain.RoomID) error {
	ok, err := e.store.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
	}
	return nil
}

// notify hands the event to the broadcaster. Broadcast returns without
// waiting for deliveries, so delivery problems never surface to the
// operation that triggered the event.
func (e *Engine) notify(roomID domain.RoomID, ev domain.Event) {
	if e.casts == nil {
		return
	}
	e.casts.Broadcast(roomID, ev)
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	return name
}
