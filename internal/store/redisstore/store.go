// Package redisstore implements the room store on Redis. One room spans
// five keys sharing the room id: a metadata hash, the roster list, the
// current-round hash, the vote hash and the history list. Every mutation
// pipelines an EXPIRE over all of them, so any activity slides the whole
// room's life forward and abandoned rooms fall out on their own; there is
// no delete path. Votes live in their own hash so HSET gives one-field
// upserts without touching the rest of the round.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/core"
	"github.com/hexark/planning-poker/internal/domain"
)

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "pp:"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) metaKey(id domain.RoomID) string { return s.prefix + "room:" + string(id) + ":meta" }

func (s *Store) rosterKey(id domain.RoomID) string {
	return s.prefix + "room:" + string(id) + ":participants"
}

func (s *Store) roundKey(id domain.RoomID) string { return s.prefix + "room:" + string(id) + ":round" }

func (s *Store) votesKey(id domain.RoomID) string { return s.prefix + "room:" + string(id) + ":votes" }

func (s *Store) historyKey(id domain.RoomID) string {
	return s.prefix + "room:" + string(id) + ":history"
}

// refreshTTL queues EXPIRE for every key of the room. EXPIRE on a key
// that does not exist yet is a no-op, which is exactly what we want.
func (s *Store) refreshTTL(ctx context.Context, pipe redis.Pipeliner, id domain.RoomID) {
	for _, key := range []string{
		s.metaKey(id), s.rosterKey(id), s.roundKey(id), s.votesKey(id), s.historyKey(id),
	} {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *Store) CreateRoom(ctx context.Context, id domain.RoomID, name string) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.metaKey(id),
		"name", name,
		"created_at", time.Now().UTC().Format(time.RFC3339Nano),
		"created_by", "guest",
	)
	s.refreshTTL(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: create room %s: %w", id, err)
	}
	log.Info().Str("module", "store").Str("room_id", string(id)).Msg("room created")
	return nil
}

func (s *Store) RoomExists(ctx context.Context, id domain.RoomID) (bool, error) {
	n, err := s.client.Exists(ctx, s.metaKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get room %s: %w", id, err)
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("redisstore: room %s: %w", id, core.ErrNotFound)
	}

	room := &domain.Room{ID: id, Name: meta["name"]}
	if ts, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		room.CreatedAt = ts
	}

	entries, err := s.client.LRange(ctx, s.rosterKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: roster %s: %w", id, err)
	}
	for _, raw := range entries {
		var p domain.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn().Err(err).Str("module", "store").Str("room_id", string(id)).Msg("skipping bad roster entry")
			continue
		}
		room.Participants = append(room.Participants, p)
	}

	round, err := s.client.HGetAll(ctx, s.roundKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: round %s: %w", id, err)
	}
	if len(round) > 0 {
		votes, err := s.client.HGetAll(ctx, s.votesKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: votes %s: %w", id, err)
		}
		room.Current = parseRound(round, votes)
	}

	archived, err := s.client.LRange(ctx, s.historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: history %s: %w", id, err)
	}
	for _, raw := range archived {
		var ar domain.ArchivedRound
		if err := json.Unmarshal([]byte(raw), &ar); err != nil {
			log.Warn().Err(err).Str("module", "store").Str("room_id", string(id)).Msg("skipping bad history entry")
			continue
		}
		room.History = append(room.History, ar)
	}

	return room, nil
}

func (s *Store) AddParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redisstore: marshal participant: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.rosterKey(id), raw)
	s.refreshTTL(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: add participant to %s: %w", id, err)
	}
	return nil
}

// UpsertVote writes a single field of the vote hash, so concurrent votes
// from different participants never clobber each other. The current round
// is created lazily via HSETNX; two racing first votes both settle on
// whichever round fields landed first.
func (s *Store) UpsertVote(ctx context.Context, id domain.RoomID, pid domain.ParticipantID, v domain.Vote) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redisstore: marshal vote: %w", err)
	}

	fresh := domain.NewRound("")
	pipe := s.client.Pipeline()
	pipe.HSetNX(ctx, s.roundKey(id), "id", string(fresh.ID))
	pipe.HSetNX(ctx, s.roundKey(id), "title", fresh.Title)
	pipe.HSetNX(ctx, s.roundKey(id), "revealed", "0")
	pipe.HSetNX(ctx, s.roundKey(id), "created_at", fresh.CreatedAt.Format(time.RFC3339Nano))
	pipe.HSet(ctx, s.votesKey(id), string(pid), raw)
	s.refreshTTL(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: upsert vote in %s: %w", id, err)
	}
	return nil
}

func (s *Store) SetRevealed(ctx context.Context, id domain.RoomID, revealed bool) error {
	n, err := s.client.Exists(ctx, s.roundKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: reveal %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("redisstore: no active round in %s: %w", id, core.ErrNotFound)
	}

	flag := "0"
	if revealed {
		flag = "1"
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.roundKey(id), "revealed", flag)
	s.refreshTTL(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: reveal %s: %w", id, err)
	}
	return nil
}

// ArchiveRound snapshots the current round plus its votes into the
// history list and replaces it with a fresh open round in a single
// MULTI/EXEC, so no reader ever sees the room between rounds.
func (s *Store) ArchiveRound(ctx context.Context, id domain.RoomID, outcome string) (domain.RoundID, error) {
	round, err := s.client.HGetAll(ctx, s.roundKey(id)).Result()
	if err != nil {
		return "", fmt.Errorf("redisstore: archive %s: %w", id, err)
	}
	if len(round) == 0 {
		return "", fmt.Errorf("redisstore: no active round in %s: %w", id, core.ErrNotFound)
	}
	votes, err := s.client.HGetAll(ctx, s.votesKey(id)).Result()
	if err != nil {
		return "", fmt.Errorf("redisstore: archive votes %s: %w", id, err)
	}

	current := parseRound(round, votes)
	archived := domain.ArchivedRound{
		RoundID:     current.ID,
		Title:       current.Title,
		Votes:       current.Votes,
		Revealed:    current.Revealed,
		Outcome:     outcome,
		CompletedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(archived)
	if err != nil {
		return "", fmt.Errorf("redisstore: marshal archived round: %w", err)
	}

	next := domain.NewRound("")
	tx := s.client.TxPipeline()
	tx.RPush(ctx, s.historyKey(id), raw)
	tx.Del(ctx, s.votesKey(id))
	tx.HSet(ctx, s.roundKey(id),
		"id", string(next.ID),
		"title", next.Title,
		"revealed", "0",
		"created_at", next.CreatedAt.Format(time.RFC3339Nano),
	)
	s.refreshTTL(ctx, tx, id)
	if _, err := tx.Exec(ctx); err != nil {
		return "", fmt.Errorf("redisstore: archive %s: %w", id, err)
	}

	log.Info().Str("module", "store").Str("room_id", string(id)).
		Str("archived_round", string(current.ID)).Str("next_round", string(next.ID)).
		Msg("round archived")
	return next.ID, nil
}

func parseRound(fields map[string]string, votes map[string]string) *domain.Round {
	r := &domain.Round{
		ID:       domain.RoundID(fields["id"]),
		Title:    fields["title"],
		Revealed: fields["revealed"] == "1",
		Votes:    make(map[domain.ParticipantID]domain.Vote, len(votes)),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		r.CreatedAt = ts
	}
	for pid, raw := range votes {
		var v domain.Vote
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			log.Warn().Err(err).Str("module", "store").Str("participant_id", pid).Msg("skipping bad vote entry")
			continue
		}
		r.Votes[domain.ParticipantID(pid)] = v
	}
	return r
}
