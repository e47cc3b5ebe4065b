// Package registry tracks live push connections and which room each one
// is subscribed to, and fans room events out to them. Fan-out is
// best-effort: one concurrent attempt per subscriber, no retries, no
// ordering promise. A connection that reports itself closed is pruned on
// the spot; everything else ages out via its own expiry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/core"
	"github.com/hexark/planning-poker/internal/domain"
)

const sweepInterval = time.Minute

type entry struct {
	conn        core.PushConnection
	roomID      domain.RoomID
	connectedAt time.Time
	expiresAt   time.Time
}

type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnectionID]*entry
	rooms map[domain.RoomID]map[core.ConnectionID]struct{}
	ttl   time.Duration
}

func New(ttl time.Duration) *Registry {
	return &Registry{
		conns: make(map[core.ConnectionID]*entry),
		rooms: make(map[domain.RoomID]map[core.ConnectionID]struct{}),
		ttl:   ttl,
	}
}

func (r *Registry) Register(id core.ConnectionID, conn core.PushConnection) {
	now := time.Now()
	r.mu.Lock()
	r.conns[id] = &entry{conn: conn, connectedAt: now, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()
	log.Info().Str("module", "registry").Str("conn_id", string(id)).Msg("connection registered")
}

// Subscribe binds a registered connection to a room, replacing any
// previous subscription, and refreshes the connection's expiry.
func (r *Registry) Subscribe(id core.ConnectionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	if e.roomID != "" {
		delete(r.rooms[e.roomID], id)
		if len(r.rooms[e.roomID]) == 0 {
			delete(r.rooms, e.roomID)
		}
	}
	e.roomID = roomID
	e.expiresAt = time.Now().Add(r.ttl)
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[core.ConnectionID]struct{})
	}
	r.rooms[roomID][id] = struct{}{}
	log.Info().Str("module", "registry").Str("conn_id", string(id)).Str("room_id", string(roomID)).Msg("subscribed")
	return true
}

func (r *Registry) Unregister(id core.ConnectionID) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
		if e.roomID != "" {
			delete(r.rooms[e.roomID], id)
			if len(r.rooms[e.roomID]) == 0 {
				delete(r.rooms, e.roomID)
			}
		}
	}
	r.mu.Unlock()
	if ok {
		e.conn.Close()
		log.Info().Str("module", "registry").Str("conn_id", string(id)).Msg("connection unregistered")
	}
}

// ByRoom returns the live subscriber ids of a room via the secondary
// index; expired entries are skipped (the sweep removes them for real).
func (r *Registry) ByRoom(roomID domain.RoomID) []core.ConnectionID {
	now := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]core.ConnectionID, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		if e := r.conns[id]; e != nil && e.expiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Broadcast delivers one event to every subscriber of the room. Each
// delivery is attempted once in its own goroutine; a closed connection
// is unregistered immediately, a full send buffer just drops this event.
// The call returns without waiting for deliveries.
func (r *Registry) Broadcast(roomID domain.RoomID, ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "registry").Str("room_id", string(roomID)).Msg("marshal event")
		return
	}

	now := time.Now()
	r.mu.RLock()
	targets := make(map[core.ConnectionID]core.PushConnection, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		if e := r.conns[id]; e != nil && e.expiresAt.After(now) {
			targets[id] = e.conn
		}
	}
	r.mu.RUnlock()

	for id, conn := range targets {
		go func(id core.ConnectionID, conn core.PushConnection) {
			err := conn.TrySend(data)
			switch {
			case err == nil:
			case errors.Is(err, core.ErrConnClosed):
				log.Info().Str("module", "registry").Str("conn_id", string(id)).Msg("dead connection, pruning")
				r.Unregister(id)
			default:
				log.Warn().Err(err).Str("module", "registry").Str("conn_id", string(id)).Msg("delivery dropped")
			}
		}(id, conn)
	}

	log.Debug().Str("module", "registry").Str("room_id", string(roomID)).
		Str("event", string(ev.Kind())).Int("subscribers", len(targets)).Msg("broadcast")
}

// Run sweeps expired connections until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()
	r.mu.RLock()
	var stale []core.ConnectionID
	for id, e := range r.conns {
		if !e.expiresAt.After(now) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()
	for _, id := range stale {
		log.Info().Str("module", "registry").Str("conn_id", string(id)).Msg("connection expired")
		r.Unregister(id)
	}
}
