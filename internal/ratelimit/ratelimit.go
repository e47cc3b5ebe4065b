// Package ratelimit bounds room-creation requests per client address over
// a fixed window backed by Redis. The limiter is a protective side-car,
// not a correctness feature: on an unresolvable address or a Redis error
// it fails open so an outage here never blocks legitimate traffic.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Limiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

func New(client *redis.Client, prefix string, max int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, max: max, window: window}
}

// Allow reports whether the given client address may create another room
// in the current window. The counter key gets its expiry on first hit
// only, so the window is fixed, not sliding.
func (l *Limiter) Allow(ctx context.Context, addr string) bool {
	if addr == "" {
		log.Warn().Str("module", "ratelimit").Msg("client address unresolved, allowing")
		return true
	}

	key := l.prefix + "ratelimit:" + addr

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("module", "ratelimit").Str("addr", addr).Msg("redis failure, allowing")
		return true
	}

	count, err := incr.Result()
	if err != nil {
		log.Error().Err(err).Str("module", "ratelimit").Str("addr", addr).Msg("incr result, allowing")
		return true
	}
	if count > int64(l.max) {
		log.Info().Str("module", "ratelimit").Str("addr", addr).Int64("count", count).Msg("over quota")
		return false
	}
	return true
}

// Window is the retry horizon handed to rate-limited callers.
func (l *Limiter) Window() time.Duration { return l.window }
