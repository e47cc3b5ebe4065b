// Package roomid derives human-readable, collision-free room identifiers
// of the form <slug>-<code>, e.g. "sprint-25-x7k2".
package roomid

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/domain"
)

const (
	suffixChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
	fallbackSlug = "room"

	DefaultAttempts  = 5
	DefaultSuffixLen = 4
)

// ExistsFunc reports whether a candidate id is already taken. Errors other
// than "not found" abort allocation; the store maps absence to false, nil.
type ExistsFunc func(ctx context.Context, id domain.RoomID) (bool, error)

type Allocator struct {
	exists    ExistsFunc
	attempts  int
	suffixLen int
}

func New(exists ExistsFunc, attempts, suffixLen int) *Allocator {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if suffixLen <= 0 {
		suffixLen = DefaultSuffixLen
	}
	return &Allocator{exists: exists, attempts: attempts, suffixLen: suffixLen}
}

// Allocate returns the first unused <slug>-<code> candidate within the
// attempt budget. When every attempt collides it falls back to a suffix
// derived from the current time so allocation always terminates. The
// check is read-only; the caller performs the creation that follows.
func (a *Allocator) Allocate(ctx context.Context, name string) (domain.RoomID, error) {
	slug := Slug(name)

	for attempt := 0; attempt < a.attempts; attempt++ {
		id := domain.RoomID(slug + "-" + a.randomSuffix())
		taken, err := a.exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("roomid: existence check for %q: %w", id, err)
		}
		if !taken {
			return id, nil
		}
		log.Debug().Str("module", "roomid").Str("candidate", string(id)).Msg("candidate taken, retrying")
	}

	id := domain.RoomID(slug + "-" + timeSuffix(a.suffixLen))
	log.Warn().Str("module", "roomid").Str("id", string(id)).Int("attempts", a.attempts).
		Msg("attempt budget exhausted, using time-derived suffix")
	return id, nil
}

// Slug normalizes a room name: lowercased, non-alphanumerics stripped,
// whitespace collapsed to single hyphens, leading and trailing hyphens
// trimmed. An empty result falls back to a generic slug.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

func (a *Allocator) randomSuffix() string {
	b := make([]byte, a.suffixLen)
	for i := range b {
		b[i] = suffixChars[rand.IntN(len(suffixChars))]
	}
	return string(b)
}

func timeSuffix(n int) string {
	s := strconv.FormatInt(time.Now().UnixMilli(), 36)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
