package match

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-arena-service/internal/domain"
)

// Lookalike characters are excluded so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
const codeLength = 6

// Registry owns every live Match and the user->match index. It is an
// explicitly constructed component, not a package-level singleton, so tests
// and future scale-out can own their own instance.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	codes   map[string]string // join code -> match id
	users   map[string]string // user id -> match id
	rnd     *rand.Rand
	clock   clockwork.Clock
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		matches: make(map[string]*Match),
		codes:   make(map[string]string),
		users:   make(map[string]string),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:   clock,
	}
}

// Register stores the match and assigns it a join code that is unique among
// live matches. Codes are random rather than derived from the match id, so
// two concurrent matches can never collide.
func (r *Registry) Register(m *Match) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		code := r.randomCode()
		if _, taken := r.codes[code]; taken {
			continue
		}
		m.joinCode = code
		r.matches[m.id] = m
		r.codes[code] = m.id
		return code
	}
}

func (r *Registry) randomCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[r.rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

func (r *Registry) Get(matchID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// FindByCode resolves a join code, case-insensitively.
func (r *Registry) FindByCode(code string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// MatchForUser resolves the match a user is currently indexed to.
func (r *Registry) MatchForUser(userID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// RecordUserMatch indexes a user to a match. A user indexed to a different
// live match is rejected; the index stays single-valued.
func (r *Registry) RecordUserMatch(userID, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[userID]; ok && existing != matchID {
		if _, live := r.matches[existing]; live {
			return domain.ErrAlreadyInMatch
		}
	}
	r.users[userID] = matchID
	return nil
}

// ClearUserMatch drops a user's index entry. Every removal of a player from
// a match's player set must be paired with a call here.
func (r *Registry) ClearUserMatch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// Remove deletes a match plus its code and any user index entries still
// pointing at it, then stops the match's loop. Safe to call from match loops
// and from the reaper; losers of the race see a no-op.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	m, ok := r.matches[matchID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.matches, matchID)
	delete(r.codes, m.joinCode)
	for userID, id := range r.users {
		if id == matchID {
			delete(r.users, userID)
		}
	}
	r.mu.Unlock()

	m.stop()
	log.Info().Str("match_id", matchID).Msg("match removed from registry")
}

// Len reports the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// RunReaper sweeps on a fixed period and force-removes any match older than
// maxAge regardless of status. This is the safety net for lobbies stuck in
// waiting and for matches orphaned by a dead timer.
func (r *Registry) RunReaper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.reapOnce(maxAge)
		}
	}
}

func (r *Registry) reapOnce(maxAge time.Duration) {
	cutoff := r.clock.Now().Add(-maxAge)

	r.mu.RLock()
	expired := make([]string, 0)
	for id, m := range r.matches {
		if m.CreatedAt().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		log.Warn().Str("match_id", id).Msg("reaping stale match")
		r.Remove(id)
	}
}
