package memory

import (
	"context"
	"sync"

	"quiz-arena-service/internal/domain"
)

// Profile is the persistent per-user competitive record.
type Profile struct {
	UserID       string
	Rating       int
	TotalMatches int
	Wins         int
	Losses       int
}

// ProfileStore keeps profiles in memory. Used for tests and single-node demos.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*Profile)}
}

func (s *ProfileStore) ApplyMatchResult(_ context.Context, result domain.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[result.UserID]
	if !ok {
		profile = &Profile{UserID: result.UserID}
		s.profiles[result.UserID] = profile
	}
	profile.Rating += result.RatingDelta
	profile.TotalMatches++
	if result.Won {
		profile.Wins++
	} else {
		profile.Losses++
	}
	return nil
}

// Get returns a copy of a profile, if present.
func (s *ProfileStore) Get(userID string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return Profile{}, false
	}
	return *profile, true
}
