package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"quiz-arena-service/internal/domain"
)

// ProfileStore persists per-user rating and win/loss counters as a Redis
// hash per user. HIncrBy keeps each counter update atomic.
type ProfileStore struct {
	client *redis.Client
}

func NewProfileStore(client *redis.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

func (s *ProfileStore) ApplyMatchResult(ctx context.Context, result domain.MatchResult) error {
	key := s.key(result.UserID)

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, "rating", int64(result.RatingDelta))
	pipe.HIncrBy(ctx, key, "total_matches", 1)
	if result.Won {
		pipe.HIncrBy(ctx, key, "wins", 1)
	} else {
		pipe.HIncrBy(ctx, key, "losses", 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *ProfileStore) key(userID string) string {
	return "user:" + userID + ":profile"
}
