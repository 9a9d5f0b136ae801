package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-arena-service/internal/domain"
)

// ProfileStore persists ratings and win/loss counters in the users table.
// Each result is applied in a single UPSERT so the increments stay atomic.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) ApplyMatchResult(ctx context.Context, result domain.MatchResult) error {
	wins, losses := 0, 1
	if result.Won {
		wins, losses = 1, 0
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, rating, total_matches, wins, losses)
		VALUES ($1, 1000 + $2, 1, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			rating = users.rating + $2,
			total_matches = users.total_matches + 1,
			wins = users.wins + $3,
			losses = users.losses + $4`,
		result.UserID, result.RatingDelta, wins, losses)
	if err != nil {
		return fmt.Errorf("apply match result: %w", err)
	}
	return nil
}
