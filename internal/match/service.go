package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-arena-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ProfileStore applies one player's match outcome to the persistent profile:
// rating delta plus total-matches/wins/losses counters, atomically per user.
type ProfileStore interface {
	ApplyMatchResult(ctx context.Context, result domain.MatchResult) error
}

// Settings tune the orchestrator's timing behavior.
type Settings struct {
	QuestionTime       time.Duration // default per-question limit
	CompletedRetention time.Duration // completed matches stay queryable this long
	ReaperInterval     time.Duration
	MaxAge             time.Duration
	DefaultMaxPlayers  int
	Clock              clockwork.Clock
}

func (s *Settings) applyDefaults() {
	if s.QuestionTime <= 0 {
		s.QuestionTime = 30 * time.Second
	}
	if s.CompletedRetention <= 0 {
		s.CompletedRetention = 5 * time.Minute
	}
	if s.ReaperInterval <= 0 {
		s.ReaperInterval = 10 * time.Minute
	}
	if s.MaxAge <= 0 {
		s.MaxAge = time.Hour
	}
	if s.DefaultMaxPlayers <= 0 {
		s.DefaultMaxPlayers = 4
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
}

// Service contains the live-match use cases. It owns the registry and wires
// each new match's hooks back into it.
type Service struct {
	registry *Registry
	quizzes  QuizRepository
	profiles ProfileStore
	settings Settings
}

func NewService(quizzes QuizRepository, profiles ProfileStore, settings Settings) *Service {
	settings.applyDefaults()
	return &Service{
		registry: NewRegistry(settings.Clock),
		quizzes:  quizzes,
		profiles: profiles,
		settings: settings,
	}
}

// Registry exposes the match table, mainly for tests and admin surfaces.
func (s *Service) Registry() *Registry { return s.registry }

// CreateMatch snapshots the quiz and registers a new waiting match. The
// creator joins through the returned code like everyone else.
func (s *Service) CreateMatch(ctx context.Context, creator domain.Identity, quizID string, maxPlayers int) (domain.MatchInfo, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.MatchInfo{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.MatchInfo{}, domain.ErrEmptyQuiz
	}

	if maxPlayers <= 0 {
		maxPlayers = s.settings.DefaultMaxPlayers
	}
	if maxPlayers < 2 {
		maxPlayers = 2
	}

	m := newMatch(matchParams{
		id:           uuid.NewString(),
		quiz:         quiz,
		maxPlayers:   maxPlayers,
		clock:        s.settings.Clock,
		questionTime: s.settings.QuestionTime,
		retention:    s.settings.CompletedRetention,
		hooks: hooks{
			recordUser: s.registry.RecordUserMatch,
			clearUser:  s.registry.ClearUserMatch,
			remove:     s.registry.Remove,
			persist:    s.persistResults,
		},
	})
	code := s.registry.Register(m)
	go m.run()

	log.Info().
		Str("match_id", m.id).
		Str("quiz_id", quizID).
		Str("join_code", code).
		Str("creator", creator.UserID).
		Int("max_players", maxPlayers).
		Msg("match created")
	return m.Snapshot()
}

// JoinByCode resolves a join code and adds the user to that match.
func (s *Service) JoinByCode(code string, user domain.Identity, conn Conn) (domain.MatchInfo, error) {
	m, ok := s.registry.FindByCode(code)
	if !ok {
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
	return m.Join(user, conn)
}

// MarkReady flags the user ready in their current match.
func (s *Service) MarkReady(userID string) error {
	m, ok := s.registry.MatchForUser(userID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	return m.Ready(userID)
}

// SubmitAnswer scores an answer in the user's current match. The result is
// returned to the caller only; it is never broadcast.
func (s *Service) SubmitAnswer(userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	m, ok := s.registry.MatchForUser(userID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrMatchNotFound
	}
	return m.Submit(userID, sub)
}

// Disconnect signals a transport-level drop for the user.
func (s *Service) Disconnect(userID string) {
	m, ok := s.registry.MatchForUser(userID)
	if !ok {
		return
	}
	m.Disconnect(userID)
}

// Snapshot returns the current view of a match by id.
func (s *Service) Snapshot(matchID string) (domain.MatchInfo, error) {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
	return m.Snapshot()
}

// ForceEnd administratively ends a match, cancelling its pending timer.
func (s *Service) ForceEnd(matchID string) error {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	m.ForceEnd()
	return nil
}

// RunReaper blocks, sweeping stale matches until ctx is cancelled.
func (s *Service) RunReaper(ctx context.Context) {
	s.registry.RunReaper(ctx, s.settings.ReaperInterval, s.settings.MaxAge)
}

// persistResults writes rating updates off the match loop. Failures are
// logged and never block or roll back in-memory completion.
func (s *Service) persistResults(matchID string, results []domain.MatchResult) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, result := range results {
			if err := s.profiles.ApplyMatchResult(ctx, result); err != nil {
				log.Error().
					Err(err).
					Str("match_id", matchID).
					Str("user_id", result.UserID).
					Msg("failed to persist rating update")
			}
		}
	}()
}
