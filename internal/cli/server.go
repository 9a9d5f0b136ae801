package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiz-arena-service/internal/auth"
	"quiz-arena-service/internal/config"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
	pgstore "quiz-arena-service/internal/infra/postgres"
	redisstore "quiz-arena-service/internal/infra/redis"
	"quiz-arena-service/internal/match"
	transport "quiz-arena-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz arena server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo match.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var profiles match.ProfileStore
	switch {
	case pool != nil:
		profiles = pgstore.NewProfileStore(pool)
	case redisClient != nil:
		profiles = redisstore.NewProfileStore(redisClient)
	default:
		profiles = memory.NewProfileStore()
	}

	var verifier auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	} else {
		log.Warn().Msg("no jwt secret configured, using demo credentials")
		verifier = auth.NewStaticVerifier(demoIdentities())
	}

	service := match.NewService(quizRepo, profiles, match.Settings{
		QuestionTime:       config.TTLDuration(cfg.Match.QuestionTime, 30*time.Second),
		CompletedRetention: config.TTLDuration(cfg.Match.CompletedRetention, 5*time.Minute),
		ReaperInterval:     config.TTLDuration(cfg.Match.ReaperInterval, 10*time.Minute),
		MaxAge:             config.TTLDuration(cfg.Match.MaxAge, time.Hour),
	})

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go service.RunReaper(reaperCtx)

	wsHandler := transport.NewWSHandler(service, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz arena service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal demo content when Postgres is not configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					TimeLimitSec: 30,
				},
				{
					ID:     "q2",
					Prompt: "Which numbers are prime?",
					Options: []domain.Option{
						{ID: "o1", Text: "2", Correct: true},
						{ID: "o2", Text: "4", Correct: false},
						{ID: "o3", Text: "5", Correct: true},
					},
					TimeLimitSec: 30,
				},
			},
		},
	}
}

func demoIdentities() map[string]domain.Identity {
	return map[string]domain.Identity{
		"alice-token": {UserID: "u-alice", DisplayName: "Alice", IsActive: true},
		"bob-token":   {UserID: "u-bob", DisplayName: "Bob", IsActive: true},
	}
}
