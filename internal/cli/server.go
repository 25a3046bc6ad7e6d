package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-service/internal/app"
	"exam-service/internal/config"
	"exam-service/internal/infra/memory"
	pgstore "exam-service/internal/infra/postgres"
	redisinfra "exam-service/internal/infra/redis"
	transport "exam-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
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
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return err
		}
		maxConns := cfg.Postgres.MaxConns
		if maxConns <= 0 {
			maxConns = 10
		}
		poolCfg.MaxConns = int32(maxConns)
		pool, err = pgxpool.ConnectConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
	}

	defaultDuration := cfg.Exam.DefaultDurationMinutes
	if defaultDuration <= 0 {
		defaultDuration = 60
	}
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 5*time.Minute)
	grace := config.TTLDuration(cfg.Exam.Grace, 30*time.Second)

	var (
		sessions     app.ExamSessionRepository
		questions    app.QuestionRepository
		participants app.ParticipantRepository
		answers      app.AnswerRepository
		resetter     app.Resetter
		loader       memory.QuestionLoader
	)
	if pool != nil {
		store := pgstore.NewStore(pool, defaultDuration)
		sessions, questions, participants, answers, resetter, loader = store, store, store, store, store, store
	} else {
		store := memory.NewStore(defaultDuration)
		sessions, questions, participants, answers, resetter, loader = store, store, store, store, store, store
		log.Printf("postgres not configured; using in-memory store")
	}

	var cache app.QuestionCache
	var identities app.IdentityStore
	if redisClient != nil {
		cache = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
		identities = redisinfra.NewIdentityStore(redisClient, sessionTTL)
	} else {
		cache = memory.NewQuestionCache(loader, questionTTL)
		identities = memory.NewIdentityStore(sessionTTL)
	}

	examService := app.NewExamService(sessions, participants, answers, cache, identities, grace)
	adminService := app.NewAdminService(sessions, questions, cache, participants, resetter)
	handler := transport.NewHandler(examService, adminService, cfg.Admin.Token, sessionTTL)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
