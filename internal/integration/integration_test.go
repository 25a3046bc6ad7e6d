package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-service/internal/app"
	"exam-service/internal/domain"
	pgstore "exam-service/internal/infra/postgres"
	pgmigrations "exam-service/internal/infra/postgres/migrations"
	infraredis "exam-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestExamLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pgstore.NewStore(pool, 60)
	cache := infraredis.NewQuestionCache(redisClient, store, 5*time.Minute)
	identities := infraredis.NewIdentityStore(redisClient, 24*time.Hour)

	exam := app.NewExamService(store, store, store, cache, identities, 30*time.Second)
	admin := app.NewAdminService(store, store, cache, store, store)

	if _, _, err := exam.Register(ctx, "Alice"); err != domain.ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession before start, got %v", err)
	}

	q, err := admin.AddQuestion(ctx, domain.Question{
		Text:          "What is 2 + 2?",
		OptionA:       "3",
		OptionB:       "4",
		OptionC:       "5",
		OptionD:       "6",
		CorrectAnswer: "b",
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if q.CorrectAnswer != "B" {
		t.Fatalf("expected normalized correct answer, got %q", q.CorrectAnswer)
	}

	if err := admin.StartExam(ctx); err != nil {
		t.Fatalf("start exam: %v", err)
	}

	participant, token, err := exam.Register(ctx, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	identity, err := exam.Resolve(ctx, token)
	if err != nil || identity.ParticipantID != participant.ID {
		t.Fatalf("resolve: identity=%+v err=%v", identity, err)
	}

	// Revision: second submit must overwrite, not duplicate.
	if correct, err := exam.SubmitAnswer(ctx, participant.ID, q.ID, "a"); err != nil || correct {
		t.Fatalf("expected wrong answer accepted, correct=%v err=%v", correct, err)
	}
	correct, err := exam.SubmitAnswer(ctx, participant.ID, q.ID, "b")
	if err != nil {
		t.Fatalf("revise answer: %v", err)
	}
	if !correct {
		t.Fatalf("expected revised answer graded correct")
	}

	var answerRows int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM answers WHERE participant_id=$1`, participant.ID).Scan(&answerRows); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if answerRows != 1 {
		t.Fatalf("expected a single upserted answer row, got %d", answerRows)
	}

	first, err := exam.Complete(ctx, participant.ID, false)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first.Score != 1 || first.Total != 1 {
		t.Fatalf("expected score=1 total=1, got %+v", first)
	}
	second, err := exam.Complete(ctx, participant.ID, false)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !second.AlreadySubmitted || second.Score != 1 {
		t.Fatalf("expected idempotent completion, got %+v", second)
	}

	entries, err := admin.Scoreboard(ctx)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Alice" || entries[0].Score != 1 {
		t.Fatalf("unexpected scoreboard %+v", entries)
	}

	stats, err := admin.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalParticipants != 1 || stats.AverageScore != 1 || stats.TotalQuestions != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := admin.ResetAll(ctx); err != nil {
		t.Fatalf("reset all: %v", err)
	}
	fresh, _, err := exam.Register(ctx, "Bob")
	if err != nil {
		t.Fatalf("register after reset: %v", err)
	}
	if fresh.ID != 1 {
		t.Fatalf("expected participant ids to restart at 1, got %d", fresh.ID)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
