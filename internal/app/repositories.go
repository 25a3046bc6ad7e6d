package app

import (
	"context"
	"time"

	"exam-service/internal/domain"
)

// ExamSessionRepository owns the singleton exam-session row.
// Current lazily creates an inactive session with the configured
// default duration when none exists.
type ExamSessionRepository interface {
	Current(ctx context.Context) (domain.ExamSession, error)
	SetDuration(ctx context.Context, minutes int) error
	Start(ctx context.Context, at time.Time) error
	End(ctx context.Context, at time.Time) error
}

// QuestionRepository is the question bank (admin view, correct answers included).
type QuestionRepository interface {
	Add(ctx context.Context, q domain.Question) (domain.Question, error)
	List(ctx context.Context) ([]domain.Question, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ParticipantRepository stores exam-taker records. Complete must be
// atomic: the already-completed check, the answer aggregation, and the
// final write happen as one unit so concurrent completions cannot
// double-score.
type ParticipantRepository interface {
	Create(ctx context.Context, name string, sessionID int64, at time.Time) (domain.Participant, error)
	Complete(ctx context.Context, id int64, autoSubmitted bool, at time.Time) (domain.CompletionResult, error)
	IncrementMalpractice(ctx context.Context, id int64) error
	Scoreboard(ctx context.Context, limit int) ([]domain.ScoreboardEntry, error)
	CompletedStats(ctx context.Context) (completed int, avgScore float64, err error)
}

// AnswerRepository records selections. Upsert keeps at most one row
// per (participant, question) pair, overwriting on resubmission.
type AnswerRepository interface {
	Upsert(ctx context.Context, a domain.Answer) error
}

// Resetter wipes participant data (and optionally questions) and
// restarts identifier sequences at 1.
type Resetter interface {
	ResetParticipants(ctx context.Context) error
	ResetQuestions(ctx context.Context) error
}

// IdentityStore maps opaque cookie tokens to participant identities
// with an absolute TTL (in-memory, Redis, etc).
type IdentityStore interface {
	Save(ctx context.Context, token string, identity domain.Identity) error
	Get(ctx context.Context, token string) (domain.Identity, bool, error)
}

// QuestionCache serves the question list (from cache/backing store)
// and is invalidated whenever the bank changes.
type QuestionCache interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Invalidate(ctx context.Context) error
}
