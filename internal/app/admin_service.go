package app

import (
	"context"
	"math"
	"strings"
	"time"

	"exam-service/internal/domain"
)

// scoreboardLimit caps the public scoreboard.
const scoreboardLimit = 100

// AdminService contains the administrative use cases: question bank
// CRUD, session control, resets, and aggregate queries.
type AdminService struct {
	sessions     ExamSessionRepository
	questions    QuestionRepository
	cache        QuestionCache
	participants ParticipantRepository
	resetter     Resetter
	now          func() time.Time
}

func NewAdminService(sessions ExamSessionRepository, questions QuestionRepository, cache QuestionCache, participants ParticipantRepository, resetter Resetter) *AdminService {
	return &AdminService{
		sessions:     sessions,
		questions:    questions,
		cache:        cache,
		participants: participants,
		resetter:     resetter,
		now:          time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// AddQuestion inserts a question. The correct answer is normalized to
// upper case and must be one of A-D.
func (s *AdminService) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	switch q.CorrectAnswer {
	case "A", "B", "C", "D":
	default:
		return domain.Question{}, domain.ErrInvalidInput
	}

	added, err := s.questions.Add(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		return domain.Question{}, err
	}
	return added, nil
}

// Questions returns the full bank, correct answers included.
func (s *AdminService) Questions(ctx context.Context) ([]domain.Question, error) {
	return s.questions.List(ctx)
}

// DeleteQuestion removes a question; dependent answers cascade in the store.
func (s *AdminService) DeleteQuestion(ctx context.Context, id int64) error {
	if err := s.questions.Delete(ctx, id); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx)
}

// SetDuration updates the current session's duration in minutes.
func (s *AdminService) SetDuration(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return domain.ErrInvalidInput
	}
	if _, err := s.sessions.Current(ctx); err != nil {
		return err
	}
	return s.sessions.SetDuration(ctx, minutes)
}

// StartExam opens the session and stamps the start time. Idempotent:
// calling twice re-stamps the start time.
func (s *AdminService) StartExam(ctx context.Context) error {
	if _, err := s.sessions.Current(ctx); err != nil {
		return err
	}
	return s.sessions.Start(ctx, s.now())
}

// EndExam closes the session and stamps the end time. Idempotent.
func (s *AdminService) EndExam(ctx context.Context) error {
	if _, err := s.sessions.Current(ctx); err != nil {
		return err
	}
	return s.sessions.End(ctx, s.now())
}

// ResetAll wipes answers and participants and restarts their
// identifier sequences. Questions and the session are untouched.
func (s *AdminService) ResetAll(ctx context.Context) error {
	return s.resetter.ResetParticipants(ctx)
}

// ResetQuestions wipes answers, participants, and the question bank.
func (s *AdminService) ResetQuestions(ctx context.Context) error {
	if err := s.resetter.ResetQuestions(ctx); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx)
}

// Stats reports completed-participant count, their mean score rounded
// to two decimals (zero when none), and the question count.
func (s *AdminService) Stats(ctx context.Context) (domain.Stats, error) {
	completed, avg, err := s.participants.CompletedStats(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	questionCount, err := s.questions.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		TotalParticipants: completed,
		AverageScore:      math.Round(avg*100) / 100,
		TotalQuestions:    questionCount,
	}, nil
}

// Scoreboard lists up to 100 completed participants, best score first,
// earlier completion breaking ties.
func (s *AdminService) Scoreboard(ctx context.Context) ([]domain.ScoreboardEntry, error) {
	return s.participants.Scoreboard(ctx, scoreboardLimit)
}
