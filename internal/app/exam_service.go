package app

import (
	"context"
	"strings"
	"time"

	"exam-service/internal/domain"

	"github.com/google/uuid"
)

// ExamService contains the participant-facing use cases: status,
// registration, question delivery, answer submission, completion.
type ExamService struct {
	sessions     ExamSessionRepository
	participants ParticipantRepository
	answers      AnswerRepository
	questions    QuestionCache
	identities   IdentityStore
	grace        time.Duration
	now          func() time.Time
}

func NewExamService(sessions ExamSessionRepository, participants ParticipantRepository, answers AnswerRepository, questions QuestionCache, identities IdentityStore, grace time.Duration) *ExamService {
	return &ExamService{
		sessions:     sessions,
		participants: participants,
		answers:      answers,
		questions:    questions,
		identities:   identities,
		grace:        grace,
		now:          time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *ExamService) WithClock(now func() time.Time) *ExamService {
	s.now = now
	return s
}

// Status reports the current session, lazily creating the default
// inactive one on first call.
func (s *ExamService) Status(ctx context.Context) (domain.ExamStatus, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return domain.ExamStatus{}, err
	}
	return domain.ExamStatus{
		Active:          session.Active,
		DurationMinutes: session.DurationMinutes,
		StartedAt:       session.StartedAt,
	}, nil
}

// Register creates a participant bound to the active session and mints
// an identity token for the caller. Duplicate names are permitted.
func (s *ExamService) Register(ctx context.Context, name string) (domain.Participant, string, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return domain.Participant{}, "", err
	}
	if !session.Active {
		return domain.Participant{}, "", domain.ErrNoActiveSession
	}

	participant, err := s.participants.Create(ctx, name, session.ID, s.now())
	if err != nil {
		return domain.Participant{}, "", err
	}

	token := uuid.NewString()
	identity := domain.Identity{ParticipantID: participant.ID, Name: name}
	if err := s.identities.Save(ctx, token, identity); err != nil {
		return domain.Participant{}, "", err
	}
	return participant, token, nil
}

// Resolve maps a cookie token back to a participant identity.
func (s *ExamService) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrNotRegistered
	}
	identity, ok, err := s.identities.Get(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, domain.ErrNotRegistered
	}
	return identity, nil
}

// Questions returns the bank in creation order with correct answers withheld.
func (s *ExamService) Questions(ctx context.Context) ([]domain.Question, error) {
	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return nil, err
	}
	sanitized := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		sanitized = append(sanitized, q.Sanitized())
	}
	return sanitized, nil
}

// SubmitAnswer grades a selection case-insensitively and upserts it,
// so resubmitting a question overwrites the earlier choice. The server
// clock, not the client, decides whether the window is still open.
func (s *ExamService) SubmitAnswer(ctx context.Context, participantID, questionID int64, answer string) (bool, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return false, err
	}
	now := s.now()
	if !session.Open(now, s.grace) {
		return false, domain.ErrExamClosed
	}

	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return false, err
	}
	var correctAnswer string
	found := false
	for _, q := range questions {
		if q.ID == questionID {
			correctAnswer = q.CorrectAnswer
			found = true
			break
		}
	}
	if !found {
		return false, domain.ErrQuestionNotFound
	}

	correct := strings.EqualFold(correctAnswer, answer)
	err = s.answers.Upsert(ctx, domain.Answer{
		ParticipantID: participantID,
		QuestionID:    questionID,
		Selected:      strings.ToUpper(answer),
		Correct:       correct,
		AnsweredAt:    now,
	})
	if err != nil {
		return false, err
	}
	return correct, nil
}

// Complete finalizes a participant's exam. A second call finds the
// stored result and mutates nothing. Completion is never refused, but
// once the window has closed the stored flag is forced to
// auto-submitted regardless of what the client reported.
func (s *ExamService) Complete(ctx context.Context, participantID int64, autoSubmitted bool) (domain.CompletionResult, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	now := s.now()
	if !session.Open(now, s.grace) {
		autoSubmitted = true
	}
	return s.participants.Complete(ctx, participantID, autoSubmitted, now)
}

// ReportMalpractice increments the caller's malpractice counter.
func (s *ExamService) ReportMalpractice(ctx context.Context, participantID int64) error {
	return s.participants.IncrementMalpractice(ctx, participantID)
}
