package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"exam-service/internal/domain"
)

// Store is an in-memory implementation of every app repository,
// useful when no postgres URL is configured (dev mode) and in tests.
// Identifier sequences restart at 1 after a reset, mirroring the SQL
// store's RESTART IDENTITY behavior.
type Store struct {
	defaultDuration int

	mu                sync.RWMutex
	session           *domain.ExamSession
	questions         []domain.Question
	participants      map[int64]*domain.Participant
	participantOrder  []int64
	answers           map[answerKey]*domain.Answer
	nextQuestionID    int64
	nextParticipantID int64
	nextAnswerID      int64
}

type answerKey struct {
	participantID int64
	questionID    int64
}

func NewStore(defaultDurationMinutes int) *Store {
	return &Store{
		defaultDuration:   defaultDurationMinutes,
		participants:      make(map[int64]*domain.Participant),
		answers:           make(map[answerKey]*domain.Answer),
		nextQuestionID:    1,
		nextParticipantID: 1,
		nextAnswerID:      1,
	}
}

// Current returns the session, lazily creating the inactive default.
func (s *Store) Current(_ context.Context) (domain.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.session = &domain.ExamSession{ID: 1, Active: false, DurationMinutes: s.defaultDuration}
	}
	return *s.session, nil
}

func (s *Store) SetDuration(_ context.Context, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	s.session.DurationMinutes = minutes
	return nil
}

func (s *Store) Start(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	s.session.Active = true
	s.session.StartedAt = &at
	return nil
}

func (s *Store) End(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	s.session.Active = false
	s.session.EndedAt = &at
	return nil
}

func (s *Store) Add(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextQuestionID
	s.nextQuestionID++
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *Store) List(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out, nil
}

// LoadQuestions satisfies the question-cache loader interfaces.
func (s *Store) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.List(ctx)
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.questions {
		if q.ID == id {
			s.questions = append(s.questions[:i], s.questions[i+1:]...)
			// cascade: drop answers referencing this question
			for key := range s.answers {
				if key.questionID == id {
					delete(s.answers, key)
				}
			}
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions), nil
}

func (s *Store) Create(_ context.Context, name string, sessionID int64, at time.Time) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant := &domain.Participant{
		ID:            s.nextParticipantID,
		Name:          name,
		ExamSessionID: sessionID,
		StartedAt:     at,
	}
	s.nextParticipantID++
	s.participants[participant.ID] = participant
	s.participantOrder = append(s.participantOrder, participant.ID)
	return *participant, nil
}

// Complete is atomic under the store mutex: the completed check, the
// answer aggregation, and the final write cannot interleave.
func (s *Store) Complete(_ context.Context, id int64, autoSubmitted bool, at time.Time) (domain.CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.participants[id]
	if !ok {
		return domain.CompletionResult{}, domain.ErrParticipantNotFound
	}
	if participant.CompletedAt != nil {
		return domain.CompletionResult{
			Score:            participant.Score,
			Total:            participant.TotalQuestions,
			AlreadySubmitted: true,
		}, nil
	}

	total, score := 0, 0
	for key, answer := range s.answers {
		if key.participantID != id {
			continue
		}
		total++
		if answer.Correct {
			score++
		}
	}

	participant.Score = score
	participant.TotalQuestions = total
	participant.CompletedAt = &at
	participant.AutoSubmitted = autoSubmitted
	return domain.CompletionResult{Score: score, Total: total}, nil
}

func (s *Store) IncrementMalpractice(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	participant.MalpracticeCount++
	return nil
}

func (s *Store) Scoreboard(_ context.Context, limit int) ([]domain.ScoreboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ScoreboardEntry, 0, len(s.participants))
	for _, id := range s.participantOrder {
		participant := s.participants[id]
		if participant.CompletedAt == nil {
			continue
		}
		entries = append(entries, domain.ScoreboardEntry{
			Name:             participant.Name,
			Score:            participant.Score,
			TotalQuestions:   participant.TotalQuestions,
			MalpracticeCount: participant.MalpracticeCount,
			AutoSubmitted:    participant.AutoSubmitted,
			CompletedAt:      *participant.CompletedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CompletedAt.Before(entries[j].CompletedAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) CompletedStats(_ context.Context) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed, sum := 0, 0
	for _, participant := range s.participants {
		if participant.CompletedAt == nil {
			continue
		}
		completed++
		sum += participant.Score
	}
	if completed == 0 {
		return 0, 0, nil
	}
	return completed, float64(sum) / float64(completed), nil
}

func (s *Store) Upsert(_ context.Context, a domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := answerKey{participantID: a.ParticipantID, questionID: a.QuestionID}
	if existing, ok := s.answers[key]; ok {
		existing.Selected = a.Selected
		existing.Correct = a.Correct
		existing.AnsweredAt = a.AnsweredAt
		return nil
	}
	a.ID = s.nextAnswerID
	s.nextAnswerID++
	s.answers[key] = &a
	return nil
}

func (s *Store) ResetParticipants(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetParticipantsLocked()
	return nil
}

func (s *Store) ResetQuestions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetParticipantsLocked()
	s.questions = nil
	s.nextQuestionID = 1
	return nil
}

func (s *Store) resetParticipantsLocked() {
	s.participants = make(map[int64]*domain.Participant)
	s.participantOrder = nil
	s.answers = make(map[answerKey]*domain.Answer)
	s.nextParticipantID = 1
	s.nextAnswerID = 1
}
