package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements every app repository against the four-table schema.
// All statements are parameterized; concurrency is bounded by the pool.
type Store struct {
	pool            *pgxpool.Pool
	defaultDuration int
}

func NewStore(pool *pgxpool.Pool, defaultDurationMinutes int) *Store {
	return &Store{pool: pool, defaultDuration: defaultDurationMinutes}
}

// Current returns the most recent session row, inserting the inactive
// default when the table is empty. Only this method ever inserts a
// session, so exactly one row exists in practice.
func (s *Store) Current(ctx context.Context) (domain.ExamSession, error) {
	var session domain.ExamSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, is_active, duration_minutes, started_at, ended_at
		 FROM exam_sessions ORDER BY id DESC LIMIT 1`,
	).Scan(&session.ID, &session.Active, &session.DurationMinutes, &session.StartedAt, &session.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		session = domain.ExamSession{Active: false, DurationMinutes: s.defaultDuration}
		err = s.pool.QueryRow(ctx,
			`INSERT INTO exam_sessions (is_active, duration_minutes) VALUES (FALSE, $1) RETURNING id`,
			s.defaultDuration,
		).Scan(&session.ID)
		if err != nil {
			return domain.ExamSession{}, fmt.Errorf("create exam session: %w", err)
		}
		return session, nil
	}
	if err != nil {
		return domain.ExamSession{}, fmt.Errorf("load exam session: %w", err)
	}
	return session, nil
}

func (s *Store) SetDuration(ctx context.Context, minutes int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE exam_sessions SET duration_minutes=$1 WHERE id=(SELECT max(id) FROM exam_sessions)`,
		minutes)
	if err != nil {
		return fmt.Errorf("set duration: %w", err)
	}
	return nil
}

func (s *Store) Start(ctx context.Context, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE exam_sessions SET is_active=TRUE, started_at=$1 WHERE id=(SELECT max(id) FROM exam_sessions)`,
		at)
	if err != nil {
		return fmt.Errorf("start exam: %w", err)
	}
	return nil
}

func (s *Store) End(ctx context.Context, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE exam_sessions SET is_active=FALSE, ended_at=$1 WHERE id=(SELECT max(id) FROM exam_sessions)`,
		at)
	if err != nil {
		return fmt.Errorf("end exam: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, q domain.Question) (domain.Question, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (question, option_a, option_b, option_c, option_d, correct_answer)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, fmt.Errorf("add question: %w", err)
	}
	return q, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question, option_a, option_b, option_c, option_d, correct_answer, created_at
		 FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectAnswer, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// LoadQuestions satisfies the question-cache loader interfaces.
func (s *Store) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.List(ctx)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (s *Store) Create(ctx context.Context, name string, sessionID int64, at time.Time) (domain.Participant, error) {
	participant := domain.Participant{Name: name, ExamSessionID: sessionID, StartedAt: at}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO participants (name, exam_session_id, started_at) VALUES ($1, $2, $3) RETURNING id`,
		name, sessionID, at,
	).Scan(&participant.ID)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}
	return participant, nil
}

// Complete runs the completed check, the answer aggregation, and the
// final write in one transaction with the participant row locked, so
// two concurrent completions cannot both score.
func (s *Store) Complete(ctx context.Context, id int64, autoSubmitted bool, at time.Time) (domain.CompletionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("begin completion: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		score, total int
		completedAt  *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT score, total_questions, completed_at FROM participants WHERE id=$1 FOR UPDATE`,
		id,
	).Scan(&score, &total, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CompletionResult{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("load participant: %w", err)
	}
	if completedAt != nil {
		return domain.CompletionResult{Score: score, Total: total, AlreadySubmitted: true}, nil
	}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct) FROM answers WHERE participant_id=$1`,
		id,
	).Scan(&total, &score)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("aggregate answers: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE participants SET score=$1, total_questions=$2, completed_at=$3, auto_submitted=$4 WHERE id=$5`,
		score, total, at, autoSubmitted, id)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("finalize participant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("commit completion: %w", err)
	}
	return domain.CompletionResult{Score: score, Total: total}, nil
}

func (s *Store) IncrementMalpractice(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE participants SET malpractice_count = malpractice_count + 1 WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("increment malpractice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) Scoreboard(ctx context.Context, limit int) ([]domain.ScoreboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, score, total_questions, malpractice_count, auto_submitted, completed_at
		 FROM participants
		 WHERE completed_at IS NOT NULL
		 ORDER BY score DESC, completed_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load scoreboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.ScoreboardEntry{}
	for rows.Next() {
		var e domain.ScoreboardEntry
		if err := rows.Scan(&e.Name, &e.Score, &e.TotalQuestions, &e.MalpracticeCount, &e.AutoSubmitted, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan scoreboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) CompletedStats(ctx context.Context) (int, float64, error) {
	var (
		completed int
		avg       float64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score)::float8, 0) FROM participants WHERE completed_at IS NOT NULL`,
	).Scan(&completed, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("load stats: %w", err)
	}
	return completed, avg, nil
}

// Upsert relies on the unique (participant_id, question_id) constraint:
// a resubmission overwrites in place as a single atomic statement.
func (s *Store) Upsert(ctx context.Context, a domain.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (participant_id, question_id, selected_answer, is_correct, answered_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (participant_id, question_id)
		 DO UPDATE SET selected_answer=EXCLUDED.selected_answer, is_correct=EXCLUDED.is_correct, answered_at=EXCLUDED.answered_at`,
		a.ParticipantID, a.QuestionID, a.Selected, a.Correct, a.AnsweredAt)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) ResetParticipants(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE answers, participants RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset participants: %w", err)
	}
	return nil
}

func (s *Store) ResetQuestions(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE answers, participants, questions RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset questions: %w", err)
	}
	return nil
}
