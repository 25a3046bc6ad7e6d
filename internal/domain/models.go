package domain

import "time"

// Question is one multiple-choice question with four labeled options.
// CorrectAnswer is one of "A".."D" and must never reach participants.
type Question struct {
	ID            int64     `json:"id"`
	Text          string    `json:"question"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sanitized returns a copy safe to hand to participants.
func (q Question) Sanitized() Question {
	q.CorrectAnswer = ""
	return q
}

// ExamSession tracks whether an exam is open and its configured window.
type ExamSession struct {
	ID              int64
	Active          bool
	DurationMinutes int
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// Open reports whether submissions are still permitted at the given
// instant: the session must be active and, once started, within the
// configured duration plus grace.
func (s ExamSession) Open(now time.Time, grace time.Duration) bool {
	if !s.Active {
		return false
	}
	if s.StartedAt == nil {
		return true
	}
	deadline := s.StartedAt.Add(time.Duration(s.DurationMinutes)*time.Minute + grace)
	return !now.After(deadline)
}

// Participant is one exam-taker's progress record. Score, total,
// CompletedAt, and AutoSubmitted are write-once at completion.
type Participant struct {
	ID               int64
	Name             string
	Score            int
	TotalQuestions   int
	MalpracticeCount int
	ExamSessionID    int64
	StartedAt        time.Time
	CompletedAt      *time.Time
	AutoSubmitted    bool
}

// Answer holds the latest selection for one (participant, question)
// pair; at most one row exists per pair.
type Answer struct {
	ID            int64
	ParticipantID int64
	QuestionID    int64
	Selected      string
	Correct       bool
	AnsweredAt    time.Time
}

// Identity is the session-cookie binding established at registration.
type Identity struct {
	ParticipantID int64  `json:"participantId"`
	Name          string `json:"name"`
}

// ExamStatus is the public view of the current session.
type ExamStatus struct {
	Active          bool       `json:"isActive"`
	DurationMinutes int        `json:"duration"`
	StartedAt       *time.Time `json:"startedAt"`
}

// CompletionResult summarizes an exam completion. AlreadySubmitted is
// true when a prior completion was found and nothing was mutated.
type CompletionResult struct {
	Score            int  `json:"score"`
	Total            int  `json:"total"`
	AlreadySubmitted bool `json:"alreadySubmitted"`
}

// ScoreboardEntry is one completed participant, ordered by score
// descending then completion time ascending.
type ScoreboardEntry struct {
	Name             string    `json:"name"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	MalpracticeCount int       `json:"malpractice_count"`
	AutoSubmitted    bool      `json:"auto_submitted"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Stats aggregates results across completed participants.
type Stats struct {
	TotalParticipants int     `json:"totalParticipants"`
	AverageScore      float64 `json:"averageScore"`
	TotalQuestions    int     `json:"totalQuestions"`
}
