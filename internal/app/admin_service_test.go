package app_test

import (
	"context"
	"testing"
	"time"

	"exam-service/internal/domain"
)

func TestAddQuestionValidatesCorrectAnswer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	_, err := env.admin.AddQuestion(ctx, domain.Question{Text: "bad", CorrectAnswer: "E"})
	if err != domain.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for E, got %v", err)
	}

	q, err := env.admin.AddQuestion(ctx, domain.Question{Text: "ok", CorrectAnswer: " c "})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if q.CorrectAnswer != "C" {
		t.Fatalf("expected normalized answer C, got %q", q.CorrectAnswer)
	}
}

func TestAddQuestionInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.addQuestion(t, "first", "A")

	// Warm the cache through the participant path.
	if _, err := env.exam.Questions(ctx); err != nil {
		t.Fatalf("questions: %v", err)
	}

	env.addQuestion(t, "second", "B")
	questions, err := env.exam.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected new question visible immediately, got %d questions", len(questions))
	}
}

func TestDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	q := env.addQuestion(t, "first", "A")

	if err := env.admin.DeleteQuestion(ctx, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.admin.DeleteQuestion(ctx, q.ID); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}

	questions, err := env.exam.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 0 {
		t.Fatalf("expected empty bank after delete, got %d", len(questions))
	}
}

func TestSetDurationValidatesAndApplies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if err := env.admin.SetDuration(ctx, 0); err != domain.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for 0, got %v", err)
	}
	if err := env.admin.SetDuration(ctx, -5); err != domain.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for -5, got %v", err)
	}
	if err := env.admin.SetDuration(ctx, 45); err != nil {
		t.Fatalf("set duration: %v", err)
	}

	status, err := env.exam.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.DurationMinutes != 45 {
		t.Fatalf("expected duration 45, got %d", status.DurationMinutes)
	}
}

func TestStartAndEndExamAreIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if err := env.admin.StartExam(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	env.advance(time.Minute)
	if err := env.admin.StartExam(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	status, err := env.exam.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Active {
		t.Fatalf("expected active session")
	}
	if !status.StartedAt.Equal(testBase.Add(time.Minute)) {
		t.Fatalf("expected second start to re-stamp start time, got %v", status.StartedAt)
	}

	if err := env.admin.EndExam(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := env.admin.EndExam(ctx); err != nil {
		t.Fatalf("re-end: %v", err)
	}
	status, _ = env.exam.Status(ctx)
	if status.Active {
		t.Fatalf("expected inactive session after end")
	}
}

func TestStatsAverageRounding(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	q1 := env.addQuestion(t, "q1", "A")
	q2 := env.addQuestion(t, "q2", "A")

	stats, err := env.admin.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalParticipants != 0 || stats.AverageScore != 0 || stats.TotalQuestions != 2 {
		t.Fatalf("unexpected empty stats %+v", stats)
	}

	if err := env.admin.StartExam(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Scores 2, 1, 1 -> mean 4/3 -> 1.33 after rounding.
	scores := [][]int64{{q1.ID, q2.ID}, {q1.ID}, {q2.ID}}
	for i, correctOn := range scores {
		participant, _, err := env.exam.Register(ctx, "p")
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		for _, qid := range correctOn {
			if _, err := env.exam.SubmitAnswer(ctx, participant.ID, qid, "A"); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		if _, err := env.exam.Complete(ctx, participant.ID, false); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	stats, err = env.admin.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalParticipants != 3 {
		t.Fatalf("expected 3 completed, got %d", stats.TotalParticipants)
	}
	if stats.AverageScore != 1.33 {
		t.Fatalf("expected average 1.33, got %v", stats.AverageScore)
	}
}

func TestScoreboardOrdering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	q1 := env.addQuestion(t, "q1", "A")
	q2 := env.addQuestion(t, "q2", "A")
	if err := env.admin.StartExam(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Carol: 1 point, finishes first. Alice: 2 points. Bob: 1 point, finishes last.
	complete := func(name string, correctOn []int64) {
		t.Helper()
		participant, _, err := env.exam.Register(ctx, name)
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		for _, qid := range correctOn {
			if _, err := env.exam.SubmitAnswer(ctx, participant.ID, qid, "A"); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		if _, err := env.exam.Complete(ctx, participant.ID, false); err != nil {
			t.Fatalf("complete %s: %v", name, err)
		}
		env.advance(time.Minute)
	}

	complete("Carol", []int64{q1.ID})
	complete("Alice", []int64{q1.ID, q2.ID})
	complete("Bob", []int64{q2.ID})

	entries, err := env.admin.Scoreboard(ctx)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"Alice", "Carol", "Bob"}
	if len(names) != 3 || names[0] != want[0] || names[1] != want[1] || names[2] != want[2] {
		t.Fatalf("expected order %v, got %v", want, names)
	}
}

func TestResetAllRestartsIdentifiersAndKeepsQuestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.addQuestion(t, "q1", "A")
	if err := env.admin.StartExam(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := env.exam.Register(ctx, "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := env.exam.Register(ctx, "Bob"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.admin.ResetAll(ctx); err != nil {
		t.Fatalf("reset all: %v", err)
	}

	participant, _, err := env.exam.Register(ctx, "Carol")
	if err != nil {
		t.Fatalf("register after reset: %v", err)
	}
	if participant.ID != 1 {
		t.Fatalf("expected participant ids to restart at 1, got %d", participant.ID)
	}

	questions, err := env.admin.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("reset-all must keep questions, got %d", len(questions))
	}
}

func TestResetQuestionsWipesBank(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.addQuestion(t, "q1", "A")

	// Warm the cache before the reset.
	if _, err := env.exam.Questions(ctx); err != nil {
		t.Fatalf("questions: %v", err)
	}

	if err := env.admin.ResetQuestions(ctx); err != nil {
		t.Fatalf("reset questions: %v", err)
	}

	questions, err := env.exam.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 0 {
		t.Fatalf("expected empty bank after reset, got %d", len(questions))
	}

	q := env.addQuestion(t, "fresh", "A")
	if q.ID != 1 {
		t.Fatalf("expected question ids to restart at 1, got %d", q.ID)
	}
}
