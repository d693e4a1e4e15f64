package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"quiz-room-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizData{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.ID != "quiz-1" || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if calls := loader.calls.Load(); calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz again: %v", err)
	}
	if calls := loader.calls.Load(); calls != 1 {
		t.Fatalf("expected cache hit, got %d loads", calls)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizData{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if calls := loader.calls.Load(); calls != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", calls)
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	_, err := repo.GetQuiz(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizData, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.QuizData {
	return domain.QuizData{
		ID:    "quiz-1",
		Topic: "Arithmetic",
		Questions: []domain.Question{
			{
				Question:      "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: domain.IndexAnswer(1),
			},
			{
				Question:      "What is 3 * 3?",
				Options:       []string{"6", "9", "12"},
				CorrectAnswer: domain.TextAnswer("9"),
			},
		},
	}
}
