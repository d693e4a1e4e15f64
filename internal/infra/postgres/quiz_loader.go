package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-room-service/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizData, error) {
	var (
		topic string
		raw   []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT topic, data FROM quizzes WHERE id=$1`, quizID).Scan(&topic, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizData{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizData{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.QuizData
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizData{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	if quiz.Topic == "" {
		quiz.Topic = topic
	}
	return quiz, nil
}

// SaveQuiz upserts quiz content, used to seed the catalogue.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.QuizData) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO quizzes (id, topic, data) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET topic = EXCLUDED.topic, data = EXCLUDED.data, updated_at = now()`,
		quiz.ID, quiz.Topic, data)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
