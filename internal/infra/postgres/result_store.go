package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-room-service/internal/domain"
)

// GameResult is one finished game.
type GameResult struct {
	bun.BaseModel `bun:"table:game_results,alias:gr"`

	ID             int64     `bun:"id,pk,autoincrement"`
	RoomCode       string    `bun:"room_code,notnull"`
	RoomName       string    `bun:"room_name"`
	QuizID         string    `bun:"quiz_id"`
	Topic          string    `bun:"topic"`
	Mode           string    `bun:"mode,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	Winner         string    `bun:"winner"`
	StartedAt      time.Time `bun:"started_at,notnull"`
	FinishedAt     time.Time `bun:"finished_at,notnull"`

	Players []*PlayerResult `bun:"rel:has-many,join:id=game_id"`
}

// PlayerResult is one player's row of a finished game.
type PlayerResult struct {
	bun.BaseModel `bun:"table:player_results,alias:pr"`

	ID               int64      `bun:"id,pk,autoincrement"`
	GameID           int64      `bun:"game_id,notnull"`
	Rank             int        `bun:"rank,notnull"`
	Username         string     `bun:"username,notnull"`
	Score            int        `bun:"score,notnull"`
	CorrectAnswers   int        `bun:"correct_answers,notnull"`
	TotalAnswers     int        `bun:"total_answers,notnull"`
	AverageTimeTaken float64    `bun:"average_time_taken,notnull"`
	FinishedAt       *time.Time `bun:"finished_at"`
}

// ResultStore persists finished games.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

// RecordResults writes the game and its player rows in one transaction.
func (s *ResultStore) RecordResults(ctx context.Context, results domain.GameResults) error {
	game := &GameResult{
		RoomCode:       results.RoomCode,
		RoomName:       results.RoomName,
		QuizID:         results.QuizID,
		Topic:          results.Topic,
		Mode:           string(results.Mode),
		TotalQuestions: results.TotalQuestions,
		StartedAt:      results.StartedAt,
		FinishedAt:     results.FinishedAt,
	}
	if results.Winner != nil {
		game.Winner = results.Winner.Username
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(game).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("insert game result: %w", err)
		}
		if len(results.Results) == 0 {
			return nil
		}
		rows := make([]*PlayerResult, 0, len(results.Results))
		for _, r := range results.Results {
			rows = append(rows, &PlayerResult{
				GameID:           game.ID,
				Rank:             r.Rank,
				Username:         r.Username,
				Score:            r.Score,
				CorrectAnswers:   r.CorrectAnswers,
				TotalAnswers:     r.TotalAnswers,
				AverageTimeTaken: r.AverageTimeTaken,
				FinishedAt:       r.FinishedAt,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert player results: %w", err)
		}
		return nil
	})
}

// RecentResults returns the latest finished games of a room, newest first, with players in rank order.
func (s *ResultStore) RecentResults(ctx context.Context, roomCode string, limit int) ([]domain.GameResults, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var games []*GameResult
	err := s.db.NewSelect().
		Model(&games).
		Relation("Players", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("pr.rank ASC")
		}).
		Where("gr.room_code = ?", roomCode).
		Order("gr.finished_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select game results: %w", err)
	}
	out := make([]domain.GameResults, 0, len(games))
	for _, g := range games {
		out = append(out, g.toDomain())
	}
	return out, nil
}

func (g *GameResult) toDomain() domain.GameResults {
	results := domain.GameResults{
		RoomCode:       g.RoomCode,
		RoomName:       g.RoomName,
		QuizID:         g.QuizID,
		Topic:          g.Topic,
		Mode:           domain.ProgressionMode(g.Mode),
		TotalQuestions: g.TotalQuestions,
		StartedAt:      g.StartedAt,
		FinishedAt:     g.FinishedAt,
		Results:        make([]domain.PlayerResult, 0, len(g.Players)),
	}
	for _, p := range g.Players {
		results.Results = append(results.Results, domain.PlayerResult{
			Rank:             p.Rank,
			Username:         p.Username,
			Score:            p.Score,
			CorrectAnswers:   p.CorrectAnswers,
			TotalAnswers:     p.TotalAnswers,
			AverageTimeTaken: p.AverageTimeTaken,
			FinishedAt:       p.FinishedAt,
		})
	}
	if len(results.Results) > 0 {
		winner := results.Results[0]
		results.Winner = &winner
	}
	return results
}
