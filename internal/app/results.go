package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"quiz-room-service/internal/domain"
)

// ResultSink persists or forwards the outcome of a finished game.
type ResultSink interface {
	RecordResults(ctx context.Context, results domain.GameResults) error
}

// ResultFanout hands results to every sink concurrently.
type ResultFanout struct {
	sinks   []ResultSink
	timeout time.Duration
	logger  *slog.Logger
}

func NewResultFanout(logger *slog.Logger, sinks ...ResultSink) *ResultFanout {
	return &ResultFanout{sinks: sinks, timeout: 10 * time.Second, logger: logger}
}

// RecordResults waits for all sinks and returns the first error.
func (f *ResultFanout) RecordResults(ctx context.Context, results domain.GameResults) error {
	if len(f.sinks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Sinks are independent: one failing sink must not cancel the others.
	var g errgroup.Group
	for _, sink := range f.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.RecordResults(ctx, results); err != nil {
				f.logger.Error("record results failed", "room_code", results.RoomCode, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
