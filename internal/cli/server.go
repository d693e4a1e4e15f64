package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	natspub "quiz-room-service/internal/infra/nats"
	"quiz-room-service/internal/infra/postgres"
	redisstore "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizMap())
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var roomOpts []transport.RoomsOption
	var rooms app.RoomRepository
	if redisClient != nil {
		store := redisstore.NewRoomStore(redisClient, redisTTL, logger)
		rooms = store
		roomOpts = append(roomOpts, transport.WithSharedSummaries(store))
	} else {
		rooms = memory.NewRoomStore()
	}

	var sinks []app.ResultSink
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		results := postgres.NewResultStore(db)
		sinks = append(sinks, results)
		roomOpts = append(roomOpts, transport.WithResultHistory(results))
	}
	if cfg.NATS.URL != "" {
		nc, err := natspub.Connect(cfg.NATS.URL, "quiz-room-service")
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		sinks = append(sinks, natspub.NewResultPublisher(nc, cfg.NATS.Subject))
	}

	registry := app.NewRegistry(rooms,
		app.WithCodeGenerator(app.RandomCodes(cfg.Room.CodeLength)),
		app.WithCodeAttempts(cfg.Room.CodeAttempts),
	)
	hub := transport.NewHub(logger)
	service := app.NewService(registry, hub,
		app.WithQuizRepository(quizRepo),
		app.WithResultSink(app.NewResultFanout(logger, sinks...)),
		app.WithNextQuestionDelay(config.TTLDuration(cfg.Server.NextQuestionDelay, 1500*time.Millisecond)),
		app.WithLogger(logger),
	)
	router := transport.NewRouter(
		transport.NewWSHandler(service, hub, logger),
		transport.NewRoomsHandler(registry, logger, roomOpts...),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz room service",
			"port", finalPort,
			"redis", redisClient != nil,
			"postgres", pool != nil,
			"result_sinks", len(sinks))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.CloseAll()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes is the demo catalogue served when no Postgres is configured, and seeded by migrate --seed.
func sampleQuizzes() []domain.QuizData {
	return []domain.QuizData{
		{
			ID:    "quiz-1",
			Topic: "Arithmetic",
			Questions: []domain.Question{
				{Question: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: domain.IndexAnswer(1)},
				{Question: "What is 3 * 3?", Options: []string{"6", "9", "12"}, CorrectAnswer: domain.TextAnswer("9")},
				{Question: "What is 10 / 4?", Options: []string{"2", "2.5", "3"}, CorrectAnswer: domain.IndexAnswer(1), Explanation: "Division is not truncated."},
			},
		},
		{
			ID:    "quiz-2",
			Topic: "Geography",
			Questions: []domain.Question{
				{Question: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice"}, CorrectAnswer: domain.TextAnswer("Paris")},
				{Question: "Longest river?", Options: []string{"Amazon", "Nile", "Yangtze"}, CorrectAnswer: domain.IndexAnswer(1)},
			},
		},
	}
}

func sampleQuizMap() map[string]domain.QuizData {
	out := make(map[string]domain.QuizData)
	for _, q := range sampleQuizzes() {
		out[q.ID] = q
	}
	return out
}
