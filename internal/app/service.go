package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quiz-room-service/internal/domain"
)

// Notifier delivers an outbound message to one connection. It must not block.
type Notifier interface {
	Send(connectionID string, msg domain.Message)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizData, error)
}

const defaultNextQuestionDelay = 1500 * time.Millisecond

// Service is the session protocol handler: it validates client events,
// mutates room state and emits notifications.
type Service struct {
	registry  *Registry
	notifier  Notifier
	quizzes   QuizRepository
	results   ResultSink
	scheduler Scheduler
	logger    *slog.Logger
	delay     time.Duration
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithQuizRepository enables loading quiz content by id.
func WithQuizRepository(q QuizRepository) Option {
	return func(s *Service) { s.quizzes = q }
}

// WithResultSink receives the results of every finished game.
func WithResultSink(sink ResultSink) Option {
	return func(s *Service) { s.results = sink }
}

// WithScheduler replaces the timer used for delayed next-question delivery.
func WithScheduler(sched Scheduler) Option {
	return func(s *Service) { s.scheduler = sched }
}

// WithNextQuestionDelay sets how long a player sees answer feedback before the next question.
func WithNextQuestionDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(registry *Registry, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		notifier:  notifier,
		scheduler: TimerScheduler{},
		logger:    slog.Default(),
		delay:     defaultNextQuestionDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the room table for read-only discovery APIs.
func (s *Service) Registry() *Registry {
	return s.registry
}

// CreateRoom registers a new room with the caller as host and replies room-created.
func (s *Service) CreateRoom(ctx context.Context, connID string, params CreateRoomParams) (domain.RoomSnapshot, error) {
	params.Username = strings.TrimSpace(params.Username)
	if params.Username == "" {
		return domain.RoomSnapshot{}, domain.ErrInvalidPayload.Wrap(errMissing("username"))
	}
	if params.Mode == "" {
		params.Mode = domain.ModeAsync
	}
	if len(params.Quiz.Questions) == 0 && params.QuizID != "" && s.quizzes != nil {
		quiz, err := s.quizzes.GetQuiz(ctx, params.QuizID)
		if err != nil {
			return domain.RoomSnapshot{}, quizLoadError(err)
		}
		params.Quiz = quiz
	}

	room, err := s.registry.CreateRoom(ctx, connID, params)
	if err != nil {
		s.logger.Error("create room failed", "connection_id", connID, "error", err)
		return domain.RoomSnapshot{}, err
	}

	room.mu.Lock()
	snap := room.snapshotLocked()
	summary := room.summaryLocked()
	s.notifier.Send(connID, domain.Message{
		Type:    domain.EventRoomCreated,
		Payload: domain.RoomCreatedPayload{RoomCode: room.code, Room: snap},
	})
	room.mu.Unlock()

	s.registry.sync(ctx, summary)
	s.logger.Info("room created",
		"room_code", room.code,
		"host", params.Username,
		"mode", params.Mode,
		"questions", len(params.Quiz.Questions))
	return snap, nil
}

// JoinRoom adds the caller as a player of a waiting room.
func (s *Service) JoinRoom(ctx context.Context, connID, code, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ErrInvalidPayload.Wrap(errMissing("username"))
	}
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	if room.status != domain.StatusWaiting {
		room.mu.Unlock()
		return domain.ErrGameInProgress
	}
	if room.playerLocked(connID) != nil || room.usernameTakenLocked(username) {
		room.mu.Unlock()
		return domain.ErrUsernameTaken
	}

	room.addPlayerLocked(connID, username, false)
	s.notifier.Send(connID, domain.Message{
		Type:    domain.EventRoomJoined,
		Payload: domain.RoomJoinedPayload{RoomCode: room.code, Room: room.snapshotLocked()},
	})
	s.broadcastLocked(room, domain.Message{
		Type:    domain.EventPlayerJoined,
		Payload: domain.PlayerJoinedPayload{Username: username, Players: room.playerViewsLocked()},
	})
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.registry.sync(ctx, summary)
	s.logger.Info("player joined", "room_code", room.code, "username", username, "players", summary.PlayerCount)
	return nil
}

// UpdateQuizParams carries a host's quiz or time limit change. Nil fields are left as they are.
type UpdateQuizParams struct {
	QuizID    string
	Quiz      *domain.QuizData
	TimeLimit *int
}

// UpdateQuiz replaces the quiz and/or time limit of a waiting room. Host only.
func (s *Service) UpdateQuiz(ctx context.Context, connID, code string, params UpdateQuizParams) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	isHost := room.isHostLocked(connID)
	room.mu.Unlock()
	if !isHost {
		return domain.ErrNotHost
	}

	quiz := params.Quiz
	if (quiz == nil || len(quiz.Questions) == 0) && params.QuizID != "" && s.quizzes != nil {
		loaded, err := s.quizzes.GetQuiz(ctx, params.QuizID)
		if err != nil {
			return quizLoadError(err)
		}
		quiz = &loaded
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	if !room.isHostLocked(connID) {
		room.mu.Unlock()
		return domain.ErrNotHost
	}
	if room.status != domain.StatusWaiting {
		room.mu.Unlock()
		return domain.ErrNotWaiting
	}

	if quiz != nil {
		room.quiz = *quiz
		if params.QuizID != "" {
			room.quizID = params.QuizID
		} else if quiz.ID != "" {
			room.quizID = quiz.ID
		}
		s.broadcastLocked(room, domain.Message{
			Type: domain.EventQuizUpdated,
			Payload: domain.QuizUpdatedPayload{
				QuizID:         room.quizID,
				Topic:          room.quiz.Topic,
				TotalQuestions: len(room.quiz.Questions),
			},
		})
	}
	if params.TimeLimit != nil && *params.TimeLimit > 0 && *params.TimeLimit != room.timeLimit {
		room.timeLimit = *params.TimeLimit
		s.broadcastLocked(room, domain.Message{
			Type:    domain.EventTimeLimitUpdated,
			Payload: domain.TimeLimitUpdatedPayload{TimeLimit: room.timeLimit},
		})
	}
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.registry.sync(ctx, summary)
	return nil
}

// PlayerReady toggles the caller's ready flag. Unknown players are ignored; the host stays ready.
func (s *Service) PlayerReady(_ context.Context, connID, code string) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return domain.ErrRoomNotFound
	}
	player := room.playerLocked(connID)
	if player == nil || room.status != domain.StatusWaiting {
		return nil
	}
	if !player.IsHost {
		player.Ready = !player.Ready
	}

	s.broadcastLocked(room, domain.Message{
		Type: domain.EventPlayerReadyUpdate,
		Payload: domain.PlayerReadyPayload{
			Username: player.Username,
			Ready:    player.Ready,
			Players:  room.playerViewsLocked(),
		},
	})
	if len(room.players) > 1 && room.allReadyLocked() {
		s.broadcastLocked(room, domain.Message{
			Type:    domain.EventAllPlayersReady,
			Payload: domain.AllPlayersReadyPayload{RoomCode: room.code},
		})
	}
	return nil
}

// StartGame moves a waiting room to playing. Host only; the quiz needs at least one question.
// A positive timeLimit overrides the room's time limit for this game.
func (s *Service) StartGame(ctx context.Context, connID, code string, timeLimit *int) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	if !room.isHostLocked(connID) {
		room.mu.Unlock()
		return domain.ErrNotHost
	}
	if room.totalQuestionsLocked() == 0 {
		room.mu.Unlock()
		return domain.ErrNoQuizSelected
	}
	if room.status != domain.StatusWaiting {
		room.mu.Unlock()
		return domain.ErrNotWaiting
	}

	now := s.now()
	if timeLimit != nil && *timeLimit > 0 {
		room.timeLimit = *timeLimit
	}
	room.status = domain.StatusPlaying
	room.currentQuestionIndex = 0
	room.startedAt = now
	room.questionStartedAt = now
	for _, p := range room.players {
		p.Score = 0
		p.Answers = nil
		p.CurrentQuestionIndex = 0
		p.Finished = false
		p.FinishedAt = nil
	}

	s.broadcastLocked(room, domain.Message{
		Type: domain.EventGameStarted,
		Payload: domain.GameStartedPayload{
			Mode:      room.mode,
			TimeLimit: room.timeLimit,
			StartedAt: now,
			Question:  room.publicQuestionLocked(0),
			Room:      room.snapshotLocked(),
		},
	})
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.registry.sync(ctx, summary)
	s.logger.Info("game started", "room_code", room.code, "players", summary.PlayerCount, "mode", room.mode)
	return nil
}

// SubmitAnswerParams is one answer submission.
type SubmitAnswerParams struct {
	QuestionIndex int
	Answer        domain.Answer
	TimeTaken     float64
}

// SubmitAnswer scores an answer. Submissions that do not apply (wrong room state,
// unknown player, question already answered or not current) are dropped without error.
func (s *Service) SubmitAnswer(ctx context.Context, connID, code string, params SubmitAnswerParams) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		s.logger.Debug("submit dropped", "room_code", code, "reason", "room not found")
		return nil
	}

	room.mu.Lock()
	player := room.playerLocked(connID)
	if room.closed || room.status != domain.StatusPlaying || player == nil || player.Finished {
		room.mu.Unlock()
		return nil
	}
	expected := player.CurrentQuestionIndex
	if room.mode == domain.ModeSync {
		expected = room.currentQuestionIndex
	}
	qi := params.QuestionIndex
	if qi != expected || qi < 0 || qi >= room.totalQuestionsLocked() || player.HasAnswered(qi) {
		room.mu.Unlock()
		s.logger.Debug("submit dropped", "room_code", room.code, "connection_id", connID, "question_index", qi)
		return nil
	}

	now := s.now()
	question := room.quiz.Questions[qi]
	correct := question.IsCorrect(params.Answer)
	taken := params.TimeTaken
	if taken < 0 {
		taken = 0
	}
	points := domain.Score(correct, taken, float64(room.timeLimit))
	player.Answers = append(player.Answers, domain.AnswerRecord{
		QuestionIndex: qi,
		Answer:        params.Answer,
		IsCorrect:     correct,
		TimeTaken:     taken,
		PointsAwarded: points,
		AnsweredAt:    now,
	})
	player.Score += points

	if room.mode == domain.ModeSync {
		s.broadcastAnswerLocked(room, player, qi, correct, points)
		room.mu.Unlock()
		return nil
	}

	player.CurrentQuestionIndex = qi + 1
	last := qi == room.totalQuestionsLocked()-1
	if last {
		finished := now
		player.Finished = true
		player.FinishedAt = &finished
	}
	s.broadcastAnswerLocked(room, player, qi, correct, points)

	if !last {
		next := player.CurrentQuestionIndex
		stop := s.scheduler.AfterFunc(s.delay, func() {
			s.deliverNextQuestion(room, connID, next)
		})
		room.scheduleLocked(connID, stop)
		room.mu.Unlock()
		return nil
	}

	s.notifier.Send(connID, domain.Message{
		Type: domain.EventPlayerFinished,
		Payload: domain.PlayerFinishedPayload{
			Score:          player.Score,
			CorrectAnswers: player.CorrectCount(),
			TotalQuestions: room.totalQuestionsLocked(),
			Answers:        append([]domain.AnswerRecord(nil), player.Answers...),
			Leaderboard:    room.leaderboardLocked(),
		},
	})

	if !room.allFinishedLocked() {
		s.broadcastLocked(room, domain.Message{
			Type: domain.EventPlayerCompletedQuiz,
			Payload: domain.PlayerCompletedPayload{
				Username:    player.Username,
				Score:       player.Score,
				Leaderboard: room.leaderboardLocked(),
			},
		})
		room.mu.Unlock()
		return nil
	}

	results := s.finishLocked(room)
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.afterFinish(ctx, summary, results)
	return nil
}

func (s *Service) broadcastAnswerLocked(room *Room, player *domain.Player, qi int, correct bool, points int) {
	s.broadcastLocked(room, domain.Message{
		Type: domain.EventAnswerSubmitted,
		Payload: domain.AnswerSubmittedPayload{
			Username:      player.Username,
			QuestionIndex: qi,
			IsCorrect:     correct,
			PointsAwarded: points,
			Score:         player.Score,
			Leaderboard:   room.leaderboardLocked(),
		},
	})
}

// deliverNextQuestion runs from the scheduler and re-enters the room's serialization point.
func (s *Service) deliverNextQuestion(room *Room, connID string, next int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.status != domain.StatusPlaying {
		return
	}
	player := room.playerLocked(connID)
	if player == nil || player.Finished || player.CurrentQuestionIndex != next || next >= room.totalQuestionsLocked() {
		return
	}
	s.notifier.Send(connID, domain.Message{
		Type:    domain.EventPlayerNextQuestion,
		Payload: domain.QuestionPayload{Question: room.publicQuestionLocked(next)},
	})
}

// ForceNextQuestion advances every player together in a sync-mode room, ending the
// game after the last question. It is ignored for non-hosts and rooms not playing.
func (s *Service) ForceNextQuestion(ctx context.Context, connID, code string) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	if room.closed || !room.isHostLocked(connID) || room.status != domain.StatusPlaying || room.mode != domain.ModeSync {
		room.mu.Unlock()
		return nil
	}

	if room.currentQuestionIndex < room.totalQuestionsLocked()-1 {
		room.currentQuestionIndex++
		room.questionStartedAt = s.now()
		for _, p := range room.players {
			p.CurrentQuestionIndex = room.currentQuestionIndex
		}
		s.broadcastLocked(room, domain.Message{
			Type:    domain.EventNextQuestion,
			Payload: domain.QuestionPayload{Question: room.publicQuestionLocked(room.currentQuestionIndex)},
		})
		room.mu.Unlock()
		return nil
	}

	now := s.now()
	for _, p := range room.players {
		if !p.Finished {
			finished := now
			p.Finished = true
			p.FinishedAt = &finished
			p.CurrentQuestionIndex = room.totalQuestionsLocked()
		}
	}
	results := s.finishLocked(room)
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.afterFinish(ctx, summary, results)
	return nil
}

// GetRoomState replies room-state to the caller.
func (s *Service) GetRoomState(_ context.Context, connID, code string) (domain.RoomSnapshot, error) {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap := room.snapshotLocked()
	s.notifier.Send(connID, domain.Message{Type: domain.EventRoomState, Payload: snap})
	return snap, nil
}

// LeaveRoom removes the caller from the room. When the host leaves or the room
// empties, the room is closed and deleted.
func (s *Service) LeaveRoom(ctx context.Context, connID, code string) error {
	return s.removePlayer(ctx, connID, code, "player left")
}

// Disconnect runs the same cleanup as LeaveRoom for a lost connection.
func (s *Service) Disconnect(ctx context.Context, connID, code string) error {
	return s.removePlayer(ctx, connID, code, "connection lost")
}

func (s *Service) removePlayer(ctx context.Context, connID, code, reason string) error {
	room, err := s.registry.GetRoom(code)
	if err != nil {
		return nil
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil
	}
	player := room.removePlayerLocked(connID)
	if player == nil {
		room.mu.Unlock()
		return nil
	}

	if player.IsHost || len(room.players) == 0 {
		closeReason := "room empty"
		if player.IsHost {
			closeReason = "host left"
		}
		room.closed = true
		room.stopAllTimersLocked()
		s.broadcastLocked(room, domain.Message{
			Type:    domain.EventRoomClosed,
			Payload: domain.RoomClosedPayload{RoomCode: room.code, Reason: closeReason},
		})
		room.mu.Unlock()

		s.registry.DeleteRoom(ctx, room.code)
		s.logger.Info("room closed", "room_code", room.code, "reason", closeReason, "trigger", reason)
		return nil
	}

	s.broadcastLocked(room, domain.Message{
		Type:    domain.EventPlayerLeft,
		Payload: domain.PlayerLeftPayload{Username: player.Username, Players: room.playerViewsLocked()},
	})

	var results *domain.GameResults
	if room.status == domain.StatusPlaying && room.mode == domain.ModeAsync && room.allFinishedLocked() {
		r := s.finishLocked(room)
		results = &r
	}
	summary := room.summaryLocked()
	room.mu.Unlock()

	s.logger.Info("player left", "room_code", room.code, "username", player.Username, "reason", reason)
	if results != nil {
		s.afterFinish(ctx, summary, *results)
		return nil
	}
	s.registry.sync(ctx, summary)
	return nil
}

// finishLocked ends the game and broadcasts the final results.
func (s *Service) finishLocked(room *Room) domain.GameResults {
	room.status = domain.StatusFinished
	room.finishedAt = s.now()
	room.stopAllTimersLocked()
	results := room.resultsLocked()
	s.broadcastLocked(room, domain.Message{Type: domain.EventGameFinished, Payload: results})
	return results
}

func (s *Service) afterFinish(ctx context.Context, summary domain.RoomSummary, results domain.GameResults) {
	s.registry.sync(ctx, summary)
	winner := ""
	if results.Winner != nil {
		winner = results.Winner.Username
	}
	s.logger.Info("game finished", "room_code", results.RoomCode, "winner", winner, "players", len(results.Results))
	if s.results == nil {
		return
	}
	go func() {
		if err := s.results.RecordResults(context.WithoutCancel(ctx), results); err != nil {
			s.logger.Warn("results not recorded", "room_code", results.RoomCode, "error", err)
		}
	}()
}

func (s *Service) broadcastLocked(room *Room, msg domain.Message) {
	for _, id := range room.recipientsLocked() {
		s.notifier.Send(id, msg)
	}
}

func quizLoadError(err error) error {
	if domain.IsNotFound(err) {
		return err
	}
	return domain.ErrQuizNotFound.Wrap(err)
}

func errMissing(field string) error {
	return fmt.Errorf("%s is required", field)
}
