package domain

import "time"

// Inbound event types.
const (
	EventCreateRoom        = "create-room"
	EventJoinRoom          = "join-room"
	EventUpdateQuiz        = "update-quiz"
	EventPlayerReady       = "player-ready"
	EventStartGame         = "start-game"
	EventSubmitAnswer      = "submit-answer"
	EventForceNextQuestion = "force-next-question"
	EventGetRoomState      = "get-room-state"
	EventLeaveRoom         = "leave-room"
)

// Outbound event types.
const (
	EventRoomCreated         = "room-created"
	EventRoomJoined          = "room-joined"
	EventPlayerJoined        = "player-joined"
	EventPlayerReadyUpdate   = "player-ready-update"
	EventAllPlayersReady     = "all-players-ready"
	EventQuizUpdated         = "quiz-updated"
	EventTimeLimitUpdated    = "time-limit-updated"
	EventGameStarted         = "game-started"
	EventAnswerSubmitted     = "answer-submitted"
	EventPlayerNextQuestion  = "player-next-question"
	EventPlayerFinished      = "player-finished"
	EventPlayerCompletedQuiz = "player-completed-quiz"
	EventGameFinished        = "game-finished"
	EventNextQuestion        = "next-question"
	EventRoomState           = "room-state"
	EventPlayerLeft          = "player-left"
	EventRoomClosed          = "room-closed"
	EventError               = "error"
)

// Message is one outbound notification.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type RoomCreatedPayload struct {
	RoomCode string       `json:"roomCode"`
	Room     RoomSnapshot `json:"room"`
}

type RoomJoinedPayload struct {
	RoomCode string       `json:"roomCode"`
	Room     RoomSnapshot `json:"room"`
}

type PlayerJoinedPayload struct {
	Username string       `json:"username"`
	Players  []PlayerView `json:"players"`
}

type PlayerReadyPayload struct {
	Username string       `json:"username"`
	Ready    bool         `json:"ready"`
	Players  []PlayerView `json:"players"`
}

type AllPlayersReadyPayload struct {
	RoomCode string `json:"roomCode"`
}

type QuizUpdatedPayload struct {
	QuizID         string `json:"quizId,omitempty"`
	Topic          string `json:"topic"`
	TotalQuestions int    `json:"totalQuestions"`
}

type TimeLimitUpdatedPayload struct {
	TimeLimit int `json:"timeLimit"`
}

type GameStartedPayload struct {
	Mode      ProgressionMode `json:"mode"`
	TimeLimit int             `json:"timeLimit"`
	StartedAt time.Time       `json:"startedAt"`
	Question  PublicQuestion  `json:"question"`
	Room      RoomSnapshot    `json:"room"`
}

type AnswerSubmittedPayload struct {
	Username      string             `json:"username"`
	QuestionIndex int                `json:"questionIndex"`
	IsCorrect     bool               `json:"isCorrect"`
	PointsAwarded int                `json:"pointsAwarded"`
	Score         int                `json:"score"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

type QuestionPayload struct {
	Question PublicQuestion `json:"question"`
}

type PlayerFinishedPayload struct {
	Score          int                `json:"score"`
	CorrectAnswers int                `json:"correctAnswers"`
	TotalQuestions int                `json:"totalQuestions"`
	Answers        []AnswerRecord     `json:"answers"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}

type PlayerCompletedPayload struct {
	Username    string             `json:"username"`
	Score       int                `json:"score"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type PlayerLeftPayload struct {
	Username string       `json:"username"`
	Players  []PlayerView `json:"players"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorMessage converts err into an outbound error notification.
func ErrorMessage(err error) Message {
	de := AsError(err)
	msg := de.Message
	if de.Kind == KindInternal && de.Code == ErrInternal.Code {
		msg = ErrInternal.Message
	}
	return Message{Type: EventError, Payload: ErrorPayload{Code: de.Code, Message: msg}}
}
