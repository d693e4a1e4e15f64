package domain

import "time"

// RoomStatus moves strictly forward: waiting → playing → finished.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// ProgressionMode selects how players move through questions. It is fixed per room.
type ProgressionMode string

const (
	// ModeAsync lets every player advance on their own as they answer.
	ModeAsync ProgressionMode = "async"
	// ModeSync has the host advance everyone together with force-next-question.
	ModeSync ProgressionMode = "sync"
)

// ParseMode maps client input to a mode, defaulting to async.
func ParseMode(raw string) ProgressionMode {
	if ProgressionMode(raw) == ModeSync {
		return ModeSync
	}
	return ModeAsync
}

// Question models a multiple-choice question.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer Answer   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizData is the quiz content supplied by the host or the quiz provider.
type QuizData struct {
	ID        string     `json:"id,omitempty"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
}

// PublicQuestion is a question as sent to players, without the correct answer.
type PublicQuestion struct {
	Index     int      `json:"questionIndex"`
	Total     int      `json:"totalQuestions"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

// AnswerRecord is one scored submission.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	Answer        Answer    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	TimeTaken     float64   `json:"timeTaken"`
	PointsAwarded int       `json:"pointsAwarded"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Player is one connection's participation in a room.
type Player struct {
	ConnectionID         string
	Username             string
	IsHost               bool
	Ready                bool
	Score                int
	Answers              []AnswerRecord
	CurrentQuestionIndex int
	Finished             bool
	FinishedAt           *time.Time
	JoinedAt             time.Time
	JoinSeq              int
}

// HasAnswered reports whether an answer for questionIndex is already recorded.
func (p *Player) HasAnswered(questionIndex int) bool {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

// CorrectCount returns the number of correct answers.
func (p *Player) CorrectCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// AverageTimeTaken returns the mean reported time across all answers.
func (p *Player) AverageTimeTaken() float64 {
	if len(p.Answers) == 0 {
		return 0
	}
	var total float64
	for _, a := range p.Answers {
		total += a.TimeTaken
	}
	return total / float64(len(p.Answers))
}

// PlayerView is the public projection of a player.
type PlayerView struct {
	Username             string `json:"username"`
	IsHost               bool   `json:"isHost"`
	Ready                bool   `json:"ready"`
	Score                int    `json:"score"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	AnswersCount         int    `json:"answersCount"`
	Finished             bool   `json:"finished"`
}

// LeaderboardEntry is one row of a live leaderboard.
type LeaderboardEntry struct {
	Username             string `json:"username"`
	Score                int    `json:"score"`
	AnswersCount         int    `json:"answersCount"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	Finished             bool   `json:"finished"`
}

// PlayerResult is one row of the final results.
type PlayerResult struct {
	Rank             int        `json:"rank"`
	Username         string     `json:"username"`
	Score            int        `json:"score"`
	CorrectAnswers   int        `json:"correctAnswers"`
	TotalAnswers     int        `json:"totalAnswers"`
	AverageTimeTaken float64    `json:"averageTimeTaken"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// GameResults is the aggregate outcome of a finished game.
type GameResults struct {
	RoomCode       string          `json:"roomCode"`
	RoomName       string          `json:"roomName"`
	QuizID         string          `json:"quizId,omitempty"`
	Topic          string          `json:"topic"`
	Mode           ProgressionMode `json:"mode"`
	TotalQuestions int             `json:"totalQuestions"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
	Results        []PlayerResult  `json:"results"`
	Winner         *PlayerResult   `json:"winner,omitempty"`
}

// RoomSummary is the discovery view of a room. It never carries quiz content or player details.
type RoomSummary struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	PlayerCount int        `json:"playerCount"`
	Status      RoomStatus `json:"status"`
	Topic       string     `json:"topic"`
	TimeLimit   int        `json:"timeLimit"`
}

// RoomSnapshot is the full public state of a room.
type RoomSnapshot struct {
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	QuizID               string          `json:"quizId,omitempty"`
	Topic                string          `json:"topic"`
	Status               RoomStatus      `json:"status"`
	Mode                 ProgressionMode `json:"mode"`
	Host                 string          `json:"host"`
	TimeLimit            int             `json:"timeLimit"`
	TotalQuestions       int             `json:"totalQuestions"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	StartedAt            *time.Time      `json:"startedAt,omitempty"`
	QuestionStartedAt    *time.Time      `json:"questionStartedAt,omitempty"`
	Players              []PlayerView    `json:"players"`
}
