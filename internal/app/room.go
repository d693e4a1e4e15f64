package app

import (
	"sort"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

const defaultTimeLimit = 30

// Room is the authoritative in-memory state of one quiz session.
// Every field below mu is guarded by it; events lock mu for their whole
// validate, mutate and notify step so no two events on a room interleave.
type Room struct {
	code      string
	createdAt time.Time
	now       func() time.Time

	mu                   sync.Mutex
	name                 string
	quizID               string
	hostConnID           string
	quiz                 domain.QuizData
	timeLimit            int
	mode                 domain.ProgressionMode
	status               domain.RoomStatus
	players              []*domain.Player
	joinSeq              int
	currentQuestionIndex int
	startedAt            time.Time
	questionStartedAt    time.Time
	finishedAt           time.Time
	closed               bool
	timers               map[string]func() bool
}

// CreateRoomParams carries the host's create-room request.
type CreateRoomParams struct {
	RoomName  string
	QuizID    string
	Username  string
	Quiz      domain.QuizData
	TimeLimit int
	Mode      domain.ProgressionMode
}

// NewRoom builds a waiting room whose only player is the host.
func NewRoom(code, hostConnID string, params CreateRoomParams) *Room {
	return NewRoomWithClock(code, hostConnID, params, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code, hostConnID string, params CreateRoomParams, now func() time.Time) *Room {
	created := now()
	timeLimit := params.TimeLimit
	if timeLimit <= 0 {
		timeLimit = defaultTimeLimit
	}
	mode := params.Mode
	if mode == "" {
		mode = domain.ModeAsync
	}
	r := &Room{
		code:       code,
		createdAt:  created,
		now:        now,
		name:       params.RoomName,
		quizID:     params.QuizID,
		hostConnID: hostConnID,
		quiz:       params.Quiz,
		timeLimit:  timeLimit,
		mode:       mode,
		status:     domain.StatusWaiting,
		timers:     make(map[string]func() bool),
	}
	r.addPlayerLocked(hostConnID, params.Username, true)
	return r
}

// Code returns the room code. It never changes.
func (r *Room) Code() string { return r.code }

// CreatedAt returns when the room was created.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Summary returns the discovery view of the room.
func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

// Snapshot returns the public state of the room.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Closed reports whether the room has been deleted.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) addPlayerLocked(connID, username string, host bool) *domain.Player {
	r.joinSeq++
	p := &domain.Player{
		ConnectionID: connID,
		Username:     username,
		IsHost:       host,
		Ready:        host,
		JoinedAt:     r.now(),
		JoinSeq:      r.joinSeq,
	}
	r.players = append(r.players, p)
	return p
}

func (r *Room) removePlayerLocked(connID string) *domain.Player {
	for i, p := range r.players {
		if p.ConnectionID == connID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			r.stopTimerLocked(connID)
			return p
		}
	}
	return nil
}

func (r *Room) playerLocked(connID string) *domain.Player {
	for _, p := range r.players {
		if p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) usernameTakenLocked(username string) bool {
	for _, p := range r.players {
		if p.Username == username {
			return true
		}
	}
	return false
}

func (r *Room) isHostLocked(connID string) bool {
	return connID != "" && connID == r.hostConnID
}

func (r *Room) allReadyLocked() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) allFinishedLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Finished {
			return false
		}
	}
	return true
}

func (r *Room) recipientsLocked() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ConnectionID)
	}
	return ids
}

func (r *Room) totalQuestionsLocked() int {
	return len(r.quiz.Questions)
}

func (r *Room) publicQuestionLocked(i int) domain.PublicQuestion {
	q := r.quiz.Questions[i]
	return domain.PublicQuestion{
		Index:     i,
		Total:     len(r.quiz.Questions),
		Question:  q.Question,
		Options:   append([]string(nil), q.Options...),
		TimeLimit: r.timeLimit,
	}
}

func (r *Room) scheduleLocked(connID string, stop func() bool) {
	r.stopTimerLocked(connID)
	r.timers[connID] = stop
}

func (r *Room) stopTimerLocked(connID string) {
	if stop, ok := r.timers[connID]; ok {
		stop()
		delete(r.timers, connID)
	}
}

func (r *Room) stopAllTimersLocked() {
	for connID := range r.timers {
		r.stopTimerLocked(connID)
	}
}

func (r *Room) summaryLocked() domain.RoomSummary {
	return domain.RoomSummary{
		Code:        r.code,
		Name:        r.name,
		PlayerCount: len(r.players),
		Status:      r.status,
		Topic:       r.quiz.Topic,
		TimeLimit:   r.timeLimit,
	}
}

func (r *Room) playerViewsLocked() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, domain.PlayerView{
			Username:             p.Username,
			IsHost:               p.IsHost,
			Ready:                p.Ready,
			Score:                p.Score,
			CurrentQuestionIndex: p.CurrentQuestionIndex,
			AnswersCount:         len(p.Answers),
			Finished:             p.Finished,
		})
	}
	return views
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	snap := domain.RoomSnapshot{
		Code:                 r.code,
		Name:                 r.name,
		QuizID:               r.quizID,
		Topic:                r.quiz.Topic,
		Status:               r.status,
		Mode:                 r.mode,
		TimeLimit:            r.timeLimit,
		TotalQuestions:       len(r.quiz.Questions),
		CurrentQuestionIndex: r.currentQuestionIndex,
		Players:              r.playerViewsLocked(),
	}
	if host := r.playerLocked(r.hostConnID); host != nil {
		snap.Host = host.Username
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		snap.StartedAt = &started
		qs := r.questionStartedAt
		snap.QuestionStartedAt = &qs
	}
	return snap
}

// rankedLocked orders players by score descending, then finished before
// unfinished, then earlier finish, then join order.
func (r *Room) rankedLocked() []*domain.Player {
	ranked := append([]*domain.Player(nil), r.players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := ranked[i], ranked[j]
		if pi.Score != pj.Score {
			return pi.Score > pj.Score
		}
		if pi.Finished != pj.Finished {
			return pi.Finished
		}
		if pi.FinishedAt != nil && pj.FinishedAt != nil && !pi.FinishedAt.Equal(*pj.FinishedAt) {
			return pi.FinishedAt.Before(*pj.FinishedAt)
		}
		return pi.JoinSeq < pj.JoinSeq
	})
	return ranked
}

func (r *Room) leaderboardLocked() []domain.LeaderboardEntry {
	ranked := r.rankedLocked()
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Username:             p.Username,
			Score:                p.Score,
			AnswersCount:         len(p.Answers),
			CurrentQuestionIndex: p.CurrentQuestionIndex,
			Finished:             p.Finished,
		})
	}
	return entries
}

func (r *Room) resultsLocked() domain.GameResults {
	ranked := r.rankedLocked()
	results := make([]domain.PlayerResult, 0, len(ranked))
	for i, p := range ranked {
		var finishedAt *time.Time
		if p.FinishedAt != nil {
			t := *p.FinishedAt
			finishedAt = &t
		}
		results = append(results, domain.PlayerResult{
			Rank:             i + 1,
			Username:         p.Username,
			Score:            p.Score,
			CorrectAnswers:   p.CorrectCount(),
			TotalAnswers:     len(p.Answers),
			AverageTimeTaken: p.AverageTimeTaken(),
			FinishedAt:       finishedAt,
		})
	}
	out := domain.GameResults{
		RoomCode:       r.code,
		RoomName:       r.name,
		QuizID:         r.quizID,
		Topic:          r.quiz.Topic,
		Mode:           r.mode,
		TotalQuestions: len(r.quiz.Questions),
		StartedAt:      r.startedAt,
		FinishedAt:     r.finishedAt,
		Results:        results,
	}
	if len(results) > 0 {
		winner := results[0]
		out.Winner = &winner
	}
	return out
}
