package app_test

import (
	"sync"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

type sent struct {
	to  string
	msg domain.Message
}

// recorder is a Notifier that keeps every outbound message.
type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Send(connectionID string, msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: connectionID, msg: msg})
}

// of returns the messages of type typ delivered to conn, oldest first.
func (r *recorder) of(conn, typ string) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, s := range r.msgs {
		if s.to == conn && s.msg.Type == typ {
			out = append(out, s.msg)
		}
	}
	return out
}

func (r *recorder) last(conn, typ string) (domain.Message, bool) {
	msgs := r.of(conn, typ)
	if len(msgs) == 0 {
		return domain.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// manualScheduler queues callbacks until Flush so tests control when delayed work runs.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*task
	delays  []time.Duration
}

type task struct {
	f       func()
	stopped bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Flush runs every callback that was not stopped.
func (s *manualScheduler) Flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range pending {
		s.mu.Lock()
		run := !t.stopped
		t.stopped = true
		s.mu.Unlock()
		if run {
			t.f()
		}
	}
}

// clock advances by one second on every call.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	service  *app.Service
	notes    *recorder
	sched    *manualScheduler
	registry *app.Registry
}

func newFixture(opts ...app.Option) *fixture {
	notes := &recorder{}
	sched := &manualScheduler{}
	clk := newClock()
	registry := app.NewRegistry(memory.NewRoomStore(), app.WithRoomFactory(
		func(code, hostConnID string, params app.CreateRoomParams) *app.Room {
			return app.NewRoomWithClock(code, hostConnID, params, clk.Now)
		},
	))
	base := []app.Option{app.WithScheduler(sched), app.WithClock(clk.Now)}
	service := app.NewService(registry, notes, append(base, opts...)...)
	return &fixture{service: service, notes: notes, sched: sched, registry: registry}
}

func threeQuestionQuiz() domain.QuizData {
	return domain.QuizData{
		ID:    "trivia-1",
		Topic: "General",
		Questions: []domain.Question{
			{Question: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: domain.IndexAnswer(1)},
			{Question: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: domain.TextAnswer("Paris")},
			{Question: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectAnswer: domain.IndexAnswer(1)},
		},
	}
}

func intPtr(v int) *int { return &v }
