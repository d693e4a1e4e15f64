package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"quiz-room-service/internal/domain"
)

const DefaultSubject = "quiz.results"

// Publisher is the subset of *nats.Conn the result publisher needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// ResultPublisher announces finished games on {subject}.{roomCode}.
type ResultPublisher struct {
	conn    Publisher
	subject string
}

func NewResultPublisher(conn Publisher, subject string) *ResultPublisher {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultSubject
	}
	return &ResultPublisher{conn: conn, subject: subject}
}

func (p *ResultPublisher) RecordResults(ctx context.Context, results domain.GameResults) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	msg := nats.NewMsg(p.Subject(results.RoomCode))
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Quiz-Room", results.RoomCode)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	return nil
}

// Subject returns the subject results of roomCode are published on.
func (p *ResultPublisher) Subject(roomCode string) string {
	return p.subject + "." + roomCode
}

// Connect dials NATS with a client name and unlimited reconnects.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
}
