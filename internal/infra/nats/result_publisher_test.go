package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *recordingConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestResultPublisherPublishesPerRoomSubject(t *testing.T) {
	conn := &recordingConn{}
	pub := NewResultPublisher(conn, "")

	finished := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	results := domain.GameResults{
		RoomCode:   "ABC123",
		RoomName:   "Friday",
		Mode:       domain.ModeAsync,
		FinishedAt: finished,
		Results: []domain.PlayerResult{
			{Rank: 1, Username: "alice", Score: 250},
		},
	}
	require.NoError(t, pub.RecordResults(context.Background(), results))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "quiz.results.ABC123", msg.Subject)
	assert.Equal(t, "ABC123", msg.Header.Get("Quiz-Room"))

	var decoded domain.GameResults
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "alice", decoded.Results[0].Username)
	assert.True(t, decoded.FinishedAt.Equal(finished))
}

func TestResultPublisherCustomSubject(t *testing.T) {
	pub := NewResultPublisher(&recordingConn{}, "games.done.")
	assert.Equal(t, "games.done.ROOM01", pub.Subject("ROOM01"))
}

func TestResultPublisherErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("connection closed")}
	pub := NewResultPublisher(conn, "")
	err := pub.RecordResults(context.Background(), domain.GameResults{RoomCode: "X"})
	assert.ErrorContains(t, err, "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.RecordResults(ctx, domain.GameResults{RoomCode: "X"}), context.Canceled)
}
