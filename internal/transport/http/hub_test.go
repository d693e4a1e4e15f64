package http

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

func TestHubSendIsNonBlocking(t *testing.T) {
	hub := NewHub(nil)
	c := newClient("conn-1", nil)
	hub.register(c)

	// Unknown connections are ignored.
	hub.Send("nobody", domain.Message{Type: domain.EventRoomState})

	for i := 0; i < sendBuffer+10; i++ {
		hub.Send("conn-1", domain.Message{Type: domain.EventRoomState, Payload: i})
	}
	require.Len(t, c.send, sendBuffer)

	var first domain.Message
	require.NoError(t, json.Unmarshal(<-c.send, &first))
	assert.Equal(t, domain.EventRoomState, first.Type)
	assert.EqualValues(t, 0, first.Payload)

	hub.unregister(c)
	assert.NotPanics(t, func() {
		hub.Send("conn-1", domain.Message{Type: domain.EventRoomState})
		c.enqueue([]byte("late"))
		c.close()
	})
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(nil)
	a, b := newClient("a", nil), newClient("b", nil)
	hub.register(a)
	hub.register(b)

	hub.CloseAll()
	for _, c := range []*client{a, b} {
		for range c.send {
		}
		assert.True(t, c.closed)
	}
}
