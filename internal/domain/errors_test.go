package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("join: %w", ErrRoomNotFound.Wrap(errors.New("redis miss")))
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.NotErrorIs(t, err, ErrQuizNotFound)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "ROOM_NOT_FOUND", AsError(err).Code)
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage(ErrUsernameTaken)
	assert.Equal(t, EventError, msg.Type)
	assert.Equal(t, ErrorPayload{Code: "USERNAME_TAKEN", Message: ErrUsernameTaken.Message}, msg.Payload)

	msg = ErrorMessage(errors.New("pq: connection refused"))
	assert.Equal(t, ErrorPayload{Code: "INTERNAL_ERROR", Message: "internal error"}, msg.Payload)
}
