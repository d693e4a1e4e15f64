package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the protocol layer.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindInternal     Kind = "internal"
)

// Error is a structured failure reported back to the connection that triggered it.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an Error with the given classification.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches cause to a copy of e.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

var (
	// ErrRoomNotFound is returned when no live room has the requested code.
	ErrRoomNotFound = NewError(KindNotFound, "ROOM_NOT_FOUND", "room not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = NewError(KindNotFound, "QUIZ_NOT_FOUND", "quiz not found")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = NewError(KindForbidden, "NOT_HOST", "only the host can do that")
	// ErrUsernameTaken is returned when the username is already used in the room.
	ErrUsernameTaken = NewError(KindConflict, "USERNAME_TAKEN", "username already taken in this room")
	// ErrGameInProgress is returned when joining a room that already left the waiting state.
	ErrGameInProgress = NewError(KindConflict, "GAME_IN_PROGRESS", "game already in progress")
	// ErrNoQuizSelected is returned when starting a game without questions.
	ErrNoQuizSelected = NewError(KindInvalidState, "NO_QUIZ_SELECTED", "no quiz selected")
	// ErrNotWaiting is returned when the quiz is changed after the game started.
	ErrNotWaiting = NewError(KindInvalidState, "GAME_ALREADY_STARTED", "game already started")
	// ErrInvalidPayload is returned for malformed or incomplete event payloads.
	ErrInvalidPayload = NewError(KindInvalidInput, "INVALID_PAYLOAD", "invalid payload")
	// ErrUnknownEvent is returned for unsupported inbound event types.
	ErrUnknownEvent = NewError(KindInvalidInput, "UNKNOWN_EVENT", "unsupported event type")
	// ErrRoomCodeExhausted means no free room code was found within the attempt budget.
	ErrRoomCodeExhausted = NewError(KindInternal, "ROOM_CODE_EXHAUSTED", "could not allocate a room code")
	// ErrInternal is the generic failure notice for unexpected errors.
	ErrInternal = NewError(KindInternal, "INTERNAL_ERROR", "internal error")
)

// AsError extracts a *Error from err, falling back to ErrInternal.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal.Wrap(err)
}

// IsNotFound reports whether err is classified as NotFound.
func IsNotFound(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == KindNotFound
}
