package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

type WSHandler struct {
	service  *app.Service
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, hub *Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	RoomName  string           `json:"roomName"`
	QuizID    string           `json:"quizId"`
	Username  string           `json:"username"`
	QuizData  *domain.QuizData `json:"quizData"`
	TimeLimit int              `json:"timeLimit"`
	Mode      string           `json:"mode"`
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type updateQuizPayload struct {
	RoomCode  string           `json:"roomCode"`
	QuizID    string           `json:"quizId"`
	QuizData  *domain.QuizData `json:"quizData"`
	TimeLimit *int             `json:"timeLimit"`
}

type startGamePayload struct {
	RoomCode  string `json:"roomCode"`
	TimeLimit *int   `json:"timeLimit"`
}

type submitAnswerPayload struct {
	RoomCode      string        `json:"roomCode"`
	QuestionIndex *int          `json:"questionIndex"`
	Answer        domain.Answer `json:"answer"`
	TimeTaken     float64       `json:"timeTaken"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

// ServeWS upgrades HTTP requests to websockets and feeds client events to the service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn)
	h.hub.register(c)
	go c.writePump(h.logger)
	h.logger.Debug("connection opened", "connection_id", c.id, "remote_addr", r.RemoteAddr)

	ctx := context.WithoutCancel(r.Context())
	defer func() {
		if c.room != "" {
			if err := h.service.Disconnect(ctx, c.id, c.room); err != nil {
				h.logger.Warn("disconnect cleanup failed", "connection_id", c.id, "room_code", c.room, "error", err)
			}
		}
		h.hub.unregister(c)
		h.logger.Debug("connection closed", "connection_id", c.id)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read failed", "connection_id", c.id, "error", err)
			}
			return
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.hub.Send(c.id, domain.ErrorMessage(domain.ErrInvalidPayload.Wrap(err)))
			continue
		}
		if err := h.dispatch(ctx, c, inbound); err != nil {
			h.reportError(c, inbound.Type, err)
		}
	}
}

// dispatch runs one client event. A panic is turned into an internal error for that event only.
func (h *WSHandler) dispatch(ctx context.Context, c *client, in inboundMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("event handler panicked", "connection_id", c.id, "event", in.Type, "panic", rec)
			err = domain.ErrInternal.Wrap(fmt.Errorf("panic: %v", rec))
		}
	}()

	switch in.Type {
	case domain.EventCreateRoom:
		var p createRoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		params := app.CreateRoomParams{
			RoomName:  p.RoomName,
			QuizID:    p.QuizID,
			Username:  p.Username,
			TimeLimit: p.TimeLimit,
			Mode:      domain.ParseMode(p.Mode),
		}
		if p.QuizData != nil {
			params.Quiz = *p.QuizData
		}
		snap, err := h.service.CreateRoom(ctx, c.id, params)
		if err != nil {
			return err
		}
		h.leaveCurrent(ctx, c)
		c.room = snap.Code
		return nil

	case domain.EventJoinRoom:
		var p joinRoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		code := normalize(p.RoomCode)
		if code == "" {
			return domain.ErrInvalidPayload.Wrap(fmt.Errorf("roomCode is required"))
		}
		if code == c.room {
			// Rejoining the same room from the same connection.
			return domain.ErrUsernameTaken
		}
		if err := h.service.JoinRoom(ctx, c.id, code, p.Username); err != nil {
			return err
		}
		h.leaveCurrent(ctx, c)
		c.room = code
		return nil

	case domain.EventUpdateQuiz:
		var p updateQuizPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.service.UpdateQuiz(ctx, c.id, h.roomFor(c, p.RoomCode), app.UpdateQuizParams{
			QuizID:    p.QuizID,
			Quiz:      p.QuizData,
			TimeLimit: p.TimeLimit,
		})

	case domain.EventPlayerReady:
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.service.PlayerReady(ctx, c.id, h.roomFor(c, p.RoomCode))

	case domain.EventStartGame:
		var p startGamePayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.service.StartGame(ctx, c.id, h.roomFor(c, p.RoomCode), p.TimeLimit)

	case domain.EventSubmitAnswer:
		var p submitAnswerPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		if p.QuestionIndex == nil {
			return domain.ErrInvalidPayload.Wrap(fmt.Errorf("questionIndex is required"))
		}
		return h.service.SubmitAnswer(ctx, c.id, h.roomFor(c, p.RoomCode), app.SubmitAnswerParams{
			QuestionIndex: *p.QuestionIndex,
			Answer:        p.Answer,
			TimeTaken:     p.TimeTaken,
		})

	case domain.EventForceNextQuestion:
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.service.ForceNextQuestion(ctx, c.id, h.roomFor(c, p.RoomCode))

	case domain.EventGetRoomState:
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		_, err := h.service.GetRoomState(ctx, c.id, h.roomFor(c, p.RoomCode))
		return err

	case domain.EventLeaveRoom:
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		code := h.roomFor(c, p.RoomCode)
		if code == c.room {
			c.room = ""
		}
		return h.service.LeaveRoom(ctx, c.id, code)

	default:
		return domain.ErrUnknownEvent
	}
}

// leaveCurrent drops the connection from its previous room once it has created or joined another.
// A rejected create or join leaves the previous room untouched.
func (h *WSHandler) leaveCurrent(ctx context.Context, c *client) {
	if c.room == "" {
		return
	}
	code := c.room
	c.room = ""
	if err := h.service.LeaveRoom(ctx, c.id, code); err != nil {
		h.logger.Warn("leave previous room failed", "connection_id", c.id, "room_code", code, "error", err)
	}
}

func (h *WSHandler) roomFor(c *client, code string) string {
	if code = normalize(code); code != "" {
		return code
	}
	return c.room
}

func (h *WSHandler) reportError(c *client, event string, err error) {
	de := domain.AsError(err)
	if de.Kind == domain.KindInternal {
		h.logger.Error("event failed", "connection_id", c.id, "event", event, "error", err)
	} else {
		h.logger.Debug("event rejected", "connection_id", c.id, "event", event, "code", de.Code)
	}
	h.hub.Send(c.id, domain.ErrorMessage(de))
}

// decode treats a missing payload as an empty object.
func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.ErrInvalidPayload.Wrap(err)
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
