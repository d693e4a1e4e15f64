package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// SummaryLister reads room summaries published by every instance.
type SummaryLister interface {
	Summaries(ctx context.Context) ([]domain.RoomSummary, error)
}

// ResultHistory reads recorded results of past games.
type ResultHistory interface {
	RecentResults(ctx context.Context, roomCode string, limit int) ([]domain.GameResults, error)
}

// RoomsHandler serves read-only room discovery over HTTP.
type RoomsHandler struct {
	registry *app.Registry
	logger   *slog.Logger
	shared   SummaryLister
	history  ResultHistory
}

// RoomsOption customizes a RoomsHandler.
type RoomsOption func(*RoomsHandler)

// WithSharedSummaries lists rooms from a store shared by all instances instead of this process only.
func WithSharedSummaries(l SummaryLister) RoomsOption {
	return func(h *RoomsHandler) { h.shared = l }
}

// WithResultHistory enables GET /api/rooms/{code}/results.
func WithResultHistory(r ResultHistory) RoomsOption {
	return func(h *RoomsHandler) { h.history = r }
}

func NewRoomsHandler(registry *app.Registry, logger *slog.Logger, opts ...RoomsOption) *RoomsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &RoomsHandler{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type roomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type resultsResponse struct {
	Games []domain.GameResults `json:"games"`
}

// List returns the summaries of all live rooms.
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.shared != nil {
		rooms, err := h.shared.Summaries(r.Context())
		if err == nil {
			sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
			h.writeJSON(w, http.StatusOK, roomsResponse{Rooms: rooms})
			return
		}
		h.logger.Warn("shared room listing failed, serving local rooms", "error", err)
	}
	h.writeJSON(w, http.StatusOK, roomsResponse{Rooms: h.registry.ListRooms()})
}

// Results returns the most recent recorded games of a room code, newest first.
func (h *RoomsHandler) Results(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusNotFound, domain.ErrorPayload{Code: "RESULTS_DISABLED", Message: "result history is not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := h.history.RecentResults(r.Context(), normalize(mux.Vars(r)["code"]), limit)
	if err != nil {
		h.logger.Error("load results failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, domain.ErrorPayload{Code: domain.ErrInternal.Code, Message: domain.ErrInternal.Message})
		return
	}
	if games == nil {
		games = []domain.GameResults{}
	}
	h.writeJSON(w, http.StatusOK, resultsResponse{Games: games})
}

// Get returns a room's public snapshot. Quiz answers are never included.
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.GetRoom(mux.Vars(r)["code"])
	if err != nil || room.Closed() {
		h.writeJSON(w, http.StatusNotFound, domain.ErrorPayload{
			Code:    domain.ErrRoomNotFound.Code,
			Message: domain.ErrRoomNotFound.Message,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, room.Snapshot())
}

func (h *RoomsHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("write response failed", "error", err)
	}
}

// NewRouter mounts the health check, discovery API and WebSocket endpoint.
func NewRouter(ws *WSHandler, rooms *RoomsHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", rooms.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}", rooms.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}/results", rooms.Results).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)
	return r
}
