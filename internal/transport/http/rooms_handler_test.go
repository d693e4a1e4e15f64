package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func TestRoomsHandler(t *testing.T) {
	hub := NewHub(nil)
	registry := app.NewRegistry(memory.NewRoomStore())
	service := app.NewService(registry, hub)
	router := NewRouter(NewWSHandler(service, hub, nil), NewRoomsHandler(registry, nil))

	snap, err := service.CreateRoom(context.Background(), "conn-1", app.CreateRoomParams{
		RoomName: "Friday",
		Username: "host",
		Quiz: domain.QuizData{
			Topic: "Space",
			Questions: []domain.Question{
				{Question: "Closest star?", Options: []string{"Sun", "Vega"}, CorrectAnswer: domain.IndexAnswer(0)},
			},
		},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list roomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, snap.Code, list.Rooms[0].Code)
	assert.Equal(t, "Space", list.Rooms[0].Topic)
	assert.Equal(t, 1, list.Rooms[0].PlayerCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+snap.Code, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctAnswer")
	var got domain.RoomSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "host", got.Host)
	assert.Equal(t, domain.StatusWaiting, got.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/ZZZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

type staticSummaries []domain.RoomSummary

func (s staticSummaries) Summaries(context.Context) ([]domain.RoomSummary, error) {
	return append([]domain.RoomSummary(nil), s...), nil
}

type staticHistory map[string][]domain.GameResults

func (h staticHistory) RecentResults(_ context.Context, code string, _ int) ([]domain.GameResults, error) {
	return h[code], nil
}

func TestRoomsHandlerSharedListingAndHistory(t *testing.T) {
	hub := NewHub(nil)
	registry := app.NewRegistry(memory.NewRoomStore())
	service := app.NewService(registry, hub)
	rooms := NewRoomsHandler(registry, nil,
		WithSharedSummaries(staticSummaries{{Code: "ZZZ999", Name: "Remote"}, {Code: "AAA111", Name: "Other node"}}),
		WithResultHistory(staticHistory{"ABC123": {{RoomCode: "ABC123", RoomName: "Friday"}}}),
	)
	router := NewRouter(NewWSHandler(service, hub, nil), rooms)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	var list roomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 2)
	assert.Equal(t, "AAA111", list.Rooms[0].Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/abc123/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var history resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Games, 1)
	assert.Equal(t, "Friday", history.Games[0].RoomName)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/NONE00/results", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Empty(t, history.Games)
}
