package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

func TestRoomStoreReservesAndReleasesCodes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewRoomStore(newClient(mr), time.Minute, nil)

	room := app.NewRoom("ABC123", "conn-1", app.CreateRoomParams{RoomName: "Trivia", Username: "host"})
	ok, err := store.Insert(ctx, room)
	if err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}
	if !mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected code reservation key")
	}
	if got := mr.TTL("quiz:room:ABC123"); got != time.Minute {
		t.Fatalf("expected ttl of one minute, got %v", got)
	}
	if mr.HGet(roomIndexKey, "ABC123") == "" {
		t.Fatalf("expected summary in discovery index")
	}

	store.Delete(ctx, "ABC123")
	if mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected reservation to be released")
	}
	if mr.HGet(roomIndexKey, "ABC123") != "" {
		t.Fatalf("expected summary to be removed")
	}
	if _, ok := store.Get("ABC123"); ok {
		t.Fatalf("expected room to be gone")
	}
}

func TestRoomStoreRejectsCodeHeldByAnotherInstance(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	first := NewRoomStore(newClient(mr), time.Minute, nil)
	second := NewRoomStore(newClient(mr), time.Minute, nil)

	ok, err := first.Insert(ctx, app.NewRoom("ZZZ999", "a", app.CreateRoomParams{Username: "alice"}))
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	ok, err = second.Insert(ctx, app.NewRoom("ZZZ999", "b", app.CreateRoomParams{Username: "bob"}))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if ok {
		t.Fatalf("expected collision across instances")
	}
}

func TestRoomStoreSyncPublishesSummary(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewRoomStore(newClient(mr), time.Minute, nil)
	if _, err := store.Insert(ctx, app.NewRoom("ROOM01", "conn-1", app.CreateRoomParams{RoomName: "Friday", Username: "host"})); err != nil {
		t.Fatalf("insert: %v", err)
	}

	store.Sync(ctx, domain.RoomSummary{Code: "ROOM01", Name: "Friday", PlayerCount: 3, Status: domain.StatusPlaying})
	// Unknown rooms are not published.
	store.Sync(ctx, domain.RoomSummary{Code: "GHOST1", Name: "Ghost"})

	summaries, err := store.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	if summaries[0].PlayerCount != 3 || summaries[0].Status != domain.StatusPlaying {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
}

func TestRoomStoreSummariesDropExpiredRooms(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	crashed := NewRoomStore(newClient(mr), time.Minute, nil)
	if _, err := crashed.Insert(ctx, app.NewRoom("DEAD01", "a", app.CreateRoomParams{Username: "alice"})); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	alive := NewRoomStore(newClient(mr), time.Minute, nil)
	if _, err := alive.Insert(ctx, app.NewRoom("LIVE01", "b", app.CreateRoomParams{Username: "bob"})); err != nil {
		t.Fatalf("insert: %v", err)
	}

	summaries, err := alive.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Code != "LIVE01" {
		t.Fatalf("expected only the live room, got %+v", summaries)
	}
	if mr.HGet(roomIndexKey, "DEAD01") != "" {
		t.Fatalf("expected expired summary to be pruned")
	}
}
