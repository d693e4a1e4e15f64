package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

const roomIndexKey = "quiz:rooms"

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Room state lives in a local map; Redis only reserves codes and
//     publishes summaries for discovery.
//   - SETNX on quiz:room:{code} keeps codes unique across instances that share
//     the same Redis.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RoomStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		logger: logger,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Insert(ctx context.Context, room *app.Room) (bool, error) {
	code := room.Code()
	summary := room.Summary()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[code]; taken {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, s.key(code), room.CreatedAt().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	s.rooms[code] = room
	s.writeSummary(ctx, summary)
	return true, nil
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(ctx context.Context, code string) {
	s.mu.Lock()
	_, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if !ok {
		return
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(code))
	pipe.HDel(ctx, roomIndexKey, code)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("release room code failed", "room_code", code, "error", err)
	}
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

// Sync refreshes the discovery entry and extends the code reservation.
func (s *RoomStore) Sync(ctx context.Context, summary domain.RoomSummary) {
	s.mu.RLock()
	_, ok := s.rooms[summary.Code]
	s.mu.RUnlock()
	if !ok {
		return
	}
	s.writeSummary(ctx, summary)
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key(summary.Code), s.ttl).Err(); err != nil {
			s.logger.Warn("refresh room ttl failed", "room_code", summary.Code, "error", err)
		}
	}
}

// Summaries reads the shared discovery index. Entries that fail to decode are skipped.
// Entries whose code reservation has expired belong to an instance that went away
// without cleaning up; they are skipped and pruned from the index.
func (s *RoomStore) Summaries(ctx context.Context) ([]domain.RoomSummary, error) {
	raw, err := s.client.HGetAll(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []domain.RoomSummary{}, nil
	}

	pipe := s.client.Pipeline()
	live := make(map[string]*redis.IntCmd, len(raw))
	for code := range raw {
		live[code] = pipe.Exists(ctx, s.key(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make([]domain.RoomSummary, 0, len(raw))
	var stale []string
	for code, value := range raw {
		if live[code].Val() == 0 {
			stale = append(stale, code)
			continue
		}
		var summary domain.RoomSummary
		if err := json.Unmarshal([]byte(value), &summary); err != nil {
			s.logger.Warn("skip malformed room summary", "room_code", code, "error", err)
			continue
		}
		out = append(out, summary)
	}
	if len(stale) > 0 {
		if err := s.client.HDel(ctx, roomIndexKey, stale...).Err(); err != nil {
			s.logger.Warn("prune stale room summaries failed", "count", len(stale), "error", err)
		}
	}
	return out, nil
}

func (s *RoomStore) writeSummary(ctx context.Context, summary domain.RoomSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.client.HSet(ctx, roomIndexKey, summary.Code, data).Err(); err != nil {
		s.logger.Warn("publish room summary failed", "room_code", summary.Code, "error", err)
	}
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}
