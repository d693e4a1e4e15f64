package app

import (
	"context"
	"crypto/rand"
	"math/big"
	"sort"
	"strings"

	"quiz-room-service/internal/domain"
)

// RoomRepository abstracts where live rooms are indexed (in-memory, Redis-backed, etc).
type RoomRepository interface {
	// Insert registers room under its code. It reports false if the code is already taken.
	Insert(ctx context.Context, room *Room) (bool, error)
	Get(code string) (*Room, bool)
	Delete(ctx context.Context, code string)
	List() []*Room
	// Sync publishes a changed summary for discovery. Best effort.
	Sync(ctx context.Context, summary domain.RoomSummary)
}

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeLength  = 6
	defaultCodeAttempt = 10
)

// CodeGenerator returns a candidate room code.
type CodeGenerator func() (string, error)

// RandomCodes draws fixed-length alphanumeric codes uniformly from crypto/rand.
func RandomCodes(length int) CodeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	return func() (string, error) {
		b := make([]byte, length)
		for i := range b {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b[i] = codeAlphabet[n.Int64()]
		}
		return string(b), nil
	}
}

// Registry is the process-wide table of active rooms.
type Registry struct {
	rooms    RoomRepository
	codes    CodeGenerator
	attempts int
	newRoom  func(code, hostConnID string, params CreateRoomParams) *Room
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithCodeGenerator replaces the room code source.
func WithCodeGenerator(gen CodeGenerator) RegistryOption {
	return func(r *Registry) { r.codes = gen }
}

// WithCodeAttempts bounds how many codes are tried before giving up.
func WithCodeAttempts(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithRoomFactory overrides room construction, e.g. to inject a clock.
func WithRoomFactory(f func(code, hostConnID string, params CreateRoomParams) *Room) RegistryOption {
	return func(r *Registry) { r.newRoom = f }
}

func NewRegistry(rooms RoomRepository, opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:    rooms,
		codes:    RandomCodes(defaultCodeLength),
		attempts: defaultCodeAttempt,
		newRoom:  NewRoom,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom allocates a free code and registers a new waiting room with the host as sole player.
func (r *Registry) CreateRoom(ctx context.Context, hostConnID string, params CreateRoomParams) (*Room, error) {
	for i := 0; i < r.attempts; i++ {
		code, err := r.codes()
		if err != nil {
			return nil, domain.ErrRoomCodeExhausted.Wrap(err)
		}
		room := r.newRoom(code, hostConnID, params)
		ok, err := r.rooms.Insert(ctx, room)
		if err != nil {
			return nil, domain.ErrInternal.Wrap(err)
		}
		if ok {
			return room, nil
		}
	}
	return nil, domain.ErrRoomCodeExhausted
}

// GetRoom looks up a live room by code, case-insensitively.
func (r *Registry) GetRoom(code string) (*Room, error) {
	room, ok := r.rooms.Get(normalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// DeleteRoom removes a room. Deleting an unknown code is a no-op.
func (r *Registry) DeleteRoom(ctx context.Context, code string) {
	r.rooms.Delete(ctx, normalizeCode(code))
}

// ListRooms returns discovery summaries, oldest room first.
func (r *Registry) ListRooms() []domain.RoomSummary {
	rooms := r.rooms.List()
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt().Before(rooms[j].CreatedAt())
	})
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if room.Closed() {
			continue
		}
		out = append(out, room.Summary())
	}
	return out
}

func (r *Registry) sync(ctx context.Context, summary domain.RoomSummary) {
	r.rooms.Sync(ctx, summary)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
