package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/codingSofie/partykit/internal/models"
	"github.com/codingSofie/partykit/internal/store"
)

var passwordPattern = regexp.MustCompile(`^[0-9A-Z]{4}$`)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

// Registry maps 4-character passwords to live rooms. Passwords are unique
// only among rooms that currently exist; deleting a room frees its password.
type Registry struct {
	store      store.Store
	clock      clockwork.Clock
	maxPlayers int
}

func NewRegistry(st store.Store, clock clockwork.Clock, maxPlayers int) *Registry {
	return &Registry{store: st, clock: clock, maxPlayers: maxPlayers}
}

// NormalizePassword uppercases and trims the password, then validates its
// format.
func NormalizePassword(password string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(password))
	if !passwordPattern.MatchString(up) {
		return "", ErrInvalidPassword
	}
	return up, nil
}

// FindOrCreate returns the room holding the password, creating it when
// absent. Two concurrent callers racing on an unused password both succeed:
// the loser of the create hits the uniqueness constraint and retries the
// lookup.
func (r *Registry) FindOrCreate(ctx context.Context, password string) (*models.Room, bool, error) {
	pw, err := NormalizePassword(password)
	if err != nil {
		return nil, false, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		room, err := r.store.RoomByPassword(ctx, pw)
		if err == nil {
			return room, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("find room: %w", err)
		}
		room, err = r.create(ctx, pw)
		if err == nil {
			return room, true, nil
		}
		if !errors.Is(err, store.ErrPasswordTaken) {
			return nil, false, err
		}
		// lost the create race, loop back to the lookup
	}
	return nil, false, ErrInternal
}

// Create is the strict variant used by the HTTP create-room endpoint: it
// fails when the password is already in use.
func (r *Registry) Create(ctx context.Context, password string) (*models.Room, error) {
	pw, err := NormalizePassword(password)
	if err != nil {
		return nil, err
	}
	room, err := r.create(ctx, pw)
	if errors.Is(err, store.ErrPasswordTaken) {
		return nil, ErrPasswordTaken
	}
	return room, err
}

func (r *Registry) create(ctx context.Context, password string) (*models.Room, error) {
	code, err := r.generateCode(ctx)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	room := &models.Room{
		ID:           uuid.NewString(),
		Code:         code,
		Password:     password,
		MaxPlayers:   r.maxPlayers,
		CurrentPhase: models.PhaseWaiting,
		RoundNumber:  0,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := r.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("room", room.ID).Str("password", password).Msg("room created")
	return room, nil
}

// Delete removes the room and, via the store, its players and click logs.
// Idempotent: deleting a missing room is not an error.
func (r *Registry) Delete(ctx context.Context, roomID string) error {
	if err := r.store.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// SweepInactive deletes every room whose last activity is older than
// now - timeout and returns the IDs of the rooms it removed.
func (r *Registry) SweepInactive(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	rooms, err := r.store.InactiveRooms(ctx, now.Add(-timeout))
	if err != nil {
		return nil, fmt.Errorf("list inactive rooms: %w", err)
	}
	var deleted []string
	for _, room := range rooms {
		if err := r.store.DeleteRoom(ctx, room.ID); err != nil {
			log.Error().Err(err).Str("room", room.ID).Msg("sweep delete failed")
			continue
		}
		deleted = append(deleted, room.ID)
	}
	if len(deleted) > 0 {
		log.Info().Int("count", len(deleted)).Msg("swept inactive rooms")
	}
	return deleted, nil
}

// generateCode draws short share codes until one is unused. Attempts are
// capped; collisions are rare enough that hitting the ceiling means
// something else is wrong.
func (r *Registry) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)
		_, err := r.store.RoomByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
	}
	return "", ErrCodeExhausted
}
