package store

import (
	"context"
	"errors"
	"time"

	"github.com/codingSofie/partykit/internal/models"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrPasswordTaken means another live room already holds the password.
	ErrPasswordTaken = errors.New("store: room password taken")
)

// RoomState carries the mutable round fields written as one unit on every
// phase transition.
type RoomState struct {
	Phase          models.Phase
	RoundNumber    int
	FirstClickerID *string
	StartTime      *time.Time
	EndTime        *time.Time
	LastActivity   time.Time
}

// Store is the persistence boundary for rooms, players and click logs.
// Deleting a room cascades to its players and click logs. Implementations
// must enforce password uniqueness on CreateRoom and report violations as
// ErrPasswordTaken.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	RoomByID(ctx context.Context, id string) (*models.Room, error)
	RoomByPassword(ctx context.Context, password string) (*models.Room, error)
	RoomByCode(ctx context.Context, code string) (*models.Room, error)
	SaveRoomState(ctx context.Context, roomID string, state RoomState) error
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	DeleteRoom(ctx context.Context, roomID string) error
	InactiveRooms(ctx context.Context, cutoff time.Time) ([]*models.Room, error)

	CreatePlayer(ctx context.Context, player *models.Player) error
	PlayerByID(ctx context.Context, id string) (*models.Player, error)
	PlayersByRoom(ctx context.Context, roomID string) ([]*models.Player, error)
	CountPlayers(ctx context.Context, roomID string) (int, error)
	SetHost(ctx context.Context, roomID, playerID string) error
	SetConnection(ctx context.Context, playerID string, connID *string) error
	ClearConnection(ctx context.Context, connID string) error
	DeletePlayer(ctx context.Context, id string) error

	CreateClickLog(ctx context.Context, log *models.ClickLog) error
	ClickLogsForRound(ctx context.Context, roomID string, round int) ([]*models.ClickLog, error)
	DeleteClickLogsForRound(ctx context.Context, roomID string, round int) error
}
