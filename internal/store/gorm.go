package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/codingSofie/partykit/internal/models"
)

// GormStore is the durable backend, used when DATABASE_URL is set.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&models.Room{}, &models.Player{}, &models.ClickLog{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := g.db.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrPasswordTaken
		}
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (g *GormStore) RoomByID(ctx context.Context, id string) (*models.Room, error) {
	return g.room(ctx, "id = ?", id)
}

func (g *GormStore) RoomByPassword(ctx context.Context, password string) (*models.Room, error) {
	return g.room(ctx, "password = ?", password)
}

func (g *GormStore) RoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return g.room(ctx, "code = ?", code)
}

func (g *GormStore) room(ctx context.Context, query string, arg string) (*models.Room, error) {
	var room models.Room
	err := g.db.WithContext(ctx).Where(query, arg).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return &room, nil
}

func (g *GormStore) SaveRoomState(ctx context.Context, roomID string, state RoomState) error {
	res := g.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).
		Updates(map[string]any{
			"current_phase":    state.Phase,
			"round_number":     state.RoundNumber,
			"first_clicker_id": state.FirstClickerID,
			"start_time":       state.StartTime,
			"end_time":         state.EndTime,
			"last_activity":    state.LastActivity,
		})
	if res.Error != nil {
		return fmt.Errorf("save room state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).
		Update("last_activity", at)
	if res.Error != nil {
		return fmt.Errorf("touch room: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) DeleteRoom(ctx context.Context, roomID string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.ClickLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Player{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&models.Room{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (g *GormStore) InactiveRooms(ctx context.Context, cutoff time.Time) ([]*models.Room, error) {
	var rooms []*models.Room
	err := g.db.WithContext(ctx).Where("last_activity < ?", cutoff).Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("inactive rooms: %w", err)
	}
	return rooms, nil
}

func (g *GormStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := g.db.WithContext(ctx).Create(player).Error; err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (g *GormStore) PlayerByID(ctx context.Context, id string) (*models.Player, error) {
	var player models.Player
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find player: %w", err)
	}
	return &player, nil
}

func (g *GormStore) PlayersByRoom(ctx context.Context, roomID string) ([]*models.Player, error) {
	var players []*models.Player
	err := g.db.WithContext(ctx).Where("room_id = ?", roomID).
		Order("joined_at ASC, id ASC").Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("players by room: %w", err)
	}
	return players, nil
}

func (g *GormStore) CountPlayers(ctx context.Context, roomID string) (int, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&models.Player{}).Where("room_id = ?", roomID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return int(n), nil
}

// SetHost flips the host flag to the given player inside one transaction so
// the single-host invariant holds at every observable instant.
func (g *GormStore) SetHost(ctx context.Context, roomID, playerID string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Player{}).
			Where("room_id = ? AND id <> ?", roomID, playerID).
			Update("is_host", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Player{}).
			Where("room_id = ? AND id = ?", roomID, playerID).
			Update("is_host", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set host: %w", err)
	}
	return nil
}

func (g *GormStore) SetConnection(ctx context.Context, playerID string, connID *string) error {
	res := g.db.WithContext(ctx).Model(&models.Player{}).Where("id = ?", playerID).
		Update("connection_id", connID)
	if res.Error != nil {
		return fmt.Errorf("set connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) ClearConnection(ctx context.Context, connID string) error {
	err := g.db.WithContext(ctx).Model(&models.Player{}).Where("connection_id = ?", connID).
		Update("connection_id", nil).Error
	if err != nil {
		return fmt.Errorf("clear connection: %w", err)
	}
	return nil
}

func (g *GormStore) DeletePlayer(ctx context.Context, id string) error {
	if err := g.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Player{}).Error; err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func (g *GormStore) CreateClickLog(ctx context.Context, log *models.ClickLog) error {
	if err := g.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create click log: %w", err)
	}
	return nil
}

func (g *GormStore) ClickLogsForRound(ctx context.Context, roomID string, round int) ([]*models.ClickLog, error) {
	var logs []*models.ClickLog
	err := g.db.WithContext(ctx).
		Where("room_id = ? AND round_number = ?", roomID, round).
		Order("server_timestamp ASC, id ASC").Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("click logs for round: %w", err)
	}
	return logs, nil
}

func (g *GormStore) DeleteClickLogsForRound(ctx context.Context, roomID string, round int) error {
	err := g.db.WithContext(ctx).
		Where("room_id = ? AND round_number = ?", roomID, round).
		Delete(&models.ClickLog{}).Error
	if err != nil {
		return fmt.Errorf("delete click logs: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
