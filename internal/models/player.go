package models

import "time"

// Player belongs to exactly one room. ConnectionID is a weak link to the
// live transport connection and is cleared on disconnect.
type Player struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	RoomID       string    `gorm:"index;not null" json:"room_id"`
	Name         string    `gorm:"not null" json:"name"`
	IsHost       bool      `gorm:"default:false" json:"is_host"`
	JoinedAt     time.Time `gorm:"not null" json:"joined_at"`
	ConnectionID *string   `gorm:"index" json:"-"`
}
