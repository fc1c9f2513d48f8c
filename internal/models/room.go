package models

import "time"

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhaseLocked  Phase = "locked"
	PhaseResult  Phase = "result"
)

// Room is one isolated game session, identified by a 4-character password.
// The password is only unique among live rooms; deleting the room frees it.
type Room struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	Code           string     `gorm:"index" json:"code"`
	Password       string     `gorm:"uniqueIndex;not null" json:"password"`
	MaxPlayers     int        `gorm:"default:50" json:"max_players"`
	CurrentPhase   Phase      `gorm:"default:waiting" json:"current_phase"`
	RoundNumber    int        `gorm:"default:0" json:"round_number"`
	FirstClickerID *string    `json:"first_clicker_id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivity   time.Time  `gorm:"index;not null" json:"last_activity"`

	Players   []Player   `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	ClickLogs []ClickLog `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}
