package models

// ClickLog records one accepted click. Rows for a round are append-only;
// the winner is always the row with ClickOrder == 1. Timestamps are Unix
// millis from the server clock; ClientTimestamp is advisory and never used
// for ordering.
type ClickLog struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID          string `gorm:"index:idx_click_logs_round;not null" json:"-"`
	PlayerID        string `gorm:"index;not null" json:"player_id"`
	PlayerName      string `gorm:"not null" json:"player_name"`
	ServerTimestamp int64  `gorm:"not null" json:"server_timestamp"`
	ClientTimestamp *int64 `json:"client_timestamp,omitempty"`
	ReactionTimeMs  *int64 `json:"reaction_time_ms"`
	ClickOrder      int    `json:"order"`
	RoundNumber     int    `gorm:"index:idx_click_logs_round;not null" json:"-"`
}
