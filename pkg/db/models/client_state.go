package models

import "time"

// ClientState is one piece of per-session storefront state.
type ClientState struct {
	SessionID string     `gorm:"column:session_id;type:varchar(64);primaryKey"`
	StateKey  string     `gorm:"column:state_key;type:varchar(128);primaryKey"`
	Value     string     `gorm:"column:value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (ClientState) TableName() string { return "client_state" }
