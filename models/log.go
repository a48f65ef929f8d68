package models

import "time"

// Log is one line of the dashboard's activity log (shown in the terminal view).
type Log struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	Level     string    `gorm:"size:8;not null" json:"level"`
	Message   string    `gorm:"not null" json:"message"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
}
