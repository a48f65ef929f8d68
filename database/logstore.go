// logstore.go - Writes activity log rows

package database

import (
	"gorm.io/gorm"

	"go-home-dashboard/models"
)

// LogStore writes activity log lines through gorm.
type LogStore struct {
	DB *gorm.DB
}

// SaveLog inserts one log line.
func (s LogStore) SaveLog(entry *models.Log) error {
	return s.DB.Create(entry).Error
}
