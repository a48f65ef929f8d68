// hook.go - Persists audited log entries and feeds the live terminal

package logging

import (
	"time"

	"github.com/sirupsen/logrus"

	"go-home-dashboard/models"
)

// LogStore persists activity log lines.
type LogStore interface {
	SaveLog(entry *models.Log) error
}

// AuditHook persists audited logrus entries and fans them out to the hub.
type AuditHook struct {
	store LogStore
	hub   *Hub
}

// NewAuditHook builds a hook writing to store and hub; either may be nil.
func NewAuditHook(store LogStore, hub *Hub) *AuditHook {
	return &AuditHook{store: store, hub: hub}
}

// Levels fires on every level; the audit field decides.
func (h *AuditHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire saves the entry as a Log row and publishes it.
func (h *AuditHook) Fire(e *logrus.Entry) error {
	if audit, _ := e.Data[FieldAudit].(bool); !audit {
		return nil
	}
	line := &models.Log{
		Timestamp: e.Time.UTC(),
		Level:     e.Level.String(),
		Message:   e.Message,
	}
	if line.Timestamp.IsZero() {
		line.Timestamp = time.Now().UTC()
	}
	if uid, ok := e.Data[FieldUserID].(uint); ok && uid != 0 {
		line.UserID = &uid
	}
	if h.store != nil {
		if err := h.store.SaveLog(line); err != nil {
			return err
		}
	}
	if h.hub != nil {
		h.hub.Publish(*line)
	}
	return nil
}

// Install points audit entries at store and hub. Install(nil, nil) detaches them.
func Install(store LogStore, hub *Hub) {
	var audit *AuditHook
	if store != nil || hub != nil {
		audit = NewAuditHook(store, hub)
	}
	auditLogger.ReplaceHooks(hooksFor(audit))
}

// hooksFor persists first, then forwards to the console.
func hooksFor(audit *AuditHook) logrus.LevelHooks {
	hooks := make(logrus.LevelHooks)
	if audit != nil {
		hooks.Add(audit)
	}
	hooks.Add(forwardHook{})
	return hooks
}
