// status.go - Applies device status reports received over MQTT

package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-home-dashboard/models"
)

const statusSuffix = "/status"

// statusReport is the JSON form of a status message.
type statusReport struct {
	On    *bool `json:"on"`
	Level *int  `json:"level"`
}

// HandleDeviceStatus updates the device whose <topic>/status received payload.
// Messages for unknown topics are ignored. It matches mqtt.Handler.
func (h *Handler) HandleDeviceStatus(topic string, payload []byte) {
	if !strings.HasSuffix(topic, statusSuffix) {
		return
	}
	base := strings.TrimSuffix(topic, statusSuffix)
	log := logrus.WithField("topic", topic)

	var device models.Device
	if err := h.DB.Where("topic = ?", base).First(&device).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("status lookup failed")
		}
		return
	}

	updates := map[string]interface{}{
		"online":    true,
		"last_seen": time.Now().UTC(),
	}
	report, ok := parseStatus(payload)
	if !ok {
		log.WithField("payload", string(payload)).Debug("unrecognised status payload")
	}
	if report.On != nil {
		updates["on"] = *report.On
	}
	if report.Level != nil {
		updates["level"] = clamp(*report.Level, 0, 100)
	}
	if err := h.DB.Model(&device).Updates(updates).Error; err != nil {
		log.WithError(err).Error("status update failed")
	}
}

// parseStatus accepts "on", "off" or {"on": bool, "level": int}.
func parseStatus(payload []byte) (statusReport, bool) {
	var r statusReport
	switch s := strings.ToLower(strings.TrimSpace(string(payload))); s {
	case "on", "off":
		on := s == "on"
		r.On = &on
		return r, true
	case "":
		return r, false
	}
	if err := json.Unmarshal(payload, &r); err != nil {
		return statusReport{}, false
	}
	return r, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
