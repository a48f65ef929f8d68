// system.go - Admin lock ("force shutdown"), restart and system status

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-home-dashboard/logging"
	"go-home-dashboard/metrics"
	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
)

// LockState is the admin lock. While Locked, no device may be controlled.
type LockState struct {
	Locked   bool       `json:"locked"`
	Reason   string     `json:"reason,omitempty"`    // Why it was locked
	LockedBy string     `json:"locked_by,omitempty"` // Admin username
	LockedAt *time.Time `json:"locked_at,omitempty"`
}

// Locked reports whether device control is currently blocked.
func (h *Handler) Locked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock.Locked
}

// Lock returns a copy of the current lock state.
func (h *Handler) Lock() LockState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock
}

// rejectIfLocked answers 503 with the lock details when locked.
func (h *Handler) rejectIfLocked(c *gin.Context) bool {
	st := h.Lock()
	if !st.Locked {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":     "device control is locked",
		"reason":    st.Reason,
		"locked_by": st.LockedBy,
		"locked_at": st.LockedAt,
	})
	return true
}

// Shutdown locks device control, stops the running activation and sends
// "off" to every controllable device.
func (h *Handler) Shutdown(c *gin.Context) {
	var input struct {
		Reason string `json:"reason" binding:"required"` // Reason for shutdown (required)
	}
	if !bindJSON(c, &input) {
		return
	}
	caller, _ := middleware.CurrentUser(c)

	now := time.Now().UTC()
	h.mu.Lock()
	h.lock = LockState{Locked: true, Reason: input.Reason, LockedBy: caller.Username, LockedAt: &now}
	if h.running != nil {
		h.running.cancel()
	}
	h.mu.Unlock()
	metrics.Locked.Set(1)

	// Switch everything off so nothing keeps running while locked.
	// The lock stays in place even when the device list cannot be read.
	resp := gin.H{"message": "device control locked"}
	var devices []models.Device
	if err := h.DB.Where("type <> ?", models.DeviceSensor).Find(&devices).Error; err != nil {
		logrus.WithError(err).Error("load devices to switch off")
		resp["off_error"] = err.Error()
	} else {
		var failed []string
		for i := range devices {
			if err := h.publish(devices[i].CommandTopic(), "off"); err != nil {
				failed = append(failed, devices[i].Name)
			}
		}
		if err := h.DB.Model(&models.Device{}).Where("type <> ?", models.DeviceSensor).Update("on", false).Error; err != nil {
			logrus.WithError(err).Error("mark devices off")
		}
		resp["failed_off"] = failed
	}
	resp["devices"] = len(devices)
	resp["lock"] = h.Lock()

	logging.Audit(caller.ID).Warnf("system locked: %s", input.Reason)
	c.JSON(http.StatusOK, resp)
}

// Restart clears the admin lock.
func (h *Handler) Restart(c *gin.Context) {
	h.mu.Lock()
	h.lock = LockState{}
	h.mu.Unlock()
	metrics.Locked.Set(0)

	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Info("system unlocked")
	c.JSON(http.StatusOK, gin.H{
		"message":    "device control restored",
		"restart_at": time.Now().UTC(),
	})
}

// Status reports lock, queue and quota state.
func (h *Handler) Status(c *gin.Context) {
	h.mu.Lock()
	lock := h.lock
	var running gin.H
	if h.running != nil {
		running = gin.H{"activation_id": h.running.activationID, "device_id": h.running.deviceID}
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"lock": lock,
		"queue": gin.H{
			"length":   len(h.queue),
			"capacity": cap(h.queue),
			"running":  running,
		},
		"quota": gin.H{
			"per_device": h.quota().String(),
			"window":     quotaWindow.String(),
		},
	})
}
