// activation.go - Timed device activations: FIFO queue and daily quota
// This file implements the device activation system with:
// 1. FIFO queue for timed requests, processed by one worker goroutine
// 2. Per-device daily quota (rolling 24h window, stored activations)
// 3. Admin lock integration (new requests rejected, queued ones dropped)

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-home-dashboard/logging"
	"go-home-dashboard/metrics"
	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
)

const quotaWindow = 24 * time.Hour

// ActivateInput is a timed activation request.
type ActivateInput struct {
	Duration int `json:"duration" binding:"required,min=1,max=86400"` // Seconds
}

// queuedActivation is what travels through the queue.
type queuedActivation struct {
	ID       uint
	DeviceID uint
	UserID   uint
	Duration time.Duration
}

// runningJob is the activation the worker is executing.
type runningJob struct {
	activationID uint
	deviceID     uint
	cancel       context.CancelFunc
}

// Activate queues "on for N seconds" for a device.
func (h *Handler) Activate(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	// The admin lock takes priority over quota and queue checks.
	if h.rejectIfLocked(c) {
		return
	}
	var input ActivateInput
	if !bindJSON(c, &input) {
		return
	}
	if !controllable(c, device) {
		return
	}
	caller, _ := middleware.CurrentUser(c)
	duration := time.Duration(input.Duration) * time.Second

	// Quota validation: would this request exceed the device's daily limit?
	used, err := h.usedQuota(device.ID, 0)
	if err != nil {
		dbError(c, err)
		return
	}
	if quota := h.quota(); quota > 0 && used+duration > quota {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("daily quota for %q reached (%s of %s used)", device.Name, used, quota),
		})
		return
	}

	uid := caller.ID
	activation := models.DeviceActivation{
		DeviceID:  device.ID,
		UserID:    &uid,
		RequestAt: time.Now().UTC(),
		Duration:  duration,
		Status:    models.ActivationQueued,
	}
	if err := h.DB.Create(&activation).Error; err != nil {
		dbError(c, err)
		return
	}

	select {
	case h.queue <- &queuedActivation{ID: activation.ID, DeviceID: device.ID, UserID: uid, Duration: duration}:
	default:
		h.setActivationStatus(activation.ID, models.ActivationDropped)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activation queue is full"})
		return
	}
	metrics.QueueLength.Set(float64(len(h.queue)))
	logging.Audit(uid).Infof("queued %q for %s", device.Name, duration)
	c.JSON(http.StatusAccepted, activation)
}

// ListActivations returns a device's history, newest first.
func (h *Handler) ListActivations(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	var rows []models.DeviceActivation
	if err := h.DB.Where("device_id = ?", device.ID).Order("request_at DESC, id DESC").Find(&rows).Error; err != nil {
		dbError(c, err)
		return
	}
	listResponse(c, rows)
}

// RunActivations processes the queue until ctx is cancelled. Requests
// still waiting when it stops are marked dropped.
//
// For each request:
// 1. If the system is locked, drop it
// 2. If the device's quota would be exceeded, drop it
// 3. Publish "on", wait the duration, publish "off"
func (h *Handler) RunActivations(ctx context.Context) {
	defer h.drainQueue()
	for {
		if ctx.Err() != nil { // select picks at random when both are ready
			return
		}
		select {
		case <-ctx.Done():
			return
		case req := <-h.queue:
			metrics.QueueLength.Set(float64(len(h.queue)))
			h.process(ctx, req)
		}
	}
}

// drainQueue drops everything left in the channel.
func (h *Handler) drainQueue() {
	for {
		select {
		case req := <-h.queue:
			h.setActivationStatus(req.ID, models.ActivationDropped)
		default:
			metrics.QueueLength.Set(0)
			return
		}
	}
}

// RecoverActivations cleans up after an unclean stop: queued rows that no
// worker will ever pick up are dropped, and devices left on by a running
// activation are switched off. Call it before the server accepts requests.
func (h *Handler) RecoverActivations() error {
	var stale []models.DeviceActivation
	err := h.DB.Preload("Device").
		Where("status IN ?", []models.ActivationStatus{models.ActivationQueued, models.ActivationRunning}).
		Find(&stale).Error
	if err != nil {
		return err
	}
	for i := range stale {
		a := &stale[i]
		if a.Status == models.ActivationRunning {
			if err := h.publish(a.Device.CommandTopic(), "off"); err == nil {
				h.setDeviceOn(&a.Device, false)
			}
		}
		h.setActivationStatus(a.ID, models.ActivationDropped)
	}
	if len(stale) > 0 {
		logrus.WithField("count", len(stale)).Warn("dropped activations left over from the last run")
	}
	return nil
}

func (h *Handler) process(ctx context.Context, req *queuedActivation) {
	log := logrus.WithFields(logrus.Fields{"activation": req.ID, "device": req.DeviceID})

	if h.Locked() {
		h.setActivationStatus(req.ID, models.ActivationDropped)
		log.Info("activation dropped: system locked")
		return
	}

	used, err := h.usedQuota(req.DeviceID, req.ID)
	if err != nil {
		log.WithError(err).Error("quota lookup failed")
		h.setActivationStatus(req.ID, models.ActivationDropped)
		return
	}
	if quota := h.quota(); quota > 0 && used+req.Duration > quota {
		h.setActivationStatus(req.ID, models.ActivationDropped)
		log.Info("activation dropped: daily quota exceeded")
		return
	}

	var device models.Device
	if err := h.DB.First(&device, req.DeviceID).Error; err != nil {
		log.WithError(err).Warn("activation dropped: device gone")
		h.setActivationStatus(req.ID, models.ActivationDropped)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.mu.Lock()
	h.running = &runningJob{activationID: req.ID, deviceID: req.DeviceID, cancel: cancel}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = nil
		h.mu.Unlock()
	}()

	if err := h.publish(device.CommandTopic(), "on"); err != nil {
		h.setActivationStatus(req.ID, models.ActivationDropped)
		return
	}
	h.setActivationStatus(req.ID, models.ActivationRunning)
	h.setDeviceOn(&device, true)

	start := time.Now()
	select {
	case <-h.after(req.Duration):
	case <-jobCtx.Done():
	}
	elapsed := time.Since(start)
	if elapsed > req.Duration {
		elapsed = req.Duration
	}

	// Always switch off, even when interrupted by a lock or shutdown.
	if err := h.publish(device.CommandTopic(), "off"); err != nil {
		log.WithError(err).Error("could not switch device off")
	}
	h.setDeviceOn(&device, false)

	updates := map[string]interface{}{"status": models.ActivationDone}
	if jobCtx.Err() != nil {
		updates["duration"] = elapsed // Only the time actually used counts against the quota
	}
	if err := h.DB.Model(&models.DeviceActivation{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
		log.WithError(err).Error("could not finish activation")
	}
	log.Info("activation finished")
}

// usedQuota sums non-dropped activation time for a device in the last 24h,
// excluding the activation with id exclude.
func (h *Handler) usedQuota(deviceID, exclude uint) (time.Duration, error) {
	var durations []int64
	err := h.DB.Model(&models.DeviceActivation{}).
		Where("device_id = ? AND status <> ? AND request_at > ? AND id <> ?",
			deviceID, models.ActivationDropped, time.Now().UTC().Add(-quotaWindow), exclude).
		Pluck("duration", &durations).Error
	var total time.Duration
	for _, d := range durations {
		total += time.Duration(d)
	}
	return total, err
}

func (h *Handler) quota() time.Duration {
	if h.Config == nil {
		return 0
	}
	return h.Config.DeviceDailyQuota
}

func (h *Handler) setActivationStatus(id uint, status models.ActivationStatus) {
	err := h.DB.Model(&models.DeviceActivation{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		logrus.WithError(err).WithField("activation", id).Error("update activation status")
	}
}

func (h *Handler) setDeviceOn(d *models.Device, on bool) {
	if err := h.DB.Model(d).Update("on", on).Error; err != nil {
		logrus.WithError(err).WithField("device", d.ID).Error("update device state")
	}
}
