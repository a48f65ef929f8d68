// device.go - Device CRUD and direct control (on/off, slider level)

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-home-dashboard/logging"
	"go-home-dashboard/metrics"
	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
)

// DeviceInput creates a device. Topic defaults to <prefix>/<room>/<name>.
type DeviceInput struct {
	Name  string `json:"name" binding:"required,max=64"`
	Type  string `json:"type" binding:"required,devicetype"`
	Room  string `json:"room" binding:"max=64"`
	Topic string `json:"topic" binding:"max=255"`
}

// UpdateDeviceInput is a partial update; nil fields are left alone.
type UpdateDeviceInput struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=64"`
	Type  *string `json:"type" binding:"omitempty,devicetype"`
	Room  *string `json:"room" binding:"omitempty,max=64"`
	Topic *string `json:"topic" binding:"omitempty,min=1,max=255"`
}

// StateInput switches a device on or off.
type StateInput struct {
	On *bool `json:"on" binding:"required"`
}

// LevelInput is a slider position.
type LevelInput struct {
	Level *int `json:"level" binding:"required,min=0,max=100"`
}

// ListDevices returns all devices, optionally filtered by ?room=.
func (h *Handler) ListDevices(c *gin.Context) {
	q := h.DB.Order("room, name")
	if room := c.Query("room"); room != "" {
		q = q.Where("room = ?", room)
	}
	var devices []models.Device
	if err := q.Find(&devices).Error; err != nil {
		dbError(c, err)
		return
	}
	listResponse(c, devices)
}

// CreateDevice registers a new device.
func (h *Handler) CreateDevice(c *gin.Context) {
	var input DeviceInput
	if !bindJSON(c, &input) {
		return
	}
	device := models.Device{
		Name:  input.Name,
		Type:  models.DeviceType(input.Type),
		Room:  input.Room,
		Topic: strings.Trim(input.Topic, "/"),
	}
	if device.Topic == "" {
		device.Topic = h.defaultTopic(input.Room, input.Name)
	}
	if err := h.DB.Create(&device).Error; err != nil {
		dbError(c, err)
		return
	}
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("added %s %q in %q", device.Type, device.Name, device.Room)
	c.JSON(http.StatusCreated, device)
}

// GetDevice returns one device.
func (h *Handler) GetDevice(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, device)
}

// UpdateDevice changes name, type, room or topic.
func (h *Handler) UpdateDevice(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	var input UpdateDeviceInput
	if !bindJSON(c, &input) {
		return
	}
	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Type != nil {
		updates["type"] = *input.Type
	}
	if input.Room != nil {
		updates["room"] = *input.Room
	}
	if input.Topic != nil {
		updates["topic"] = strings.Trim(*input.Topic, "/")
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if err := h.DB.Model(device).Updates(updates).Error; err != nil {
		dbError(c, err)
		return
	}
	if err := h.DB.First(device, device.ID).Error; err != nil {
		dbError(c, err)
		return
	}
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("updated device %q", device.Name)
	c.JSON(http.StatusOK, device)
}

// DeleteDevice removes a device and its activation history.
func (h *Handler) DeleteDevice(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	if err := h.DB.Delete(device).Error; err != nil {
		dbError(c, err)
		return
	}
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("removed device %q", device.Name)
	c.Status(http.StatusNoContent)
}

// SetState switches a device on or off over MQTT and stores the new state.
func (h *Handler) SetState(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	if h.rejectIfLocked(c) {
		return
	}
	var input StateInput
	if !bindJSON(c, &input) {
		return
	}
	if !controllable(c, device) {
		return
	}
	if err := h.publish(device.CommandTopic(), onOff(*input.On)); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "device command failed: " + err.Error()})
		return
	}
	if err := h.DB.Model(device).Update("on", *input.On).Error; err != nil {
		dbError(c, err)
		return
	}
	device.On = *input.On
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("turned %s %q", onOff(*input.On), device.Name)
	c.JSON(http.StatusOK, device)
}

// SetLevel moves a device slider (dimmer brightness, blind position, ...).
func (h *Handler) SetLevel(c *gin.Context) {
	device, ok := h.loadDevice(c)
	if !ok {
		return
	}
	if h.rejectIfLocked(c) {
		return
	}
	var input LevelInput
	if !bindJSON(c, &input) {
		return
	}
	if !controllable(c, device) {
		return
	}
	level := *input.Level
	if err := h.publish(device.CommandTopic(), gin.H{"level": level}); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "device command failed: " + err.Error()})
		return
	}
	if err := h.DB.Model(device).Updates(map[string]interface{}{"level": level, "on": level > 0}).Error; err != nil {
		dbError(c, err)
		return
	}
	device.Level, device.On = level, level > 0
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("set %q to %d%%", device.Name, level)
	c.JSON(http.StatusOK, device)
}

// SendCommand publishes a raw payload to any topic (admin tool).
func (h *Handler) SendCommand(c *gin.Context) {
	var input struct {
		Topic   string      `json:"topic" binding:"required"`   // MQTT topic (required)
		Payload interface{} `json:"payload" binding:"required"` // Payload: "on", "off", or JSON
	}
	if !bindJSON(c, &input) {
		return
	}
	if err := h.publish(input.Topic, input.Payload); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("sent raw command to %s", input.Topic)
	c.JSON(http.StatusOK, gin.H{"message": "command sent"})
}

func (h *Handler) loadDevice(c *gin.Context) (*models.Device, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var device models.Device
	if err := h.DB.First(&device, id).Error; err != nil {
		fail(c, "device", id, err)
		return nil, false
	}
	return &device, true
}

func (h *Handler) publish(topic string, payload interface{}) error {
	err := h.MQTT.Publish(topic, payload)
	metrics.ObservePublish(err)
	if err != nil {
		logrus.WithError(err).WithField("topic", topic).Error("mqtt publish failed")
	}
	return err
}

func (h *Handler) defaultTopic(room, name string) string {
	parts := []string{}
	if h.Config != nil && h.Config.MQTT.TopicPrefix != "" {
		parts = append(parts, h.Config.MQTT.TopicPrefix)
	}
	if room != "" {
		parts = append(parts, slug(room))
	}
	parts = append(parts, slug(name))
	return strings.Join(parts, "/")
}

// slug lowercases s and replaces characters that are awkward in topics.
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}

// controllable answers 400 for read-only devices.
func controllable(c *gin.Context, d *models.Device) bool {
	if d.Type == models.DeviceSensor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor devices are read-only"})
		return false
	}
	return true
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
