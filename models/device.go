// device.go - Defines the Device model (lights, switches, dimmers, ...)

package models

import (
	"fmt"
	"time"
)

// DeviceType classifies what a device accepts on its command topic.
type DeviceType string

const (
	DeviceLight      DeviceType = "light"
	DeviceSwitch     DeviceType = "switch"
	DeviceDimmer     DeviceType = "dimmer"
	DeviceThermostat DeviceType = "thermostat"
	DeviceMotor      DeviceType = "motor"
	DeviceSensor     DeviceType = "sensor"
)

var DeviceTypes = []DeviceType{DeviceLight, DeviceSwitch, DeviceDimmer, DeviceThermostat, DeviceMotor, DeviceSensor}

func ParseDeviceType(s string) (DeviceType, error) {
	for _, t := range DeviceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid device type %q", s)
}

type Device struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Type      DeviceType `gorm:"size:16;not null" json:"type"`
	Room      string     `gorm:"size:64;index" json:"room"`
	Topic     string     `gorm:"uniqueIndex;size:255;not null" json:"topic"` // Base MQTT topic; commands go to <topic>/set
	On        bool       `json:"on"`
	Level     int        `gorm:"not null;default:0" json:"level"` // Slider position 0..100
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CommandTopic is where the dashboard publishes state changes.
func (d *Device) CommandTopic() string { return d.Topic + "/set" }

// StatusTopic is where the device reports its state.
func (d *Device) StatusTopic() string { return d.Topic + "/status" }
