// deviceActivation.go - Defines the timed activation record and its queue states

package models

import (
	"encoding/json"
	"time"
)

// ActivationStatus tracks a timed activation through the queue.
type ActivationStatus string

const (
	ActivationQueued  ActivationStatus = "queued"
	ActivationRunning ActivationStatus = "running"
	ActivationDone    ActivationStatus = "done"
	ActivationDropped ActivationStatus = "dropped"
)

// DeviceActivation is one timed "on" request. Duration is stored as
// nanoseconds but travels over JSON as seconds.
type DeviceActivation struct {
	ID        uint             `gorm:"primaryKey" json:"id"`                                                            // Unique ID
	DeviceID  uint             `gorm:"not null;index" json:"device_id"`                                                 // Foreign key to devices table
	Device    Device           `gorm:"foreignKey:DeviceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`      // Foreign key constraint
	UserID    *uint            `json:"user_id,omitempty"`                                                               // Who asked (nil once the user is deleted)
	User      *User            `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`       // Foreign key constraint
	RequestAt time.Time        `gorm:"index" json:"request_at"`                                                         // When request was made
	Duration  time.Duration    `json:"duration"`                                                                        // For how long the device was active
	Status    ActivationStatus `gorm:"size:16;not null" json:"status"`
}

type activationJSON DeviceActivation // Drops the methods so encoding does not recurse

func (a DeviceActivation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		activationJSON
		Duration float64 `json:"duration"` // Seconds
	}{activationJSON(a), a.Duration.Seconds()})
}

func (a *DeviceActivation) UnmarshalJSON(data []byte) error {
	aux := struct {
		*activationJSON
		Duration float64 `json:"duration"`
	}{activationJSON: (*activationJSON)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Duration = time.Duration(aux.Duration * float64(time.Second))
	return nil
}
