package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SensorReading is one decoded telemetry sample from the hydroponic system.
// Immutable once created.
type SensorReading struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	Temperature float64   `gorm:"not null" json:"temperature"`
	PH          float64   `gorm:"not null" json:"ph"`
	TDSLevel    float64   `gorm:"not null" json:"tdsLevel"`
	CreatedAt   time.Time `json:"-"`
}

// NewReadingID builds a time-derived opaque identifier. The prefix marks the
// origin of the reading ("rdg" for stored rows, "mem" for ephemeral ones).
func NewReadingID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UTC().UnixNano())
}

// BeforeCreate assigns a storage id when the caller did not provide one.
func (r *SensorReading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewReadingID("rdg")
	}
	return nil
}
