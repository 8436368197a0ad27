package model

import "time"

// Connection states reported in SystemStatus.
const (
	StatusConnected = "connected"
	StatusError     = "error"
)

// SystemStatus is the singleton health row for the deployment. The telemetry
// service is its only writer.
type SystemStatus struct {
	ID               int64     `gorm:"primaryKey" json:"-"`
	ConnectionStatus string    `gorm:"size:16;not null" json:"connectionStatus"`
	LastUpdate       time.Time `json:"lastUpdate"`
	DataPoints       int64     `json:"dataPoints"`
	CPUUsage         float64   `gorm:"-" json:"cpuUsage"`
	MemoryUsage      float64   `gorm:"-" json:"memoryUsage"`
	Uptime           string    `gorm:"-" json:"uptime"`
	UpdatedAt        time.Time `json:"-"`
}

// SystemStatusID is the fixed primary key of the singleton row.
const SystemStatusID int64 = 1
