package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hydro-monitor-backend/internal/model"
)

// Store defines the durable-storage operations the telemetry service
// consumes: row-level access to sensor readings plus the singleton status
// row. Implementations return errors; deciding what a failure means for
// storage health is the caller's job.
type Store interface {
	LatestReading(ctx context.Context) (*model.SensorReading, error)
	RecentReadings(ctx context.Context, limit int) ([]model.SensorReading, error)
	ReadingsBetween(ctx context.Context, start, end time.Time) ([]model.SensorReading, error)
	InsertReading(ctx context.Context, r *model.SensorReading) error
	CountReadings(ctx context.Context) (int64, error)
	Status(ctx context.Context) (*model.SystemStatus, error)
	SaveStatus(ctx context.Context, s *model.SystemStatus) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for collaborators that need raw
// access (subscription handlers, alert workers).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// LatestReading returns the most recent reading, or nil when the table is
// empty.
func (s *gormStore) LatestReading(ctx context.Context) (*model.SensorReading, error) {
	var reading model.SensorReading
	err := s.db.WithContext(ctx).Order("timestamp DESC").First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest reading: %w", err)
	}
	return &reading, nil
}

// RecentReadings returns up to limit readings ordered by timestamp
// descending.
func (s *gormStore) RecentReadings(ctx context.Context, limit int) ([]model.SensorReading, error) {
	var readings []model.SensorReading
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent readings: %w", err)
	}
	return readings, nil
}

// ReadingsBetween returns readings within [start, end] ascending by
// timestamp.
func (s *gormStore) ReadingsBetween(ctx context.Context, start, end time.Time) ([]model.SensorReading, error) {
	var readings []model.SensorReading
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings in range: %w", err)
	}
	return readings, nil
}

// InsertReading persists one reading. A missing id is assigned by the model's
// create hook.
func (s *gormStore) InsertReading(ctx context.Context, r *model.SensorReading) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// CountReadings returns the total number of stored readings.
func (s *gormStore) CountReadings(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.SensorReading{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// Status returns the singleton status row, or nil when it has not been
// written yet.
func (s *gormStore) Status(ctx context.Context) (*model.SystemStatus, error) {
	var status model.SystemStatus
	err := s.db.WithContext(ctx).First(&status, model.SystemStatusID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system status: %w", err)
	}
	return &status, nil
}

// SaveStatus upserts the singleton status row.
func (s *gormStore) SaveStatus(ctx context.Context, status *model.SystemStatus) error {
	status.ID = model.SystemStatusID
	if err := s.db.WithContext(ctx).Save(status).Error; err != nil {
		return fmt.Errorf("failed to save system status: %w", err)
	}
	return nil
}
