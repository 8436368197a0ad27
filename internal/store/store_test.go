package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hydro-monitor-backend/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	// A named shared-cache database keeps every pooled connection on the same
	// data while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SensorReading{}, &model.SystemStatus{}))
	return NewGormStore(db)
}

func insertAt(t *testing.T, s Store, id string, ts time.Time) {
	t.Helper()
	r := model.SensorReading{
		ID:          id,
		Timestamp:   ts,
		Temperature: 24.0,
		PH:          6.2,
		TDSLevel:    850,
	}
	require.NoError(t, s.InsertReading(context.Background(), &r))
}

func TestLatestReading(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestReading(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty table is not an error")

	now := time.Now().UTC()
	insertAt(t, s, "old", now.Add(-time.Hour))
	insertAt(t, s, "new", now)

	latest, err = s.LatestReading(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.ID)
}

func TestRecentReadingsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		insertAt(t, s, fmt.Sprintf("r%d", i), now.Add(-time.Duration(i)*time.Minute))
	}

	readings, err := s.RecentReadings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, "r0", readings[0].ID)
	assert.Equal(t, "r1", readings[1].ID)
	assert.Equal(t, "r2", readings[2].ID)
}

func TestReadingsBetween(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertAt(t, s, "outside-before", now.Add(-3*time.Hour))
	insertAt(t, s, "in-a", now.Add(-2*time.Hour))
	insertAt(t, s, "in-b", now.Add(-time.Hour))
	insertAt(t, s, "outside-after", now)

	readings, err := s.ReadingsBetween(ctx, now.Add(-150*time.Minute), now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "in-a", readings[0].ID, "range results are ascending")
	assert.Equal(t, "in-b", readings[1].ID)
}

func TestInsertReadingAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := model.SensorReading{Timestamp: time.Now().UTC(), Temperature: 23.0, PH: 6.0, TDSLevel: 800}
	require.NoError(t, s.InsertReading(ctx, &r))
	assert.True(t, strings.HasPrefix(r.ID, "rdg-"), "create hook assigns a time-derived id")

	count, err := s.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStatusSingleton(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, status, "no status row yet")

	first := model.SystemStatus{ConnectionStatus: model.StatusConnected, LastUpdate: time.Now().UTC(), DataPoints: 3}
	require.NoError(t, s.SaveStatus(ctx, &first))

	second := model.SystemStatus{ConnectionStatus: model.StatusError, LastUpdate: time.Now().UTC(), DataPoints: 4}
	require.NoError(t, s.SaveStatus(ctx, &second))

	status, err = s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, model.SystemStatusID, status.ID)
	assert.Equal(t, model.StatusError, status.ConnectionStatus)
	assert.Equal(t, int64(4), status.DataPoints)

	var count int64
	require.NoError(t, s.DB().Model(&model.SystemStatus{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "saves upsert the same row")
}

// newMockStore wires the store to sqlmock for error-path tests.
func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	mock.ExpectQuery("SELECT (.+) FROM \"sensor_readings\"").WillReturnError(dbErr)
	_, err := s.LatestReading(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "failed to fetch latest reading")

	mock.ExpectQuery("SELECT (.+) FROM \"sensor_readings\"").WillReturnError(dbErr)
	_, err = s.RecentReadings(ctx, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch recent readings")

	mock.ExpectQuery("SELECT count(.+) FROM \"sensor_readings\"").WillReturnError(dbErr)
	_, err = s.CountReadings(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count readings")

	require.NoError(t, mock.ExpectationsWereMet())
}
