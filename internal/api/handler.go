package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"hydro-monitor-backend/internal/model"
	"hydro-monitor-backend/internal/store"
	"hydro-monitor-backend/internal/telemetry"
)

// Telemetry is the read/write contract the HTTP layer consumes. None of its
// operations error; degraded data is signalled through Result.Source.
type Telemetry interface {
	GetSensorReadings(ctx context.Context, limit int) telemetry.Result
	GetSensorReadingsByTimeRange(ctx context.Context, start, end time.Time) telemetry.Result
	CreateSensorReading(ctx context.Context, temperature, ph, tdsLevel float64) model.SensorReading
	GetSystemStatus(ctx context.Context) model.SystemStatus
	UpdateSystemStatus(ctx context.Context, patch telemetry.StatusPatch) model.SystemStatus
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	telemetry Telemetry
	store     store.Store
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(t Telemetry, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		telemetry: t,
		store:     s,
		webpush:   webpushOptions,
	}
}

// sourceHeader is set on read responses so clients can tell live data from
// fallback data.
const sourceHeader = "X-Data-Source"
