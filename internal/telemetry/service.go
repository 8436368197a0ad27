package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"hydro-monitor-backend/config"
	"hydro-monitor-backend/internal/fallback"
	"hydro-monitor-backend/internal/model"
	"hydro-monitor-backend/internal/notification"
	"hydro-monitor-backend/internal/remote"
	"hydro-monitor-backend/internal/store"
)

// Provenance tells callers where a read result came from, so a dashboard can
// distinguish a live reading from a degraded one without inspecting health
// flags.
type Provenance string

const (
	ProvenanceFresh     Provenance = "fresh"     // Fetched from the remote service this cycle
	ProvenanceCache     Provenance = "cache"     // Served within the remote-fetch cache window
	ProvenanceStorage   Provenance = "storage"   // Durable rows, remote currently unreachable
	ProvenanceSynthetic Provenance = "synthetic" // In-memory fallback data
)

// Result is what every read operation returns. Readings is never nil for a
// healthy deployment but may be empty.
type Result struct {
	Readings []model.SensorReading
	Source   Provenance
}

// Fetcher is the remote-client seam; tests substitute their own.
type Fetcher interface {
	FetchLatest(ctx context.Context) ([]byte, error)
}

// StatusPatch carries partial SystemStatus updates; nil fields retain the
// previous value.
type StatusPatch struct {
	ConnectionStatus *string
	LastUpdate       *time.Time
	DataPoints       *int64
}

const defaultReadLimit = 50

// Service is the tiered acquisition layer. It owns the remote-fetch recency
// clock, the durable-storage health belief and the system status row; all of
// that shared state is guarded by a single mutex so concurrent requests and
// the background poller interleave safely.
//
// Its read and write operations never return an error: every path degrades
// through storage and the in-memory fallback buffer until something servable
// remains.
type Service struct {
	cfg    *config.Config
	store  store.Store
	remote Fetcher
	buffer *fallback.Buffer
	alerts *notification.WorkerPool

	mu           sync.Mutex
	lastFetch    time.Time
	storeHealthy bool
	status       model.SystemStatus

	startedAt time.Time
}

// NewService wires the acquisition layer together. alerts may be nil when
// push notifications are not configured.
func NewService(cfg *config.Config, st store.Store, fetcher Fetcher, alerts *notification.WorkerPool) *Service {
	s := &Service{
		cfg:          cfg,
		store:        st,
		remote:       fetcher,
		buffer:       fallback.NewBuffer(),
		alerts:       alerts,
		storeHealthy: true,
		startedAt:    time.Now().UTC(),
	}
	if persisted, err := st.Status(context.Background()); err == nil && persisted != nil {
		s.status = *persisted
	}
	return s
}

// Run drives the background acquisition cycle until ctx is cancelled. The
// poller hits the same read path as user requests.
func (s *Service) Run(ctx context.Context) {
	if s.alerts != nil {
		s.alerts.Start(ctx)
	}
	if !s.cfg.Poller.Enabled {
		log.Println("Telemetry poller is disabled. Not starting.")
		return
	}
	log.Println("Starting telemetry poller...")

	s.GetSensorReadings(ctx, s.cfg.Poller.Limit)

	timer := time.NewTimer(s.cfg.Poller.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Telemetry poller shutting down.")
			return
		case <-timer.C:
			s.GetSensorReadings(ctx, s.cfg.Poller.Limit)
			timer.Reset(s.cfg.Poller.Interval)
		}
	}
}

// GetSensorReadings returns up to limit readings, most recent first. One
// request per cache window triggers a remote fetch; everything else is served
// from storage or the fallback buffer.
func (s *Service) GetSensorReadings(ctx context.Context, limit int) (res Result) {
	if limit <= 0 {
		limit = defaultReadLimit
	}
	defer s.degradeOnPanic(&res, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	// Cache window: a recent remote fetch plus reachable storage means the
	// stored rows are fresh enough, bounding remote calls to one per window.
	if s.storeHealthy && now.Sub(s.lastFetch) < s.cfg.Remote.CacheTimeout {
		latest, err := s.store.LatestReading(ctx)
		if err != nil {
			s.markStoreUnhealthyLocked(err)
		} else if latest != nil {
			return s.serveLocked(ctx, limit, ProvenanceCache)
		}
	}

	if reading := s.fetchRemoteLocked(ctx, now); reading != nil {
		s.ingestLocked(ctx, reading, now)
		return s.serveLocked(ctx, limit, ProvenanceFresh)
	}
	return s.serveLocked(ctx, limit, ProvenanceStorage)
}

// GetSensorReadingsByTimeRange returns readings within [start, end],
// ascending by timestamp.
func (s *Service) GetSensorReadingsByTimeRange(ctx context.Context, start, end time.Time) (res Result) {
	defer s.degradeRangeOnPanic(&res, start, end)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeHealthy {
		rows, err := s.store.ReadingsBetween(ctx, start, end)
		if err == nil {
			return Result{Readings: rows, Source: ProvenanceStorage}
		}
		s.markStoreUnhealthyLocked(err)
	}

	s.buffer.Seed(time.Now().UTC())
	return Result{Readings: s.buffer.Between(start, end), Source: ProvenanceSynthetic}
}

// CreateSensorReading is the manual insert path; it bypasses the remote
// fetch. The returned reading carries the assigned id.
func (s *Service) CreateSensorReading(ctx context.Context, temperature, ph, tdsLevel float64) (out model.SensorReading) {
	reading := model.SensorReading{
		Timestamp:   time.Now().UTC(),
		Temperature: temperature,
		PH:          ph,
		TDSLevel:    tdsLevel,
	}
	defer s.insertFallbackOnPanic(&out, reading)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeHealthy {
		err := s.store.InsertReading(ctx, &reading)
		if err == nil {
			s.recountLocked(ctx)
			return reading
		}
		s.markStoreUnhealthyLocked(err)
	}

	reading.ID = model.NewReadingID("mem")
	s.buffer.Prepend(reading)
	return reading
}

// GetSystemStatus returns the current status with live resource gauges.
func (s *Service) GetSystemStatus(ctx context.Context) model.SystemStatus {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	return s.withGauges(status)
}

// UpdateSystemStatus merges the patch into the status row; nil patch fields
// retain their previous value.
func (s *Service) UpdateSystemStatus(ctx context.Context, patch StatusPatch) model.SystemStatus {
	s.mu.Lock()
	if patch.ConnectionStatus != nil {
		s.status.ConnectionStatus = *patch.ConnectionStatus
	}
	if patch.LastUpdate != nil {
		s.status.LastUpdate = *patch.LastUpdate
	}
	if patch.DataPoints != nil {
		s.status.DataPoints = *patch.DataPoints
	}
	s.persistStatusLocked(ctx)
	status := s.status
	s.mu.Unlock()

	return s.withGauges(status)
}

// --- internal steps, all called with s.mu held ---

// fetchRemoteLocked runs the fetch→normalize chain; a nil result means no
// usable reading this cycle and the connection status reflects the failure.
func (s *Service) fetchRemoteLocked(ctx context.Context, now time.Time) *model.SensorReading {
	body, err := s.remote.FetchLatest(ctx)
	if err != nil {
		log.Printf("Remote fetch failed: %v", err)
		s.setConnectionLocked(ctx, model.StatusError, now)
		return nil
	}

	reading := remote.Normalize(body, s.cfg.Remote.DeviceCode)
	if reading == nil {
		s.setConnectionLocked(ctx, model.StatusError, now)
		return nil
	}
	return reading
}

// ingestLocked routes a fresh reading to storage or, when storage is down,
// the fallback buffer. Remote reachability is independent of storage health:
// either way the connection is marked connected and the fetch clock advances.
func (s *Service) ingestLocked(ctx context.Context, reading *model.SensorReading, now time.Time) {
	if s.storeHealthy {
		if err := s.store.InsertReading(ctx, reading); err != nil {
			s.markStoreUnhealthyLocked(err)
			if reading.ID == "" {
				reading.ID = model.NewReadingID("mem")
			}
			s.buffer.Prepend(*reading)
		} else {
			s.recountLocked(ctx)
		}
	} else {
		reading.ID = model.NewReadingID("mem")
		s.buffer.Prepend(*reading)
	}

	s.setConnectionLocked(ctx, model.StatusConnected, now)
	s.lastFetch = now
}

// serveLocked is the response step: durable rows when storage is healthy,
// a persisted sample for a healthy-but-empty development store, otherwise the
// fallback buffer.
func (s *Service) serveLocked(ctx context.Context, limit int, src Provenance) Result {
	if s.storeHealthy {
		rows, err := s.store.RecentReadings(ctx, limit)
		if err != nil {
			s.markStoreUnhealthyLocked(err)
		} else if len(rows) > 0 {
			return Result{Readings: rows, Source: src}
		} else if !s.cfg.IsProduction() {
			sample := sampleReading(time.Now().UTC())
			if insErr := s.store.InsertReading(ctx, &sample); insErr != nil {
				s.markStoreUnhealthyLocked(insErr)
			} else {
				s.recountLocked(ctx)
				return Result{Readings: []model.SensorReading{sample}, Source: ProvenanceSynthetic}
			}
		}
	}

	// Fresh readings pushed to the buffer this cycle keep their provenance;
	// anything else served from here is synthetic.
	if src != ProvenanceFresh {
		src = ProvenanceSynthetic
	}
	s.buffer.Seed(time.Now().UTC())
	return Result{Readings: s.buffer.Recent(limit), Source: src}
}

// setConnectionLocked records a fetch outcome and dispatches an alert on
// state transitions.
func (s *Service) setConnectionLocked(ctx context.Context, state string, now time.Time) {
	prev := s.status.ConnectionStatus
	s.status.ConnectionStatus = state
	s.status.LastUpdate = now
	s.persistStatusLocked(ctx)

	if prev != "" && prev != state && s.alerts != nil {
		s.alerts.Dispatch(notification.Alert{State: state, At: now})
	}
}

// recountLocked refreshes the DataPoints gauge after a successful insert.
func (s *Service) recountLocked(ctx context.Context) {
	n, err := s.store.CountReadings(ctx)
	if err != nil {
		s.markStoreUnhealthyLocked(err)
		return
	}
	s.status.DataPoints = n
	s.persistStatusLocked(ctx)
}

func (s *Service) persistStatusLocked(ctx context.Context) {
	if !s.storeHealthy {
		return
	}
	if err := s.store.SaveStatus(ctx, &s.status); err != nil {
		s.markStoreUnhealthyLocked(err)
	}
}

// markStoreUnhealthyLocked flips the health belief. It stays false until a
// storage round-trip succeeds again; no path may assume storage works after
// an observed failure.
func (s *Service) markStoreUnhealthyLocked(err error) {
	if s.storeHealthy {
		log.Printf("Durable storage marked unhealthy: %v", err)
	}
	s.storeHealthy = false
}

// StoreRecovered re-arms the storage health belief; callers invoke it after
// confirming a successful round-trip (e.g. a health probe).
func (s *Service) StoreRecovered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.storeHealthy {
		log.Println("Durable storage re-armed as healthy")
	}
	s.storeHealthy = true
}

// sampleReading is the single seeded row for an empty development store.
func sampleReading(now time.Time) model.SensorReading {
	return model.SensorReading{
		Timestamp:   now,
		Temperature: 24.8,
		PH:          6.1,
		TDSLevel:    860,
	}
}

// --- panic boundary ---
// The contract is that no read or write operation ever surfaces an error or
// panic; anything unexpected degrades to the fallback buffer.

func (s *Service) degradeOnPanic(res *Result, limit int) {
	if p := recover(); p != nil {
		log.Printf("Telemetry read recovered from panic: %v", p)
		s.mu.Lock()
		s.storeHealthy = false
		s.mu.Unlock()
		s.buffer.Seed(time.Now().UTC())
		*res = Result{Readings: s.buffer.Recent(limit), Source: ProvenanceSynthetic}
	}
}

func (s *Service) degradeRangeOnPanic(res *Result, start, end time.Time) {
	if p := recover(); p != nil {
		log.Printf("Telemetry range read recovered from panic: %v", p)
		s.mu.Lock()
		s.storeHealthy = false
		s.mu.Unlock()
		s.buffer.Seed(time.Now().UTC())
		*res = Result{Readings: s.buffer.Between(start, end), Source: ProvenanceSynthetic}
	}
}

func (s *Service) insertFallbackOnPanic(out *model.SensorReading, reading model.SensorReading) {
	if p := recover(); p != nil {
		log.Printf("Telemetry insert recovered from panic: %v", p)
		s.mu.Lock()
		s.storeHealthy = false
		s.mu.Unlock()
		reading.ID = model.NewReadingID("mem")
		s.buffer.Prepend(reading)
		*out = reading
	}
}
