// Package monitor periodically samples the running view and reports it to
// the log and, when configured, to InfluxDB.
package monitor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/session"
)

// MeasurementStatus is the measurement written for each sample.
const MeasurementStatus = "routeview_status"

// PointWriter accepts InfluxDB points.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Loop    controller.Caller
	Clients func() int
	Session *session.Context
	Points  PointWriter // optional
	Logger  *slog.Logger
}

// Sample is one observation of the running view.
type Sample struct {
	Time       time.Time
	Status     controller.Status
	Clients    int
	Goroutines int
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	last      Sample
	mu        sync.RWMutex
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "monitor")
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent sample.
func (s *Service) Last() Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Collect takes one sample and reports it.
func (s *Service) Collect(ctx context.Context) (Sample, error) {
	st, err := controller.CurrentStatus(ctx, s.deps.Loop)
	if err != nil {
		return Sample{}, err
	}
	sample := Sample{
		Time:       time.Now(),
		Status:     st,
		Goroutines: runtime.NumGoroutine(),
	}
	if s.deps.Clients != nil {
		sample.Clients = s.deps.Clients()
	}

	s.mu.Lock()
	s.last = sample
	s.mu.Unlock()

	s.deps.Logger.Debug("status",
		"state", st.State,
		"pending", st.Pending,
		"paths", st.Paths,
		"clients", sample.Clients,
		"goroutines", sample.Goroutines,
	)
	if s.deps.Points != nil {
		if err := s.deps.Points.WritePoint(s.point(sample)); err != nil {
			s.deps.Logger.Warn("failed to write status point", "error", err)
		}
	}
	return sample, nil
}

func (s *Service) point(sample Sample) *influxdb2_write.Point {
	tags := map[string]string{"state": sample.Status.State}
	if s.deps.Session != nil {
		tags["session"] = s.deps.Session.ID()
	}
	return influxdb2.NewPoint(MeasurementStatus, tags,
		map[string]any{
			"clients":      sample.Clients,
			"goroutines":   sample.Goroutines,
			"pending":      sample.Status.Pending,
			"paths":        sample.Status.Paths,
			"latest_token": sample.Status.LatestToken,
		},
		sample.Time,
	)
}

// Run samples every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Collect(ctx); err != nil && ctx.Err() == nil {
				s.deps.Logger.Warn("status sample failed", "error", err)
			}
		}
	}
}
