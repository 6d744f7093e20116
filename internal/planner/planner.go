// Package planner turns mission documents into stored flight plans.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/logging"
	"github.com/orbitpath/planner/internal/metrics"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/playback"
	"github.com/orbitpath/planner/internal/storage"
)

// DefaultMaxSamples caps the size of a single plan.
const DefaultMaxSamples = 2_000_000

var (
	// ErrInvalidMission wraps every validation failure.
	ErrInvalidMission = errors.New("invalid mission")
	// ErrTooManySamples is returned when a mission would expand past MaxSamples.
	ErrTooManySamples = errors.New("mission expands to too many samples")
)

// PlanSink receives every generated plan after it is stored.
type PlanSink interface {
	WritePlan(ctx context.Context, p *mission.Plan) error
}

// Dependencies holds what a Service needs. Only Storage is required.
type Dependencies struct {
	Storage    storage.Backend
	Sink       PlanSink
	Metrics    *metrics.Collector
	Meter      metric.Meter
	Logger     *slog.Logger
	Context    *mission.Context
	Config     config.PlannerConfig
	MaxSamples int
}

// Service validates missions, expands them and persists the result.
type Service struct {
	deps   Dependencies
	params flightpath.Params

	plansCounter   metric.Int64Counter
	samplesCounter metric.Int64Counter
}

// New creates a Service.
func New(deps Dependencies) (*Service, error) {
	if deps.Storage == nil {
		return nil, errors.New("planner: storage backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Meter == nil {
		deps.Meter = otel.GetMeterProvider().Meter("mission-planner")
	}
	if deps.MaxSamples <= 0 {
		deps.MaxSamples = DefaultMaxSamples
	}
	if deps.Config.Speed <= 0 {
		deps.Config.Speed = flightpath.DefaultSpeed
	}

	plans, err := deps.Meter.Int64Counter("planner.plans",
		metric.WithDescription("Flight plans generated"))
	if err != nil {
		return nil, fmt.Errorf("failed to create plans counter: %w", err)
	}
	samples, err := deps.Meter.Int64Counter("planner.samples",
		metric.WithDescription("Path samples emitted"))
	if err != nil {
		return nil, fmt.Errorf("failed to create samples counter: %w", err)
	}

	return &Service{
		deps:           deps,
		params:         paramsFromConfig(deps.Config),
		plansCounter:   plans,
		samplesCounter: samples,
	}, nil
}

func paramsFromConfig(c config.PlannerConfig) flightpath.Params {
	return flightpath.Params{
		EarthRadius:     c.EarthRadius,
		MinPointsPerLap: c.MinPointsPerLap,
		SampleInterval:  c.SampleInterval.Seconds(),
		MinSpeed:        c.MinSpeed,
	}
}

// Params returns the generator parameters in use.
func (s *Service) Params() flightpath.Params {
	return s.params
}

// Storage returns the backend plans are saved to.
func (s *Service) Storage() storage.Backend {
	return s.deps.Storage
}

// Plan validates m, expands it and stores both. m is normalised in place
// and gets an ID and creation time when it has none.
func (s *Service) Plan(ctx context.Context, m *mission.Mission) (*mission.Plan, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no mission", ErrInvalidMission)
	}

	m.Normalize(s.deps.Config.Speed)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMission, err)
	}
	if n := flightpath.EstimateSamples(m.Waypoints, m.Speed, s.params); n > s.deps.MaxSamples {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySamples, n, s.deps.MaxSamples)
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	points := flightpath.GenerateWithParams(m.Waypoints, m.Speed, s.params)
	timeline := playback.Schedule(points, m.Speed, s.params.EarthRadius)
	elapsed := time.Since(start)

	p := &mission.Plan{
		ID:           uuid.NewString(),
		Mission:      m,
		Points:       points,
		Timeline:     timeline,
		OrbitSamples: mission.CountOrbitSamples(points),
		GeneratedAt:  time.Now().UTC(),
	}

	s.deps.Metrics.ObservePlan(len(points), p.OrbitSamples, elapsed.Seconds())
	attrs := metric.WithAttributes(attribute.String("mission", m.Name))
	s.plansCounter.Add(ctx, 1, attrs)
	s.samplesCounter.Add(ctx, int64(len(points)), attrs)

	ctx = logging.WithPlan(ctx, m.ID, m.Name, p.ID)
	s.deps.Logger.InfoContext(ctx, "Plan generated",
		"waypoints", len(m.Waypoints),
		"samples", len(points),
		"orbitSamples", p.OrbitSamples,
		"lengthM", timeline.Length,
		"duration", timeline.Duration,
		"elapsed", elapsed,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.deps.Storage.SaveMission(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mission: %w", err)
	}
	if err := s.deps.Storage.SavePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	if s.deps.Sink != nil {
		if err := s.deps.Sink.WritePlan(ctx, p); err != nil {
			// the plan is already stored; the sink is best effort
			s.deps.Logger.WarnContext(ctx, "Failed to write plan to sink", "error", err)
		}
	}

	if s.deps.Context != nil {
		s.deps.Context.SetMission(m, p.ID)
	}

	return p, nil
}
