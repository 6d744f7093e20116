package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the planner's Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	PlansGenerated     prometheus.Counter
	SamplesEmitted     *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
}

// NewCollector registers the planner metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice on the same
// registry returns the collectors already there.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	plans, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_plans_generated_total",
		Help: "Total number of flight plans generated.",
	}), "planner_plans_generated_total")
	if err != nil {
		return nil, err
	}

	samples, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_samples_emitted_total",
		Help: "Total number of path samples emitted, labeled by whether they belong to an orbit.",
	}, []string{"orbit"}), "planner_samples_emitted_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_generation_duration_seconds",
		Help:    "Time spent expanding a mission into a flight plan.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "planner_generation_duration_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "planner_http_requests_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		PlansGenerated:     plans,
		SamplesEmitted:     samples,
		GenerationDuration: duration,
		HTTPRequests:       requests,
	}, nil
}

// ObservePlan records one generated plan.
func (c *Collector) ObservePlan(total, orbit int, seconds float64) {
	if c == nil {
		return
	}
	c.PlansGenerated.Inc()
	c.SamplesEmitted.WithLabelValues("true").Add(float64(orbit))
	c.SamplesEmitted.WithLabelValues("false").Add(float64(total - orbit))
	c.GenerationDuration.Observe(seconds)
}

// ObserveRequest records one handled HTTP request.
func (c *Collector) ObserveRequest(method, route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
