// Package server exposes the planner over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/geo"
	"github.com/orbitpath/planner/internal/geodesy"
	"github.com/orbitpath/planner/internal/logging"
	"github.com/orbitpath/planner/internal/metrics"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/monitor"
	"github.com/orbitpath/planner/internal/planner"
	"github.com/orbitpath/planner/internal/storage"
)

const readyTimeout = 2 * time.Second

// Server is the REST API in front of a planner.Service.
type Server struct {
	app     *fiber.App
	planner *planner.Service
	store   storage.Backend
	metrics *metrics.Collector
	logger  *slog.Logger
	cfg     config.ServerConfig
	status  StatusSource
}

// StatusSource reports the runtime status served at /api/v1/status.
type StatusSource interface {
	GetStatus() monitor.Status
}

// New builds the fiber app and registers every route.
func New(svc *planner.Service, collector *metrics.Collector, logger *slog.Logger, cfg config.ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		planner: svc,
		store:   svc.Storage(),
		metrics: collector,
		logger:  logger,
		cfg:     cfg,
	}

	fc := fiber.Config{
		AppName:      "Mission Planner",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: s.handleError,
	}
	if cfg.BodyLimit > 0 {
		fc.BodyLimit = cfg.BodyLimit
	}
	s.app = fiber.New(fc)

	s.app.Use(recover.New())
	s.app.Use(s.observe)

	s.app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	s.app.Get("/health/ready", s.ready)
	s.app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	v1 := s.app.Group("/api/v1")
	v1.Post("/plans", s.createPlan)
	v1.Get("/plans", s.listPlans)
	v1.Get("/plans/:id", s.getPlan)
	v1.Get("/missions/:id", s.getMission)
	v1.Get("/geodesy/bearing", s.bearing)
	v1.Get("/geodesy/destination", s.destination)
	v1.Get("/status", s.getStatus)

	return s
}

// SetStatusSource attaches the monitor behind /api/v1/status.
func (s *Server) SetStatusSource(src StatusSource) {
	s.status = src
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured port until Shutdown.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	s.logger.Info("Starting HTTP server", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// observe tags the request context with a request ID, then logs every
// request and counts it by route template.
func (s *Server) observe(c fiber.Ctx) error {
	start := time.Now()

	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, reqID)
	c.SetContext(logging.ContextWith(c.Context(), slog.String(logging.KeyRequestID, reqID)))

	err := c.Next()
	if err != nil {
		// let the error handler write the response so the status is final
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	code := c.Response().StatusCode()
	route := c.Route().Path
	s.metrics.ObserveRequest(c.Method(), route, code)
	s.logger.DebugContext(c.Context(), "HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"route", route,
		"status", code,
		"latency", time.Since(start),
	)
	return nil
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, planner.ErrInvalidMission),
		errors.Is(err, planner.ErrTooManySamples),
		errors.Is(err, mission.ErrInvalidKind),
		errors.Is(err, geo.ErrInvalidCoordinates):
		return fiber.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) getStatus(c fiber.Ctx) error {
	if s.status == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "status monitor not running")
	}
	return c.JSON(s.status.GetStatus())
}

func (s *Server) ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyTimeout)
	defer cancel()
	if _, err := s.store.ListPlans(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) createPlan(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty body")
	}
	m, err := mission.Decode(bytes.NewReader(c.Body()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	p, err := s.planner.Plan(c.Context(), m)
	if err != nil {
		return err
	}

	c.Location("/api/v1/plans/" + p.ID)
	c.Status(fiber.StatusCreated)
	return s.writePlan(c, p)
}

func (s *Server) listPlans(c fiber.Ctx) error {
	plans, err := s.store.ListPlans(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"plans": plans})
}

func (s *Server) getPlan(c fiber.Ctx) error {
	p, err := s.store.GetPlan(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return s.writePlan(c, p)
}

func (s *Server) getMission(c fiber.Ctx) error {
	m, err := s.store.GetMission(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(m.Document())
}

// writePlan renders p as JSON, or as GeoJSON with ?format=geojson.
func (s *Server) writePlan(c fiber.Ctx, p *mission.Plan) error {
	if c.Query("format") == "geojson" {
		var (
			name      string
			waypoints []flightpath.Waypoint
		)
		if p.Mission != nil {
			name = p.Mission.Name
			waypoints = p.Mission.Waypoints
		}
		data, err := geo.PathFeatureCollection(name, waypoints, p.Points)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
	return c.JSON(newPlanResponse(p))
}

func (s *Server) bearing(c fiber.Ctx) error {
	from, err := geo.Position3DFromString(c.Query("from"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "from: "+err.Error())
	}
	to, err := geo.Position3DFromString(c.Query("to"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "to: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"bearing":  geodesy.InitialBearing(from.Lat, from.Lon, to.Lat, to.Lon),
		"distance": geodesy.Distance(from.Lat, from.Lon, to.Lat, to.Lon, s.earthRadius()),
	})
}

func (s *Server) earthRadius() float64 {
	if r := s.planner.Params().EarthRadius; r > 0 {
		return r
	}
	return geodesy.EarthRadius
}

func (s *Server) destination(c fiber.Ctx) error {
	from, err := geo.Position3DFromString(c.Query("from"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "from: "+err.Error())
	}
	distance, err := queryFloat(c, "distance")
	if err != nil {
		return err
	}
	bearing, err := queryFloat(c, "bearing")
	if err != nil {
		return err
	}

	lat, lon := geodesy.Destination(from.Lat, from.Lon, distance, bearing, s.earthRadius())
	return c.JSON(fiber.Map{"lat": lat, "lon": lon})
}

// queryFloat parses a finite number from the named query parameter.
func queryFloat(c fiber.Ctx, key string) (float64, error) {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be a finite number")
	}
	return v, nil
}
