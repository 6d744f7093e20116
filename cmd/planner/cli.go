package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/orbitpath/planner/internal/api"
	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/dispatcher"
	"github.com/orbitpath/planner/internal/geo"
	"github.com/orbitpath/planner/internal/geodesy"
	"github.com/orbitpath/planner/internal/influx"
	"github.com/orbitpath/planner/internal/metrics"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/monitor"
	"github.com/orbitpath/planner/internal/planner"
	"github.com/orbitpath/planner/internal/server"
	"github.com/orbitpath/planner/internal/storage"
	"github.com/orbitpath/planner/internal/storage/memory"
)

func shortContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// services is everything a command needs to plan missions.
type services struct {
	planner    *planner.Service
	store      storage.Backend
	metrics    *metrics.Collector
	dispatcher *dispatcher.Dispatcher
	influx     *influx.Manager
}

func (s *services) Close() {
	if s.dispatcher != nil {
		ctx, cancel := shortContext()
		if err := s.dispatcher.Close(ctx); err != nil {
			Logger.Warn("Queued plans were not all exported", "error", err)
		}
		cancel()
	}
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		Logger.Warn("Failed to close storage backend", "error", err)
	}
}

func buildServices(reg prometheus.Registerer) (*services, error) {
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}

	store, err := initStorage()
	if err != nil {
		return nil, err
	}

	deps := planner.Dependencies{
		Storage: store,
		Metrics: collector,
		Logger:  Logger,
		Context: MissionContext,
		Config:  config.GetPlannerConfig(),
	}
	if OTelProvider != nil {
		deps.Meter = OTelProvider.Meter(AppName)
	}

	out := &services{
		store:   store,
		metrics: collector,
		influx:  initInflux(),
	}

	if out.influx != nil {
		d, err := dispatcher.New(Logger, deps.Meter)
		if err != nil {
			out.Close()
			return nil, err
		}
		d.Register(dispatcher.TopicPlanGenerated,
			dispatcher.PlanHandler(out.influx.WritePlan),
			dispatcher.Buffered(viper.GetInt("influx.queueSize")), dispatcher.Logged())
		out.dispatcher = d
		deps.Sink = d.Sink(dispatcher.TopicPlanGenerated)
	}

	out.planner, err = planner.New(deps)
	if err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}

func generateCmd(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	output := fs.StringP("output", "o", "", "write the plan to this file instead of stdout")
	asGeoJSON := fs.Bool("geojson", false, "write GeoJSON instead of the plan document")
	upload := fs.Bool("upload", false, "upload the exported plan to the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("generate takes exactly one mission file")
	}

	m, err := readMission(fs.Arg(0))
	if err != nil {
		return err
	}

	svc, err := buildServices(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.planner.Plan(ctx, m)
	if err != nil {
		return err
	}

	var data []byte
	if *asGeoJSON {
		data, err = geo.PathFeatureCollection(m.Name, m.Waypoints, p.Points)
	} else {
		data, err = json.MarshalIndent(memory.NewPlanExport(p), "", "  ")
	}
	if err != nil {
		return err
	}

	if *output == "" {
		if _, err := stdout.Write(append(data, '\n')); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(*output, data, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		Logger.Info("Wrote plan", "path", *output)
	}

	if *upload {
		return uploadPlan(ctx, svc.store)
	}
	return nil
}

func readMission(path string) (*mission.Mission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mission file: %w", err)
	}
	defer f.Close()
	return mission.Decode(f)
}

// uploadPlan sends the file the storage backend exported last.
func uploadPlan(ctx context.Context, store storage.Backend) error {
	up, ok := store.(storage.Uploadable)
	if !ok || up.GetExportedFilePath() == "" {
		return errors.New("storage backend did not export a file to upload")
	}

	client := api.New(viper.GetString("viewer.serverUrl"), viper.GetString("viewer.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("viewer not reachable: %w", err)
	}
	if err := client.Upload(ctx, up.GetExportedFilePath(), up.GetExportMetadata()); err != nil {
		return err
	}
	Logger.Info("Uploaded plan", "path", up.GetExportedFilePath())
	return nil
}

func serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.StringP("port", "p", "", "override server.port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := buildServices(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer svc.Close()

	serverCfg := config.GetServerConfig()
	if *port != "" {
		serverCfg.Port = *port
	}
	srv := server.New(svc.planner, svc.metrics, Logger, serverCfg)

	mon := monitor.NewService(monitor.Dependencies{
		Logger:         Logger,
		MissionContext: MissionContext,
		StorageType:    viper.GetString("storage.type"),
		StatusPath:     viper.GetString("monitor.statusPath"),
		Interval:       viper.GetDuration("monitor.interval"),
	})
	mon.Start()
	defer mon.Stop()
	srv.SetStatusSource(mon)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-stopCtx.Done():
	}

	Logger.Info("Shutting down HTTP server")
	ctx, cancel := shortContext()
	defer cancel()
	return srv.Shutdown(ctx)
}

func bearingCmd(args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return errors.New("bearing takes two positions as lon,lat")
	}
	from, err := geo.Position3DFromString(args[0])
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	to, err := geo.Position3DFromString(args[1])
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}

	radius := config.GetPlannerConfig().EarthRadius
	if radius <= 0 {
		radius = geodesy.EarthRadius
	}
	bearing := geodesy.InitialBearing(from.Lat, from.Lon, to.Lat, to.Lon)
	distance := geodesy.Distance(from.Lat, from.Lon, to.Lat, to.Lon, radius)
	_, err = fmt.Fprintf(stdout, "bearing %.4f° distance %.1f m\n", bearing, distance)
	return err
}
