package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/mission"
)

// Measurement names.
const (
	MeasurementSample = "flight_sample"
	MeasurementStats  = "plan_stats"
)

// ErrDisabled is returned by Connect when InfluxDB is switched off.
var ErrDisabled = errors.New("influx is disabled")

// Manager writes generated plans to InfluxDB, or to a gzip line protocol
// backup file when the server cannot be reached.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Config       config.InfluxConfig
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Config:     cfg,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB. An unreachable server is
// not an error: points go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.Config.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.Config.Protocol, m.Config.Host, m.Config.Port),
		m.Config.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.Config.Org

	org, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Config.Bucket); err == nil {
		return nil
	}

	m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.Config.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.Config.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.Config.Org, m.Config.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Config.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		if m.Writer == nil {
			return errors.New("influxDB writer not initialized")
		}
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WritePlan writes one flight_sample point per timeline frame, stamped at
// the plan's generation time plus the frame offset, and one plan_stats
// point.
func (m *Manager) WritePlan(ctx context.Context, p *mission.Plan) error {
	missionName := ""
	if p.Mission != nil {
		missionName = p.Mission.Name
	}

	for i, f := range p.Timeline.Frames {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		point := SamplePoint(p.ID, missionName, p.GeneratedAt, f.Point.Lat, f.Point.Lon, f.Point.Alt,
			f.Point.Heading, f.Point.Orbit, f.Offset)
		if err := m.WritePoint(point); err != nil {
			return err
		}
	}

	return m.WritePoint(StatsPoint(p.Summary()))
}

// SamplePoint builds a flight_sample point.
func SamplePoint(planID, missionName string, start time.Time, lat, lon, alt, heading float64, orbit bool, offset time.Duration) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementSample,
		map[string]string{
			"mission": missionName,
			"plan":    planID,
			"orbit":   fmt.Sprintf("%t", orbit),
		},
		map[string]interface{}{
			"lat":      lat,
			"lon":      lon,
			"alt":      alt,
			"heading":  heading,
			"offset_s": offset.Seconds(),
		},
		start.Add(offset),
	)
}

// StatsPoint builds a plan_stats point.
func StatsPoint(s mission.PlanSummary) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementStats,
		map[string]string{
			"mission": s.MissionName,
			"plan":    s.ID,
		},
		map[string]interface{}{
			"samples":       s.Samples,
			"orbit_samples": s.OrbitSamples,
			"length_m":      s.LengthM,
			"duration_s":    s.DurationS,
		},
		s.GeneratedAt,
	)
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}
