package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/geodesy"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/playback"
)

func testPlan() *mission.Plan {
	m := &mission.Mission{
		ID:   "m1",
		Name: "Tower",
		Waypoints: []flightpath.Waypoint{
			{Lat: 1, Lon: 1, Alt: 10},
			{Lat: 1.001, Lon: 1.001, Alt: 20},
		},
	}
	points := flightpath.Generate(m.Waypoints, 5)
	return &mission.Plan{
		ID:          "p1",
		Mission:     m,
		Points:      points,
		Timeline:    playback.Schedule(points, 5, geodesy.EarthRadius),
		GeneratedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func gunzipLines(t *testing.T, data []byte) []string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(out)), "\n")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.False(t, m.IsValid)
}

func TestConnect_UnreachableFallsBackToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "o",
		Bucket:   "b",
	}, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	require.NoError(t, m.WritePlan(ctx, testPlan()))
	require.NoError(t, m.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := gunzipLines(t, data)
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], MeasurementStats))
}

func TestWritePlan_Backup(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	m.BackupWriter = gzip.NewWriter(&buf)

	p := testPlan()
	require.NoError(t, m.WritePlan(context.Background(), p))
	require.NoError(t, m.BackupWriter.Close())

	lines := gunzipLines(t, buf.Bytes())
	require.Len(t, lines, len(p.Timeline.Frames)+1)

	first := lines[0]
	assert.True(t, strings.HasPrefix(first, "flight_sample,"))
	assert.Contains(t, first, "mission=Tower")
	assert.Contains(t, first, "orbit=false")
	assert.Contains(t, first, "plan=p1")
	assert.Contains(t, first, "offset_s=0")
	assert.True(t, strings.HasSuffix(first, " 1777622400000000000"), first)

	stats := lines[len(lines)-1]
	assert.Contains(t, stats, "samples=2i")
	assert.Contains(t, stats, "orbit_samples=0i")
}

func TestWritePlan_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	m.BackupWriter = gzip.NewWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.WritePlan(ctx, testPlan()), context.Canceled)
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	err := m.WritePoint(StatsPoint(mission.PlanSummary{ID: "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup writer not available")

	m.IsValid = true
	assert.Error(t, m.WritePoint(StatsPoint(mission.PlanSummary{ID: "x"})))
}

func TestSamplePoint_Timestamp(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := SamplePoint("p", "m", start, 1, 2, 3, 90, true, 1500*time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), p.Time())
	assert.Equal(t, MeasurementSample, p.Name())
}
