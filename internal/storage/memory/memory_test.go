package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/geodesy"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/playback"
	"github.com/orbitpath/planner/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Uploadable interface
var _ storage.Uploadable = (*Backend)(nil)

func testMission(id string) *mission.Mission {
	return &mission.Mission{
		ID:    id,
		Name:  "Mast check " + id,
		Speed: 6,
		Waypoints: []flightpath.Waypoint{
			{Lat: 46.0, Lon: 7.0, Alt: 20},
			{Lat: 46.0005, Lon: 7.0005, Alt: 35, Kind: flightpath.Orbit, Radius: 20, Laps: 1},
		},
	}
}

func testPlan(id string, m *mission.Mission, at time.Time) *mission.Plan {
	points := flightpath.Generate(m.Waypoints, m.Speed)
	return &mission.Plan{
		ID:           id,
		Mission:      m,
		Points:       points,
		Timeline:     playback.Schedule(points, m.Speed, geodesy.EarthRadius),
		OrbitSamples: mission.CountOrbitSamples(points),
		GeneratedAt:  at,
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true})
	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test", b.cfg.OutputDir)
	assert.True(t, b.cfg.CompressOutput)
	assert.NotNil(t, b.missions)
	assert.NotNil(t, b.plans)
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestSaveAndGetMission(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})

	m := testMission("m1")
	require.NoError(t, b.SaveMission(ctx, m))

	got, err := b.GetMission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = b.GetMission(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveMission_RequiresID(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Error(t, b.SaveMission(context.Background(), &mission.Mission{}))
	assert.Error(t, b.SavePlan(context.Background(), &mission.Plan{}))
}

func TestSaveAndGetPlan_NoExportWithoutOutputDir(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})
	m := testMission("m1")
	p := testPlan("p1", m, time.Now())

	require.NoError(t, b.SavePlan(ctx, p))

	got, err := b.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Empty(t, b.GetExportedFilePath())

	_, err = b.GetPlan(ctx, "p2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSavePlan_ExportFailureLeavesPlanUnstored(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	b := New(config.MemoryConfig{OutputDir: filepath.Join(blocker, "paths")})
	p := testPlan("p1", testMission("m1"), time.Now())

	require.Error(t, b.SavePlan(ctx, p))

	_, err := b.GetPlan(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	plans, err := b.ListPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
	assert.Empty(t, b.GetExportedFilePath())
}

func TestListPlans_NewestFirst(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	m := testMission("m1")
	require.NoError(t, b.SavePlan(ctx, testPlan("old", m, base)))
	require.NoError(t, b.SavePlan(ctx, testPlan("new", m, base.Add(time.Hour))))
	require.NoError(t, b.SavePlan(ctx, testPlan("mid", m, base.Add(time.Minute))))

	list, err := b.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
	assert.Equal(t, "m1", list[0].MissionID)
}

func TestListPlans_Empty(t *testing.T) {
	list, err := New(config.MemoryConfig{}).ListPlans(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})
	m := testMission("m1")
	require.NoError(t, b.SaveMission(ctx, m))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.SavePlan(ctx, testPlan(fmt.Sprintf("p%d", i), m, time.Now()))
			_, _ = b.ListPlans(ctx)
			_, _ = b.GetMission(ctx, "m1")
		}(i)
	}
	wg.Wait()

	list, err := b.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 20)
}
