package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitpath/planner/internal/mission"
)

func TestGetStatus_NoMission(t *testing.T) {
	s := NewService(Dependencies{StorageType: "memory"})

	st := s.GetStatus()
	assert.Equal(t, "memory", st.Storage)
	assert.Empty(t, st.ActiveMission)
	assert.Empty(t, st.LastPlanID)
	assert.Positive(t, st.Goroutines)
	assert.Positive(t, st.HeapAllocBytes)
	assert.GreaterOrEqual(t, st.UptimeS, 0.0)
}

func TestGetStatus_ActiveMission(t *testing.T) {
	mc := mission.NewContext()
	mc.SetMission(&mission.Mission{ID: "m-1", Name: "Survey"}, "plan-1")

	st := NewService(Dependencies{MissionContext: mc}).GetStatus()
	assert.Equal(t, "Survey", st.ActiveMission)
	assert.Equal(t, "m-1", st.ActiveMissionID)
	assert.Equal(t, "plan-1", st.LastPlanID)
}

func TestStartStop(t *testing.T) {
	s := NewService(Dependencies{Interval: 10 * time.Millisecond})
	assert.False(t, s.IsRunning())

	s.Start()
	assert.True(t, s.IsRunning())
	s.Start() // second start is a no-op

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	mc := mission.NewContext()
	mc.SetMission(&mission.Mission{Name: "Tower"}, "plan-9")

	s := NewService(Dependencies{
		MissionContext: mc,
		StatusPath:     path,
		Interval:       5 * time.Millisecond,
	})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "Tower", st.ActiveMission)
	assert.Equal(t, "plan-9", st.LastPlanID)
}
