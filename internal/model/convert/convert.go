package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/model"
	"github.com/orbitpath/planner/internal/playback"
)

// MissionFromModel converts a GORM mission back to the domain type.
// Waypoints are ordered by Seq regardless of load order.
func MissionFromModel(m model.Mission) *mission.Mission {
	wps := make([]model.Waypoint, len(m.Waypoints))
	copy(wps, m.Waypoints)
	sort.SliceStable(wps, func(i, j int) bool { return wps[i].Seq < wps[j].Seq })

	out := &mission.Mission{
		ID:        m.ID,
		Name:      m.Name,
		Speed:     m.Speed,
		CreatedAt: m.CreatedAt,
		Waypoints: make([]flightpath.Waypoint, len(wps)),
	}
	for i, w := range wps {
		wp := flightpath.Waypoint{
			Kind:   flightpath.ParseKind(w.Kind),
			Radius: w.Radius,
			Laps:   w.Laps,
		}
		if c, ok := w.Position.Coordinates(); ok {
			wp.Lon, wp.Lat, wp.Alt = c.X, c.Y, c.Z
		}
		out.Waypoints[i] = wp
	}
	return out
}

// PlanFromModel rebuilds a plan from its GORM form. m may be nil when the
// caller does not need the mission attached.
func PlanFromModel(fp model.FlightPlan, m *mission.Mission) (*mission.Plan, error) {
	var rows []model.FrameRow
	if len(fp.Frames) > 0 {
		if err := json.Unmarshal(fp.Frames, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode frames for plan %s: %w", fp.ID, err)
		}
	}

	points := make([]flightpath.SimulatedPoint, len(rows))
	frames := make([]playback.Frame, len(rows))
	for i, r := range rows {
		points[i] = flightpath.SimulatedPoint{
			Lat:     r.Lat,
			Lon:     r.Lon,
			Alt:     r.Alt,
			Heading: r.Heading,
			Orbit:   r.Orbit,
		}
		frames[i] = playback.Frame{
			Point:    points[i],
			Offset:   r.Offset,
			Distance: r.Distance,
		}
	}

	return &mission.Plan{
		ID:      fp.ID,
		Mission: m,
		Points:  points,
		Timeline: playback.Timeline{
			Frames:   frames,
			Duration: fp.Duration,
			Length:   fp.LengthM,
			Speed:    fp.Speed,
		},
		OrbitSamples: fp.OrbitSamples,
		GeneratedAt:  fp.GeneratedAt,
	}, nil
}

// PlanSummaryFromModel builds a listing entry without decoding frames.
// The mission name is taken from the preloaded association when present.
func PlanSummaryFromModel(fp model.FlightPlan) mission.PlanSummary {
	return mission.PlanSummary{
		ID:           fp.ID,
		MissionID:    fp.MissionID,
		MissionName:  fp.Mission.Name,
		Samples:      fp.SampleCount,
		OrbitSamples: fp.OrbitSamples,
		LengthM:      fp.LengthM,
		DurationS:    fp.Duration.Seconds(),
		GeneratedAt:  fp.GeneratedAt,
	}
}
