// Package convert maps planner domain types to and from GORM models.
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/orbitpath/planner/internal/geo"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/model"
	"gorm.io/datatypes"
)

// MissionToModel converts a mission to its GORM form. Waypoint order is
// kept in Seq.
func MissionToModel(m *mission.Mission) model.Mission {
	out := model.Mission{
		ID:        m.ID,
		Name:      m.Name,
		Speed:     m.Speed,
		CreatedAt: m.CreatedAt,
		Waypoints: make([]model.Waypoint, len(m.Waypoints)),
	}
	for i, wp := range m.Waypoints {
		out.Waypoints[i] = model.Waypoint{
			MissionID: m.ID,
			Seq:       i,
			Position:  geo.WaypointPoint(wp),
			Kind:      wp.Kind.String(),
			Radius:    wp.Radius,
			Laps:      wp.Laps,
		}
	}
	return out
}

// PlanToModel converts a plan to its GORM form. The mission itself is not
// embedded; save it separately.
func PlanToModel(p *mission.Plan) (model.FlightPlan, error) {
	rows := make([]model.FrameRow, len(p.Timeline.Frames))
	for i, f := range p.Timeline.Frames {
		rows[i] = model.FrameRow{
			Lat:      f.Point.Lat,
			Lon:      f.Point.Lon,
			Alt:      f.Point.Alt,
			Heading:  f.Point.Heading,
			Orbit:    f.Point.Orbit,
			Offset:   f.Offset,
			Distance: f.Distance,
		}
	}
	frames, err := json.Marshal(rows)
	if err != nil {
		return model.FlightPlan{}, fmt.Errorf("failed to encode frames: %w", err)
	}

	out := model.FlightPlan{
		ID:           p.ID,
		Speed:        p.Timeline.Speed,
		SampleCount:  len(p.Points),
		OrbitSamples: p.OrbitSamples,
		LengthM:      p.Timeline.Length,
		Duration:     p.Timeline.Duration,
		Path:         geo.PathLineString(p.Points),
		Frames:       datatypes.JSON(frames),
		GeneratedAt:  p.GeneratedAt,
	}
	if p.Mission != nil {
		out.MissionID = p.Mission.ID
	}
	return out, nil
}
