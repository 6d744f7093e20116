package mission

import (
	"time"

	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/playback"
)

// Plan is a mission expanded into a paced flight path.
type Plan struct {
	ID           string
	Mission      *Mission
	Points       []flightpath.SimulatedPoint
	Timeline     playback.Timeline
	OrbitSamples int
	GeneratedAt  time.Time
}

// PlanSummary is the listing form of a Plan.
type PlanSummary struct {
	ID           string    `json:"id"`
	MissionID    string    `json:"missionId"`
	MissionName  string    `json:"missionName"`
	Samples      int       `json:"samples"`
	OrbitSamples int       `json:"orbitSamples"`
	LengthM      float64   `json:"lengthM"`
	DurationS    float64   `json:"durationS"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Summary returns the listing form of p.
func (p *Plan) Summary() PlanSummary {
	s := PlanSummary{
		ID:           p.ID,
		Samples:      len(p.Points),
		OrbitSamples: p.OrbitSamples,
		LengthM:      p.Timeline.Length,
		DurationS:    p.Timeline.Duration.Seconds(),
		GeneratedAt:  p.GeneratedAt,
	}
	if p.Mission != nil {
		s.MissionID = p.Mission.ID
		s.MissionName = p.Mission.Name
	}
	return s
}

// CountOrbitSamples returns how many points were emitted by orbit expansion.
func CountOrbitSamples(points []flightpath.SimulatedPoint) int {
	n := 0
	for _, p := range points {
		if p.Orbit {
			n++
		}
	}
	return n
}
