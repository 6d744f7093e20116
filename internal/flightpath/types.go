package flightpath

import (
	"strings"

	"github.com/orbitpath/planner/internal/geodesy"
)

// Kind is the flight behaviour at a waypoint.
type Kind int

const (
	// Normal waypoints are flown straight through.
	Normal Kind = iota
	// Orbit waypoints are circled with the nose on the centre.
	Orbit
)

// String returns the lower-case name used in mission documents.
func (k Kind) String() string {
	switch k {
	case Orbit:
		return "orbit"
	default:
		return "normal"
	}
}

// ParseKind converts a mission-document kind into a Kind. Anything that is
// not "orbit" is treated as a plain waypoint.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), "orbit") {
		return Orbit
	}
	return Normal
}

// Waypoint is one planning input. Radius and Laps only matter for Orbit.
type Waypoint struct {
	Lat    float64 // degrees
	Lon    float64 // degrees
	Alt    float64 // metres
	Kind   Kind
	Radius float64 // metres
	Laps   int
}

// SimulatedPoint is one sample of the expanded flight path.
type SimulatedPoint struct {
	Lat     float64
	Lon     float64
	Alt     float64
	Heading float64 // degrees, [0, 360)
	Orbit   bool
}

// Params holds the constants the generator works with.
type Params struct {
	// EarthRadius is the sphere radius used for projection, in metres.
	EarthRadius float64
	// MinPointsPerLap is the sampling floor that keeps short orbits round.
	MinPointsPerLap int
	// SampleInterval is the simulated seconds of flight per orbit sample.
	SampleInterval float64
	// MinSpeed clamps the cruise speed used for lap timing, in m/s.
	MinSpeed float64
}

// Default generator constants.
const (
	DefaultSpeed           = 10.0
	DefaultMinPointsPerLap = 24
	DefaultSampleInterval  = 1.0
	DefaultMinSpeed        = 0.1
)

// DefaultParams returns the parameters Generate uses.
func DefaultParams() Params {
	return Params{
		EarthRadius:     geodesy.EarthRadius,
		MinPointsPerLap: DefaultMinPointsPerLap,
		SampleInterval:  DefaultSampleInterval,
		MinSpeed:        DefaultMinSpeed,
	}
}

// withFallbacks fills zero or invalid fields from DefaultParams so a partly
// populated Params never breaks the generator.
func (p Params) withFallbacks() Params {
	d := DefaultParams()
	if p.EarthRadius <= 0 {
		p.EarthRadius = d.EarthRadius
	}
	if p.MinPointsPerLap < 1 {
		p.MinPointsPerLap = d.MinPointsPerLap
	}
	if p.SampleInterval <= 0 {
		p.SampleInterval = d.SampleInterval
	}
	if p.MinSpeed <= 0 {
		p.MinSpeed = d.MinSpeed
	}
	return p
}
