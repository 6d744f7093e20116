// Package flightpath expands an ordered list of waypoints into the dense,
// headed sample sequence a preview flight follows.
//
// The generator is pure: it does no I/O, keeps no state between calls and
// never fails. Degenerate input (no waypoints, zero radius, out-of-range
// coordinates) yields a defined, possibly degenerate, path.
package flightpath

import (
	"math"

	"github.com/orbitpath/planner/internal/geodesy"
)

// maxPrealloc bounds the up-front allocation for very large orbits.
const maxPrealloc = 1 << 20

// Generate expands waypoints at the given cruise speed using DefaultParams.
func Generate(waypoints []Waypoint, speed float64) []SimulatedPoint {
	return GenerateWithParams(waypoints, speed, DefaultParams())
}

// GenerateWithParams expands waypoints in order. Orbit waypoints become a
// circular sampling around their position; every other waypoint becomes a
// single sample headed at its successor.
func GenerateWithParams(waypoints []Waypoint, speed float64, p Params) []SimulatedPoint {
	p = p.withFallbacks()
	out := make([]SimulatedPoint, 0, max(0, min(EstimateSamples(waypoints, speed, p), maxPrealloc)))

	for i, wp := range waypoints {
		if wp.Kind == Orbit {
			out = appendOrbit(out, wp, speed, p)
			continue
		}

		var heading float64
		switch {
		case i+1 < len(waypoints):
			next := waypoints[i+1]
			heading = geodesy.InitialBearing(wp.Lat, wp.Lon, next.Lat, next.Lon)
		case i > 0 && len(out) > 0:
			// trailing waypoint keeps the approach heading
			heading = out[len(out)-1].Heading
		}

		out = append(out, SimulatedPoint{
			Lat:     wp.Lat,
			Lon:     wp.Lon,
			Alt:     wp.Alt,
			Heading: heading,
		})
	}

	return out
}

// PointsPerLap returns how many samples one lap of an orbit with the given
// radius gets at speed: one per SampleInterval of flight, never fewer than
// MinPointsPerLap.
func PointsPerLap(radius, speed float64, p Params) int {
	p = p.withFallbacks()

	circumference := 2 * math.Pi * radius
	timePerLap := circumference / math.Max(p.MinSpeed, speed)

	n := math.Ceil(timePerLap / p.SampleInterval)
	if math.IsNaN(n) || n < float64(p.MinPointsPerLap) {
		return p.MinPointsPerLap
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// OrbitSamples returns the number of samples an orbit waypoint expands to.
// The start angle is re-sampled at the end, so this is one more than
// PointsPerLap × laps, saturating at math.MaxInt.
func OrbitSamples(wp Waypoint, speed float64, p Params) int {
	return orbitSteps(PointsPerLap(wp.Radius, speed, p), laps(wp)) + 1
}

// EstimateSamples returns the exact length of the sequence GenerateWithParams
// produces for the same arguments. Counts too large for an int saturate at
// math.MaxInt.
func EstimateSamples(waypoints []Waypoint, speed float64, p Params) int {
	n := 0
	for _, wp := range waypoints {
		add := 1
		if wp.Kind == Orbit {
			add = OrbitSamples(wp, speed, p)
		}
		if n > math.MaxInt-add {
			return math.MaxInt
		}
		n += add
	}
	return n
}

// orbitSteps is perLap × laps, capped so the closing sample still fits in
// an int.
func orbitSteps(perLap, laps int) int {
	if limit := (math.MaxInt - 1) / perLap; laps > limit {
		return limit * perLap
	}
	return perLap * laps
}

func laps(wp Waypoint) int {
	if wp.Laps < 1 {
		return 1
	}
	return wp.Laps
}

func appendOrbit(out []SimulatedPoint, wp Waypoint, speed float64, p Params) []SimulatedPoint {
	perLap := PointsPerLap(wp.Radius, speed, p)
	totalSteps := orbitSteps(perLap, laps(wp))
	step := 360.0 / float64(perLap)

	for j := 0; j <= totalSteps; j++ {
		// The angle keeps growing past 360 on later laps.
		angle := float64(j) * step
		lat, lon := geodesy.Destination(wp.Lat, wp.Lon, wp.Radius, angle, p.EarthRadius)

		out = append(out, SimulatedPoint{
			Lat:     lat,
			Lon:     lon,
			Alt:     wp.Alt,
			Heading: geodesy.InitialBearing(lat, lon, wp.Lat, wp.Lon),
			Orbit:   true,
		})
	}
	return out
}
