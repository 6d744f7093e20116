// Package playback turns a generated path into a paced timeline: each sample
// gets a time offset derived from the distance flown since the previous
// sample at the cruise speed.
package playback

import (
	"math"
	"sort"
	"time"

	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/geodesy"
)

// MinSpeed is the floor applied to the cruise speed when pacing samples.
const MinSpeed = flightpath.DefaultMinSpeed

// Frame is a path sample placed on the timeline.
type Frame struct {
	Point    flightpath.SimulatedPoint
	Offset   time.Duration // since the first sample
	Distance float64       // metres flown since the first sample
}

// Timeline is a paced path.
type Timeline struct {
	Frames   []Frame
	Duration time.Duration
	Length   float64 // metres
	Speed    float64 // m/s, after clamping
}

// Schedule paces points at speed on a sphere of the given radius. The
// segment length includes the altitude change between samples.
func Schedule(points []flightpath.SimulatedPoint, speed, radius float64) Timeline {
	speed = math.Max(MinSpeed, speed)
	if math.IsNaN(speed) {
		speed = MinSpeed
	}
	if radius <= 0 {
		radius = geodesy.EarthRadius
	}

	tl := Timeline{
		Frames: make([]Frame, len(points)),
		Speed:  speed,
	}

	var total float64
	for i, p := range points {
		if i > 0 {
			prev := points[i-1]
			ground := geodesy.Distance(prev.Lat, prev.Lon, p.Lat, p.Lon, radius)
			climb := p.Alt - prev.Alt
			total += math.Hypot(ground, climb)
		}
		tl.Frames[i] = Frame{
			Point:    p,
			Offset:   secondsToDuration(total / speed),
			Distance: total,
		}
	}

	tl.Length = total
	if n := len(tl.Frames); n > 0 {
		tl.Duration = tl.Frames[n-1].Offset
	}
	return tl
}

// At returns the interpolated position at offset. Offsets outside the
// timeline clamp to the first or last sample. Heading turns the short way.
func (tl Timeline) At(offset time.Duration) (flightpath.SimulatedPoint, bool) {
	n := len(tl.Frames)
	if n == 0 {
		return flightpath.SimulatedPoint{}, false
	}
	if offset <= 0 {
		return tl.Frames[0].Point, true
	}
	if offset >= tl.Duration {
		return tl.Frames[n-1].Point, true
	}

	// first frame strictly after offset
	i := sort.Search(n, func(i int) bool { return tl.Frames[i].Offset > offset })
	a, b := tl.Frames[i-1], tl.Frames[i]
	span := b.Offset - a.Offset
	if span <= 0 {
		return b.Point, true
	}
	f := float64(offset-a.Offset) / float64(span)

	return flightpath.SimulatedPoint{
		Lat:     lerp(a.Point.Lat, b.Point.Lat, f),
		Lon:     lerp(a.Point.Lon, b.Point.Lon, f),
		Alt:     lerp(a.Point.Alt, b.Point.Alt, f),
		Heading: geodesy.NormalizeBearing(a.Point.Heading + geodesy.AngleDiff(a.Point.Heading, b.Point.Heading)*f),
		Orbit:   a.Point.Orbit && b.Point.Orbit,
	}, true
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func secondsToDuration(s float64) time.Duration {
	if math.IsInf(s, 0) || s > float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
