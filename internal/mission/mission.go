package mission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orbitpath/planner/internal/flightpath"
)

// Validation errors. Validate joins every problem it finds, so callers
// should test with errors.Is.
var (
	ErrNoWaypoints      = errors.New("mission has no waypoints")
	ErrInvalidLatitude  = errors.New("latitude out of range")
	ErrInvalidLongitude = errors.New("longitude out of range")
	ErrInvalidOrbit     = errors.New("invalid orbit parameters")
	ErrInvalidKind      = errors.New("unknown waypoint type")
)

// Mission is a named, ordered waypoint list flown at one cruise speed.
type Mission struct {
	ID        string
	Name      string
	Speed     float64 // m/s
	Waypoints []flightpath.Waypoint
	CreatedAt time.Time
}

// WaypointJSON is the on-disk form of a waypoint.
type WaypointJSON struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt"`
	Type   string  `json:"type,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	Laps   int     `json:"laps,omitempty"`
}

// Document is the on-disk form of a mission.
type Document struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Speed     float64        `json:"speed,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	Waypoints []WaypointJSON `json:"waypoints"`
}

// Decode reads a mission document. Unknown waypoint types are reported as
// ErrInvalidKind; other semantic checks are left to Validate.
func Decode(r io.Reader) (*Mission, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode mission JSON: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument converts the on-disk form into a Mission.
func FromDocument(doc Document) (*Mission, error) {
	m := &Mission{
		ID:        doc.ID,
		Name:      doc.Name,
		Speed:     doc.Speed,
		Waypoints: make([]flightpath.Waypoint, 0, len(doc.Waypoints)),
	}
	if doc.CreatedAt != nil {
		m.CreatedAt = *doc.CreatedAt
	}

	for i, w := range doc.Waypoints {
		kind, err := parseType(w.Type)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		m.Waypoints = append(m.Waypoints, flightpath.Waypoint{
			Lat:    w.Lat,
			Lon:    w.Lon,
			Alt:    w.Alt,
			Kind:   kind,
			Radius: w.Radius,
			Laps:   w.Laps,
		})
	}
	return m, nil
}

func parseType(s string) (flightpath.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "waypoint":
		return flightpath.Normal, nil
	case "orbit":
		return flightpath.Orbit, nil
	default:
		return flightpath.Normal, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Document returns the on-disk form of m.
func (m *Mission) Document() Document {
	doc := Document{
		ID:        m.ID,
		Name:      m.Name,
		Speed:     m.Speed,
		Waypoints: make([]WaypointJSON, 0, len(m.Waypoints)),
	}
	if !m.CreatedAt.IsZero() {
		t := m.CreatedAt
		doc.CreatedAt = &t
	}
	for _, w := range m.Waypoints {
		wj := WaypointJSON{
			Lat:  w.Lat,
			Lon:  w.Lon,
			Alt:  w.Alt,
			Type: w.Kind.String(),
		}
		if w.Kind == flightpath.Orbit {
			wj.Radius = w.Radius
			wj.Laps = w.Laps
		}
		doc.Waypoints = append(doc.Waypoints, wj)
	}
	return doc
}

// Encode writes m as indented JSON.
func Encode(w io.Writer, m *Mission) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Document()); err != nil {
		return fmt.Errorf("failed to encode mission JSON: %w", err)
	}
	return nil
}

// Validate reports everything a planner UI would reject before handing the
// waypoints to the generator. The generator itself accepts all of it.
func (m *Mission) Validate() error {
	if len(m.Waypoints) == 0 {
		return ErrNoWaypoints
	}

	var errs []error
	for i, w := range m.Waypoints {
		if w.Lat < -90 || w.Lat > 90 {
			errs = append(errs, fmt.Errorf("waypoint %d: %w: %v", i, ErrInvalidLatitude, w.Lat))
		}
		if w.Lon < -180 || w.Lon > 180 {
			errs = append(errs, fmt.Errorf("waypoint %d: %w: %v", i, ErrInvalidLongitude, w.Lon))
		}
		if w.Kind == flightpath.Orbit {
			if w.Radius <= 0 {
				errs = append(errs, fmt.Errorf("waypoint %d: %w: radius must be > 0, got %v", i, ErrInvalidOrbit, w.Radius))
			}
			if w.Laps < 1 {
				errs = append(errs, fmt.Errorf("waypoint %d: %w: laps must be >= 1, got %d", i, ErrInvalidOrbit, w.Laps))
			}
		}
	}
	return errors.Join(errs...)
}

// Normalize fills in the cruise speed when the document leaves it unset or
// non-positive, and sets unspecified (zero) orbit laps to one.
func (m *Mission) Normalize(defaultSpeed float64) {
	if m.Speed <= 0 {
		m.Speed = defaultSpeed
	}
	for i := range m.Waypoints {
		if m.Waypoints[i].Kind == flightpath.Orbit && m.Waypoints[i].Laps == 0 {
			m.Waypoints[i].Laps = 1
		}
	}
}

// OrbitCount returns how many waypoints are orbits.
func (m *Mission) OrbitCount() int {
	n := 0
	for _, w := range m.Waypoints {
		if w.Kind == flightpath.Orbit {
			n++
		}
	}
	return n
}
