package geo

import (
	"encoding/json"
	"fmt"

	"github.com/orbitpath/planner/internal/flightpath"
	geom "github.com/peterstace/simplefeatures/geom"
)

// WaypointPoint returns the waypoint position as an XYZ point.
func WaypointPoint(wp flightpath.Waypoint) geom.Point {
	return Position3D{Lon: wp.Lon, Lat: wp.Lat, Alt: wp.Alt}.Point()
}

// SamplePoint returns the sample position as an XYZ point.
func SamplePoint(p flightpath.SimulatedPoint) geom.Point {
	return Position3D{Lon: p.Lon, Lat: p.Lat, Alt: p.Alt}.Point()
}

// PathLineString builds an XYZ line string through the samples. Fewer
// than two samples yield an empty line string.
func PathLineString(points []flightpath.SimulatedPoint) geom.LineString {
	if len(points) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(points)*3)
	for _, p := range points {
		coords = append(coords, p.Lon, p.Lat, p.Alt)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXYZ))
}

// LineStringPoints is the inverse of PathLineString for positions only.
// Heading and orbit flags are not stored in the geometry.
func LineStringPoints(ls geom.LineString) []flightpath.SimulatedPoint {
	seq := ls.Coordinates()
	out := make([]flightpath.SimulatedPoint, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = flightpath.SimulatedPoint{Lat: c.Y, Lon: c.X, Alt: c.Z}
	}
	return out
}

// PathFeatureCollection renders a generated path as GeoJSON: one LineString
// feature for the path followed by one Point feature per waypoint.
func PathFeatureCollection(name string, waypoints []flightpath.Waypoint, points []flightpath.SimulatedPoint) ([]byte, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(waypoints)+1)

	fc = append(fc, geom.GeoJSONFeature{
		Geometry: PathLineString(points).AsGeometry(),
		ID:       "path",
		Properties: map[string]any{
			"name":    name,
			"samples": len(points),
		},
	})

	for i, wp := range waypoints {
		props := map[string]any{
			"index": i,
			"kind":  wp.Kind.String(),
		}
		if wp.Kind == flightpath.Orbit {
			props["radius"] = wp.Radius
			props["laps"] = wp.Laps
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   WaypointPoint(wp).AsGeometry(),
			ID:         fmt.Sprintf("wp-%d", i),
			Properties: props,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}
