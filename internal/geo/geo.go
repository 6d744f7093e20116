package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Paths are kept in EPSG:4326 (lon, lat, alt) for GeoJSON and storage.
// Coords3857From4326 is used when a viewer wants web mercator metres.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3D is a lon/lat/alt triple as accepted on the command line and in
// query strings.
type Position3D struct {
	Lon float64
	Lat float64
	Alt float64
}

// Position3DFromString parses "lon,lat" or "lon,lat,alt". Components past
// the third are ignored. NaN and infinite components are rejected.
func Position3DFromString(coords string) (Position3D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Position3D{}, ErrInvalidCoordinates
	}
	lon, err := parseCoord(parts[0])
	if err != nil {
		return Position3D{}, err
	}
	lat, err := parseCoord(parts[1])
	if err != nil {
		return Position3D{}, err
	}
	var alt float64
	if len(parts) > 2 {
		if alt, err = parseCoord(parts[2]); err != nil {
			return Position3D{}, err
		}
	}
	return Position3D{Lon: lon, Lat: lat, Alt: alt}, nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidCoordinates
	}
	return v, nil
}

// Point returns p as an XYZ point in lon/lat order.
func (p Position3D) Point() geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.Lon, Y: p.Lat},
		Z:    p.Alt,
		Type: geom.DimXYZ,
	})
}

// Coords3857From4326 projects a longitude and latitude to web mercator.
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return geom.Point{}, ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
	return point, nil
}
