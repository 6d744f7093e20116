// Package geodesy holds the spherical-earth primitives the path generator is
// built on. The sphere radius is a parameter so callers can swap in a
// different value; EarthRadius is the one used everywhere by default.
package geodesy

import "math"

// EarthRadius is the WGS-84 equatorial radius in metres, used as the radius
// of the sphere. This is a visualization-grade approximation, not an
// ellipsoidal geodesic.
const EarthRadius = 6_378_137.0

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// Destination returns the point reached by travelling distance metres from
// (lat, lon) along the initial bearing, on a sphere of the given radius.
// Any real bearing is accepted; values outside [0, 360) are not reduced.
func Destination(lat, lon, distance, bearing, radius float64) (float64, float64) {
	lat1 := toRad(lat)
	lon1 := toRad(lon)
	theta := toRad(bearing)
	delta := distance / radius

	sinLat1, cosLat1 := math.Sin(lat1), math.Cos(lat1)
	sinDelta, cosDelta := math.Sin(delta), math.Cos(delta)

	lat2 := math.Asin(sinLat1*cosDelta + cosLat1*sinDelta*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*sinDelta*cosLat1,
		cosDelta-sinLat1*math.Sin(lat2),
	)

	return toDeg(lat2), toDeg(lon2)
}

// InitialBearing returns the compass bearing in [0, 360) from the first point
// towards the second. Coincident points give 0.
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dLon := toRad(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return NormalizeBearing(toDeg(math.Atan2(y, x)))
}

// NormalizeBearing maps any angle in degrees into [0, 360).
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg+360, 360)
	if b < 0 {
		b += 360
	}
	// math.Mod can return 360 for inputs a hair below a multiple of 360.
	if b >= 360 {
		b -= 360
	}
	return b
}

// Distance returns the great-circle (haversine) distance in metres between
// two points on a sphere of the given radius.
func Distance(lat1, lon1, lat2, lon2, radius float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dPhi := phi2 - phi1
	dLambda := toRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	return 2 * radius * math.Asin(math.Sqrt(a))
}

// AngleDiff returns the signed shortest rotation in degrees, in (-180, 180],
// that turns heading from into heading to.
func AngleDiff(from, to float64) float64 {
	d := NormalizeBearing(to - from)
	if d > 180 {
		d -= 360
	}
	return d
}
