// Package geo holds the distance, walking-time and bounding-box primitives
// used by shelter lookup and alert fan-out. Nothing here performs I/O.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	// DefaultWalkSpeed is an average walking pace (about 5 km/h).
	DefaultWalkSpeed = 1.4

	// DefaultBoxRadiusKm is the nearby-search prefilter radius.
	DefaultBoxRadiusKm = 1.5

	kmPerDegreeLat = 111.0
)

var ErrInvalidArgument = errors.New("invalid argument")

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees. Inputs are not range-checked.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a marginally past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// WalkETASeconds is ETASeconds at DefaultWalkSpeed.
func WalkETASeconds(distanceKm float64) (int, error) {
	return ETASeconds(distanceKm, DefaultWalkSpeed)
}

// ETASeconds returns round(distanceKm*1000/speed) for a speed in metres per second.
func ETASeconds(distanceKm, speedMetersPerSecond float64) (int, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return 0, fmt.Errorf("%w: distance must be a non-negative number, got %v", ErrInvalidArgument, distanceKm)
	}
	if math.IsNaN(speedMetersPerSecond) || speedMetersPerSecond <= 0 {
		return 0, fmt.Errorf("%w: speed must be positive, got %v", ErrInvalidArgument, speedMetersPerSecond)
	}
	return int(math.Round(distanceKm * 1000 / speedMetersPerSecond)), nil
}

// Bounds is a latitude/longitude rectangle. A box crossing the 180° meridian
// has MinLon > MaxLon and covers [MinLon, 180] and [-180, MaxLon].
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (b Bounds) CrossesAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

func (b Bounds) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return lon >= b.MinLon || lon <= b.MaxLon
	}
	return lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox approximates a square around a point, 111 km per degree of
// latitude with a cos(lat) correction for longitude. It is a loose prefilter:
// corners lie outside the true radius, so callers must still apply HaversineKm.
// Longitudes are kept within [-180, 180], wrapping across the antimeridian.
func BoundingBox(lat, lon, radiusKm float64) Bounds {
	latDelta := radiusKm / kmPerDegreeLat

	lonDelta := math.Inf(1)
	if c := math.Cos(radians(lat)); c > 1e-9 {
		lonDelta = radiusKm / (kmPerDegreeLat * c)
	}

	minLon, maxLon := lon-lonDelta, lon+lonDelta
	switch {
	case lonDelta >= 180:
		// At the poles every meridian is in range.
		minLon, maxLon = -180, 180
	case minLon < -180:
		minLon += 360
	case maxLon > 180:
		maxLon -= 360
	}

	return Bounds{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLon: minLon,
		MaxLon: maxLon,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
