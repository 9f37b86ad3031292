// Package types holds small value objects shared across modules.
package types

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether c is the zero value, which callers treat as "unknown".
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Valid reports whether the latitude and longitude are within range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// String formats the coordinate as "lat,lng", the form map APIs accept.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// DistanceMeters returns the great-circle distance between c and other.
func (c Coordinate) DistanceMeters(other Coordinate) float64 {
	return haversineMeters(c.Lat, c.Lng, other.Lat, other.Lng)
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
