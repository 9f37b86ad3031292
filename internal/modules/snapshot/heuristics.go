package snapshot

import (
	"fmt"
	"math"
	"strings"
	"time"

	"commute/internal/maps"
	"commute/internal/types"
	"commute/internal/weather"
)

// Synthetic route speed when no route data exists: about 47 km/h.
const syntheticSpeedMS = 13.0

var impactDelay = map[weather.Impact]time.Duration{
	weather.ImpactNone:     0,
	weather.ImpactMinor:    120 * time.Second,
	weather.ImpactModerate: 240 * time.Second,
	weather.ImpactMajor:    420 * time.Second,
	weather.ImpactSevere:   600 * time.Second,
}

const (
	windDelay       = 120 * time.Second
	visibilityDelay = 180 * time.Second
	highWindMS      = 12.0
	lowVisibilityM  = 5000.0
)

// heuristicsDelay is the traffic delay plus weather-driven slowdowns.
func heuristicsDelay(r maps.RouteInfo, w weather.Data) time.Duration {
	d := r.TrafficDelay + impactDelay[w.Conditions.Impact()]
	if w.WindSpeedMS > highWindMS {
		d += windDelay
	}
	if w.VisibilityMeters < lowVisibilityM {
		d += visibilityDelay
	}
	return d
}

// Confidence is computed in hundredths so penalties compose exactly.
const (
	confidenceBase        = 90
	confidenceFloor       = 30
	routeFailurePenalty   = 30
	weatherFailurePenalty = 15
	heavyTrafficPenalty   = 15
	severeTrafficPenalty  = 25
	majorWeatherPenalty   = 10
	severeWeatherPenalty  = 20
)

func confidence(routeFailed, weatherFailed bool, r maps.RouteInfo, w weather.Data) float64 {
	c := confidenceBase
	if routeFailed {
		c -= routeFailurePenalty
	}
	if weatherFailed {
		c -= weatherFailurePenalty
	}
	switch r.Congestion {
	case maps.CongestionHeavy:
		c -= heavyTrafficPenalty
	case maps.CongestionSevere:
		c -= severeTrafficPenalty
	}
	switch w.Conditions.Impact() {
	case weather.ImpactMajor:
		c -= majorWeatherPenalty
	case weather.ImpactSevere:
		c -= severeWeatherPenalty
	}
	if c < confidenceFloor {
		c = confidenceFloor
	}
	return float64(c) / 100
}

func syntheticRoute(origin, destination types.Coordinate) maps.RouteInfo {
	dist := origin.DistanceMeters(destination)
	dur := time.Duration(dist / syntheticSpeedMS * float64(time.Second)).Round(time.Second)
	return maps.RouteInfo{
		DistanceMeters: dist,
		Duration:       dur,
		TrafficDelay:   (dur / 5).Round(time.Second),
		Congestion:     maps.CongestionModerate,
	}
}

func mildWeather(now time.Time) weather.Data {
	return weather.Data{
		TemperatureC:     20,
		FeelsLikeC:       20,
		Conditions:       weather.ConditionPartlyCloudy,
		WindSpeedMS:      2,
		VisibilityMeters: 10000,
		Timestamp:        now,
	}
}

func explain(s Snapshot) string {
	var parts []string
	switch s.RouteSource {
	case SourceCached:
		parts = append(parts, "Live traffic unavailable, using recent route data")
	case SourceSynthetic:
		parts = append(parts, "Live traffic unavailable, using a distance-based estimate")
	}
	switch s.WeatherSource {
	case SourceCached:
		parts = append(parts, "Weather unavailable, using recent conditions")
	case SourceSynthetic:
		parts = append(parts, "Weather unavailable, assuming mild conditions")
	}

	traffic := s.Route.Congestion.Descriptor()
	if mins := minutes(s.Route.TrafficDelay); mins > 0 {
		traffic = fmt.Sprintf("%s adds %d min", traffic, mins)
	}
	parts = append(parts, capitalize(traffic))

	if mins := minutes(s.WeatherPenalty()); mins > 0 {
		parts = append(parts, fmt.Sprintf("%s adds %d min", capitalize(s.Weather.Summary()), mins))
	}
	return strings.Join(parts, ". ")
}

func minutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
