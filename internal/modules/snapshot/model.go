// README: Snapshot aggregate; route + weather + heuristic delay + confidence.
package snapshot

import (
	"time"

	"commute/internal/maps"
	"commute/internal/weather"
)

// DataSource records where a snapshot part came from.
type DataSource string

const (
	SourceLive      DataSource = "live"
	SourceCached    DataSource = "cached"
	SourceSynthetic DataSource = "synthetic"
)

// Snapshot is an immutable point-in-time view of travel conditions.
type Snapshot struct {
	Route           maps.RouteInfo `json:"route"`
	Weather         weather.Data   `json:"weather"`
	HeuristicsDelay time.Duration  `json:"heuristics_delay"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Explanation     string         `json:"explanation"`
	Confidence      float64        `json:"confidence"`
	RouteFallback   bool           `json:"route_fallback"`
	WeatherFallback bool           `json:"weather_fallback"`
	RouteSource     DataSource     `json:"route_source"`
	WeatherSource   DataSource     `json:"weather_source"`
}

// TravelTime is the traffic-adjusted route duration plus the heuristic delay.
func (s Snapshot) TravelTime() time.Duration {
	return s.Route.TotalDurationWithTraffic() + s.HeuristicsDelay
}

// WeatherPenalty is the part of HeuristicsDelay not caused by traffic.
func (s Snapshot) WeatherPenalty() time.Duration {
	p := s.HeuristicsDelay - s.Route.TrafficDelay
	if p < 0 {
		return 0
	}
	return p
}

// Default is the static snapshot used when snapshot generation itself breaks.
func Default(now time.Time) Snapshot {
	return Snapshot{
		Route: maps.RouteInfo{
			DistanceMeters: 10000,
			Duration:       15 * time.Minute,
			TrafficDelay:   3 * time.Minute,
			Congestion:     maps.CongestionModerate,
		},
		Weather:         mildWeather(now),
		HeuristicsDelay: 120 * time.Second,
		GeneratedAt:     now,
		Explanation:     "Live conditions unavailable; using typical travel estimates",
		Confidence:      0.6,
		RouteFallback:   true,
		WeatherFallback: true,
		RouteSource:     SourceSynthetic,
		WeatherSource:   SourceSynthetic,
	}
}
