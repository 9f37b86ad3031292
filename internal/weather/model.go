// Package weather models current conditions and fetches them from an upstream provider.
package weather

import "time"

// Condition is the normalized sky/precipitation state.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionFog          Condition = "fog"
	ConditionDrizzle      Condition = "drizzle"
	ConditionRain         Condition = "rain"
	ConditionHeavyRain    Condition = "heavy_rain"
	ConditionSnow         Condition = "snow"
	ConditionSleet        Condition = "sleet"
	ConditionThunderstorm Condition = "thunderstorm"
	ConditionBlizzard     Condition = "blizzard"
)

// Impact grades how much a condition slows travel.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactMinor
	ImpactModerate
	ImpactMajor
	ImpactSevere
)

func (i Impact) String() string {
	switch i {
	case ImpactNone:
		return "none"
	case ImpactMinor:
		return "minor"
	case ImpactModerate:
		return "moderate"
	case ImpactMajor:
		return "major"
	case ImpactSevere:
		return "severe"
	}
	return "unknown"
}

// Impact maps the condition onto the travel impact scale.
func (c Condition) Impact() Impact {
	switch c {
	case ConditionFog, ConditionDrizzle:
		return ImpactMinor
	case ConditionRain, ConditionSleet:
		return ImpactModerate
	case ConditionHeavyRain, ConditionSnow:
		return ImpactMajor
	case ConditionThunderstorm, ConditionBlizzard:
		return ImpactSevere
	default:
		return ImpactNone
	}
}

// Alert is a provider-issued weather warning.
type Alert struct {
	Event    string    `json:"event"`
	Severity string    `json:"severity"`
	Until    time.Time `json:"until"`
}

// Data is an immutable weather observation.
type Data struct {
	TemperatureC             float64   `json:"temperature_c"`
	FeelsLikeC               float64   `json:"feels_like_c"`
	Conditions               Condition `json:"conditions"`
	PrecipitationProbability float64   `json:"precipitation_probability"` // 0-100
	WindSpeedMS              float64   `json:"wind_speed_ms"`
	VisibilityMeters         float64   `json:"visibility_m"`
	Alerts                   []Alert   `json:"alerts,omitempty"`
	Timestamp                time.Time `json:"timestamp"`
}

// Score rates the weather for travel on a 0-100 scale (100 = ideal).
func (d Data) Score() float64 {
	score := 100.0
	switch d.Conditions.Impact() {
	case ImpactMinor:
		score -= 15
	case ImpactModerate:
		score -= 30
	case ImpactMajor:
		score -= 50
	case ImpactSevere:
		score -= 70
	}
	if d.WindSpeedMS > 12 {
		score -= 10
	}
	if d.VisibilityMeters < 5000 {
		score -= 10
	}
	if score < 0 {
		return 0
	}
	return score
}

// Summary is a short human-readable description, e.g. "18°C, rain".
func (d Data) Summary() string {
	return formatSummary(d.TemperatureC, d.Conditions)
}
