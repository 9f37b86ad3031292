package maps

import "time"

// Congestion grades how much slower than free-flow a route currently is.
type Congestion int

const (
	CongestionNone Congestion = iota
	CongestionLow
	CongestionModerate
	CongestionHeavy
	CongestionSevere
)

var congestionNames = [...]string{"none", "low", "moderate", "heavy", "severe"}

func (c Congestion) String() string {
	if c < CongestionNone || c > CongestionSevere {
		return "unknown"
	}
	return congestionNames[c]
}

// Descriptor is the phrase used in user-facing explanations.
func (c Congestion) Descriptor() string {
	switch c {
	case CongestionNone:
		return "clear roads"
	case CongestionLow:
		return "light traffic"
	case CongestionModerate:
		return "moderate traffic"
	case CongestionHeavy:
		return "heavy traffic"
	case CongestionSevere:
		return "severe traffic"
	}
	return "unknown traffic"
}

// CongestionFromRatio grades traffic from duration-in-traffic / baseline duration.
func CongestionFromRatio(ratio float64) Congestion {
	switch {
	case ratio < 1.1:
		return CongestionNone
	case ratio < 1.25:
		return CongestionLow
	case ratio < 1.5:
		return CongestionModerate
	case ratio < 1.8:
		return CongestionHeavy
	default:
		return CongestionSevere
	}
}

// Incident is a provider-reported warning along the route.
type Incident struct {
	Description string `json:"description"`
}

// AlternativeRoute summarises a non-primary route option.
type AlternativeRoute struct {
	Summary        string        `json:"summary"`
	DistanceMeters float64       `json:"distance_m"`
	Duration       time.Duration `json:"duration"`
}

// RouteInfo is an immutable result of one route query.
type RouteInfo struct {
	DistanceMeters float64            `json:"distance_m"`
	Duration       time.Duration      `json:"duration"`
	TrafficDelay   time.Duration      `json:"traffic_delay"`
	Congestion     Congestion         `json:"congestion"`
	Incidents      []Incident         `json:"incidents,omitempty"`
	Alternatives   []AlternativeRoute `json:"alternatives,omitempty"`
}

// TotalDurationWithTraffic is the baseline duration plus the current traffic delay.
func (r RouteInfo) TotalDurationWithTraffic() time.Duration {
	return r.Duration + r.TrafficDelay
}
