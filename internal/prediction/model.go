// README: Prediction types shared by the heuristic model, the HTTP predictor client and the Gemini predictor.
package prediction

import (
	"context"
	"errors"
	"time"

	"commute/internal/types"
)

// ErrBadInput is returned when a prediction request is missing required features.
var ErrBadInput = errors.New("invalid prediction input")

// Source records which path produced a prediction.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
	SourceCached    Source = "cached"
)

// Alternative is a different leave time with its estimated on-time probability.
type Alternative struct {
	LeaveTime          time.Time `json:"leave_time"`
	ArrivalProbability float64   `json:"arrival_probability"`
	Description        string    `json:"description"`
}

// Prediction is the output of a leave-time predictor.
type Prediction struct {
	LeaveTime     time.Time     `json:"leave_time"`
	Confidence    float64       `json:"confidence"`
	Explanation   string        `json:"explanation"`
	Alternatives  []Alternative `json:"alternative_leave_times"`
	BufferMinutes int           `json:"buffer_minutes"`
	Source        Source        `json:"source"`
	PredictedAt   time.Time     `json:"calculated_at"`
}

// RouteFeatures are the route-derived model inputs. Distance is meters,
// durations are seconds, congestion is 0 (none) to 4 (severe).
type RouteFeatures struct {
	Distance            float64 `json:"distance" validate:"gte=0"`
	BaselineDuration    float64 `json:"baseline_duration" validate:"gte=0"`
	CurrentTrafficDelay float64 `json:"current_traffic_delay" validate:"gte=0"`
	IncidentCount       int     `json:"incident_count" validate:"gte=0"`
	CongestionLevel     int     `json:"congestion_level" validate:"gte=0,lte=4"`
}

// WeatherFeatures are the weather-derived model inputs. Visibility is kilometers.
type WeatherFeatures struct {
	WeatherScore             float64 `json:"weather_score" validate:"gte=0,lte=100"`
	PrecipitationProbability float64 `json:"precipitation_probability" validate:"gte=0,lte=100"`
	Visibility               float64 `json:"visibility" validate:"gte=0"`
}

// Input is one prediction request.
type Input struct {
	Origin      types.Coordinate `json:"origin"`
	Destination types.Coordinate `json:"destination"`
	ArrivalTime time.Time        `json:"arrival_time" validate:"required"`
	CurrentTime time.Time        `json:"current_time"`
	Route       RouteFeatures    `json:"route_features"`
	Weather     WeatherFeatures  `json:"weather_features"`
}

// Predictor produces a leave-time prediction for an input.
type Predictor interface {
	Predict(ctx context.Context, in Input) (Prediction, error)
}
