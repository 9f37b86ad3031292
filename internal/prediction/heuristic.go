// README: Rule-based leave-time model served by the predictor API.
package prediction

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"commute/internal/types"
)

var (
	congestionMultipliers = [...]float64{1.0, 1.05, 1.15, 1.30, 1.50}
	congestionPenalties   = [...]float64{0, 0.05, 0.10, 0.15, 0.25}
	trafficDescriptions   = [...]string{"clear roads", "light traffic", "moderate traffic", "heavy traffic", "severe traffic"}
)

const (
	incidentSeconds   = 120.0
	baseBufferSeconds = 300.0
)

// HeuristicModel predicts leave times from route and weather features without a trained model.
type HeuristicModel struct {
	clock types.Clock
}

func NewHeuristicModel(clock types.Clock) *HeuristicModel {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &HeuristicModel{clock: clock}
}

// Predict implements Predictor.
func (m *HeuristicModel) Predict(_ context.Context, in Input) (Prediction, error) {
	if in.ArrivalTime.IsZero() {
		return Prediction{}, fmt.Errorf("%w: arrival_time is required", ErrBadInput)
	}
	now := in.CurrentTime
	if now.IsZero() {
		now = m.clock.Now()
	}

	r, w := in.Route, in.Weather
	level := clampLevel(r.CongestionLevel)

	travel := r.BaselineDuration + r.CurrentTrafficDelay

	weatherMultiplier := 1.0
	switch {
	case w.PrecipitationProbability > 60:
		weatherMultiplier += 0.15
	case w.PrecipitationProbability > 30:
		weatherMultiplier += 0.08
	}
	switch {
	case w.Visibility < 5:
		weatherMultiplier += 0.10
	case w.Visibility < 10:
		weatherMultiplier += 0.05
	}
	travel *= weatherMultiplier
	travel *= congestionMultipliers[level]
	travel += float64(r.IncidentCount) * incidentSeconds

	variability := travel * 0.15
	if level >= 3 {
		variability *= 1.5
	}
	if w.PrecipitationProbability > 50 {
		variability *= 1.3
	}
	buffer := baseBufferSeconds + variability
	bufferMinutes := int(buffer / 60)

	leave := in.ArrivalTime.Add(-seconds(travel + buffer)).UTC()
	confidence := heuristicConfidence(level, w, r.IncidentCount, in.ArrivalTime.Sub(now))

	return Prediction{
		LeaveTime:     leave,
		Confidence:    math.Round(confidence*100) / 100,
		Explanation:   heuristicExplanation(travel, bufferMinutes, level, w),
		BufferMinutes: bufferMinutes,
		Source:        SourceHeuristic,
		PredictedAt:   now.UTC(),
		Alternatives: []Alternative{
			{
				LeaveTime:          leave.Add(-10 * time.Minute),
				ArrivalProbability: math.Min(0.98, confidence+0.15),
				Description:        "Extra safe: arrive 10 minutes early",
			},
			{
				LeaveTime:          leave.Add(-5 * time.Minute),
				ArrivalProbability: math.Min(0.95, confidence+0.08),
				Description:        "Safe: arrive 5 minutes early",
			},
			{
				LeaveTime:          leave.Add(5 * time.Minute),
				ArrivalProbability: math.Max(0.50, confidence-0.20),
				Description:        "Risky: might arrive 5 minutes late",
			},
		},
	}, nil
}

func heuristicConfidence(level int, w WeatherFeatures, incidents int, untilArrival time.Duration) float64 {
	c := 0.85 - congestionPenalties[level]

	switch {
	case w.WeatherScore < 50:
		c -= 0.15
	case w.WeatherScore < 70:
		c -= 0.08
	}
	switch {
	case w.PrecipitationProbability > 70:
		c -= 0.10
	case w.PrecipitationProbability > 40:
		c -= 0.05
	}
	c -= math.Min(0.15, float64(incidents)*0.03)

	switch hours := untilArrival.Hours(); {
	case hours > 4:
		c -= 0.10
	case hours > 2:
		c -= 0.05
	}
	return math.Max(0.40, math.Min(0.98, c))
}

func heuristicExplanation(travel float64, bufferMinutes, level int, w WeatherFeatures) string {
	parts := []string{fmt.Sprintf("%d min travel", int(travel/60))}
	if level > 0 {
		parts = append(parts, trafficDescriptions[level])
	}
	switch {
	case w.PrecipitationProbability > 50:
		parts = append(parts, "rain expected")
	case w.WeatherScore < 70:
		parts = append(parts, "poor weather")
	}
	parts = append(parts, fmt.Sprintf("%d min buffer", bufferMinutes))
	return strings.Join(parts, ", ")
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 4 {
		return 4
	}
	return level
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
