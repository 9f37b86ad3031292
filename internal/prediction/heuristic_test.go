package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicModel_ClearConditions(t *testing.T) {
	now := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	arrival := now.Add(time.Hour)

	p, err := NewHeuristicModel(nil).Predict(context.Background(), Input{
		ArrivalTime: arrival,
		CurrentTime: now,
		Route:       RouteFeatures{Distance: 20000, BaselineDuration: 1200},
		Weather:     WeatherFeatures{WeatherScore: 100, Visibility: 10},
	})
	require.NoError(t, err)

	// travel 1200s, buffer 300 + 180 = 480s (8 min)
	assert.Equal(t, arrival.Add(-1680*time.Second), p.LeaveTime)
	assert.Equal(t, 8, p.BufferMinutes)
	assert.Equal(t, 0.85, p.Confidence)
	assert.Equal(t, "20 min travel, 8 min buffer", p.Explanation)
	assert.Equal(t, SourceHeuristic, p.Source)

	require.Len(t, p.Alternatives, 3)
	assert.Equal(t, p.LeaveTime.Add(-10*time.Minute), p.Alternatives[0].LeaveTime)
	assert.InDelta(t, 0.98, p.Alternatives[0].ArrivalProbability, 1e-9)
	assert.InDelta(t, 0.93, p.Alternatives[1].ArrivalProbability, 1e-9)
	assert.InDelta(t, 0.65, p.Alternatives[2].ArrivalProbability, 1e-9)
	assert.Equal(t, "Risky: might arrive 5 minutes late", p.Alternatives[2].Description)
}

func TestHeuristicModel_HeavyTrafficAndRain(t *testing.T) {
	now := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	arrival := now.Add(3 * time.Hour)

	p, err := NewHeuristicModel(nil).Predict(context.Background(), Input{
		ArrivalTime: arrival,
		CurrentTime: now,
		Route: RouteFeatures{
			BaselineDuration:    1000,
			CurrentTrafficDelay: 200,
			IncidentCount:       2,
			CongestionLevel:     3,
		},
		Weather: WeatherFeatures{WeatherScore: 40, PrecipitationProbability: 80, Visibility: 3},
	})
	require.NoError(t, err)

	// 1200 * 1.25 * 1.30 + 240 = 2190s travel
	// buffer = 300 + 2190*0.15*1.5*1.3 = 940.575s
	assert.WithinDuration(t, arrival.Add(-3130575*time.Millisecond), p.LeaveTime, time.Millisecond)
	assert.Equal(t, 15, p.BufferMinutes)

	// 0.85 - 0.15 - 0.15 - 0.10 - 0.06 - 0.05 = 0.34 -> clamped to 0.40
	assert.Equal(t, 0.40, p.Confidence)
	assert.Equal(t, "36 min travel, heavy traffic, rain expected, 15 min buffer", p.Explanation)
}

func TestHeuristicModel_CongestionLevelClamped(t *testing.T) {
	now := time.Now()
	p, err := NewHeuristicModel(nil).Predict(context.Background(), Input{
		ArrivalTime: now.Add(30 * time.Minute),
		CurrentTime: now,
		Route:       RouteFeatures{BaselineDuration: 600, CongestionLevel: 9},
		Weather:     WeatherFeatures{WeatherScore: 100, Visibility: 20},
	})
	require.NoError(t, err)
	assert.Contains(t, p.Explanation, "severe traffic")
}

func TestHeuristicModel_MissingArrival(t *testing.T) {
	_, err := NewHeuristicModel(nil).Predict(context.Background(), Input{})
	assert.True(t, errors.Is(err, ErrBadInput))
}
