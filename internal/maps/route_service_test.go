package maps

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestRouteFromDirections_TrafficAndAlternatives(t *testing.T) {
	routes := []maps.Route{
		{
			Summary:  "US-101 S",
			Warnings: []string{"Road work on US-101"},
			Legs: []*maps.Leg{{
				Distance:          maps.Distance{Meters: 77000},
				Duration:          50 * time.Minute,
				DurationInTraffic: 80 * time.Minute,
			}},
		},
		{
			Summary: "I-280 S",
			Legs: []*maps.Leg{{
				Distance:          maps.Distance{Meters: 81000},
				Duration:          55 * time.Minute,
				DurationInTraffic: 58 * time.Minute,
			}},
		},
	}

	info, err := routeFromDirections(routes)
	require.NoError(t, err)

	assert.Equal(t, 77000.0, info.DistanceMeters)
	assert.Equal(t, 50*time.Minute, info.Duration)
	assert.Equal(t, 30*time.Minute, info.TrafficDelay)
	assert.Equal(t, CongestionHeavy, info.Congestion, "80/50 = 1.6 ratio")
	assert.Equal(t, 80*time.Minute, info.TotalDurationWithTraffic())
	require.Len(t, info.Incidents, 1)
	require.Len(t, info.Alternatives, 1)
	assert.Equal(t, "I-280 S", info.Alternatives[0].Summary)
	assert.Equal(t, 58*time.Minute, info.Alternatives[0].Duration)
}

func TestRouteFromDirections_NoTrafficData(t *testing.T) {
	info, err := routeFromDirections([]maps.Route{{
		Legs: []*maps.Leg{{Distance: maps.Distance{Meters: 1000}, Duration: 3 * time.Minute}},
	}})
	require.NoError(t, err)
	assert.Zero(t, info.TrafficDelay)
	assert.Equal(t, CongestionNone, info.Congestion)
}

func TestRouteFromDirections_Empty(t *testing.T) {
	_, err := routeFromDirections(nil)
	assert.True(t, errors.Is(err, ErrNoRoute))
}

func TestCongestionFromRatio(t *testing.T) {
	cases := []struct {
		ratio float64
		want  Congestion
	}{
		{1.0, CongestionNone},
		{1.15, CongestionLow},
		{1.3, CongestionModerate},
		{1.6, CongestionHeavy},
		{2.2, CongestionSevere},
	}
	for _, tc := range cases {
		if got := CongestionFromRatio(tc.ratio); got != tc.want {
			t.Errorf("CongestionFromRatio(%v) = %s, want %s", tc.ratio, got, tc.want)
		}
	}
}
