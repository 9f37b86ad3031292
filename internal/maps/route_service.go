package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"googlemaps.github.io/maps"

	"commute/internal/types"
)

// ErrNoRoute is returned when the provider answers but has no usable route.
var ErrNoRoute = errors.New("no route found")

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client  *maps.Client
	breaker *gobreaker.CircuitBreaker[RouteInfo]
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, breaker: newBreaker("google-directions")}, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker[RouteInfo] {
	return gobreaker.NewCircuitBreaker[RouteInfo](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// GetRoute returns the current driving route from origin to destination,
// including the delay caused by live traffic and any alternatives.
func (s *RouteService) GetRoute(ctx context.Context, origin, destination types.Coordinate) (RouteInfo, error) {
	return s.breaker.Execute(func() (RouteInfo, error) {
		r := &maps.DirectionsRequest{
			Origin:        origin.String(),
			Destination:   destination.String(),
			Mode:          maps.TravelModeDriving,
			DepartureTime: "now",
			TrafficModel:  maps.TrafficModelBestGuess,
			Alternatives:  true,
		}

		routes, _, err := s.client.Directions(ctx, r)
		if err != nil {
			return RouteInfo{}, fmt.Errorf("maps api error: %w", err)
		}
		return routeFromDirections(routes)
	})
}

// routeFromDirections converts a Directions response into a RouteInfo. The first
// route is primary; the remaining ones become alternatives.
func routeFromDirections(routes []maps.Route) (RouteInfo, error) {
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return RouteInfo{}, ErrNoRoute
	}

	primary := routes[0]
	var info RouteInfo
	var inTraffic time.Duration
	for _, leg := range primary.Legs {
		info.DistanceMeters += float64(leg.Distance.Meters)
		info.Duration += leg.Duration
		if leg.DurationInTraffic > 0 {
			inTraffic += leg.DurationInTraffic
		} else {
			inTraffic += leg.Duration
		}
	}
	if inTraffic > info.Duration {
		info.TrafficDelay = inTraffic - info.Duration
	}
	if info.Duration > 0 {
		info.Congestion = CongestionFromRatio(float64(inTraffic) / float64(info.Duration))
	}

	for _, w := range primary.Warnings {
		info.Incidents = append(info.Incidents, Incident{Description: w})
	}

	for _, alt := range routes[1:] {
		var a AlternativeRoute
		a.Summary = alt.Summary
		for _, leg := range alt.Legs {
			a.DistanceMeters += float64(leg.Distance.Meters)
			if leg.DurationInTraffic > 0 {
				a.Duration += leg.DurationInTraffic
			} else {
				a.Duration += leg.Duration
			}
		}
		info.Alternatives = append(info.Alternatives, a)
	}

	return info, nil
}
