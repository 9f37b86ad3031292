package maps

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"googlemaps.github.io/maps"

	"commute/internal/types"
)

// labelTypes are the geocoder result types that name a place rather than a street.
var labelTypes = []string{"point_of_interest", "establishment", "premise", "airport", "transit_station"}

// PlacesService names coordinates through Google reverse geocoding.
type PlacesService struct {
	client *maps.Client
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client}, nil
}

// Label returns a short human name for the coordinate, e.g. "Googleplex" or
// "1600 Amphitheatre Pkwy". Empty when the geocoder knows nothing there.
func (s *PlacesService) Label(ctx context.Context, at types.Coordinate) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: at.Lat, Lng: at.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	return labelFromResults(results), nil
}

func labelFromResults(results []maps.GeocodingResult) string {
	for _, r := range results {
		for _, t := range r.Types {
			if slices.Contains(labelTypes, t) {
				if name := placeName(r); name != "" {
					return name
				}
			}
		}
	}
	for _, r := range results {
		if head := firstSegment(r.FormattedAddress); head != "" {
			return head
		}
	}
	return ""
}

// placeName prefers the establishment component over the formatted address.
func placeName(r maps.GeocodingResult) string {
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if slices.Contains(labelTypes, t) {
				return c.LongName
			}
		}
	}
	return firstSegment(r.FormattedAddress)
}

func firstSegment(address string) string {
	head, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(head)
}
