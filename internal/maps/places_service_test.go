package maps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"googlemaps.github.io/maps"
)

func TestLabelFromResults(t *testing.T) {
	cases := []struct {
		name    string
		results []maps.GeocodingResult
		want    string
	}{
		{"empty", nil, ""},
		{
			"street address only",
			[]maps.GeocodingResult{{
				FormattedAddress: "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
				Types:            []string{"street_address"},
			}},
			"1600 Amphitheatre Pkwy",
		},
		{
			"establishment component wins",
			[]maps.GeocodingResult{
				{FormattedAddress: "1 Main St, San Jose, CA, USA", Types: []string{"street_address"}},
				{
					FormattedAddress: "SAP Center, 525 W Santa Clara St, San Jose, CA, USA",
					Types:            []string{"establishment", "point_of_interest"},
					AddressComponents: []maps.AddressComponent{
						{LongName: "525", Types: []string{"street_number"}},
						{LongName: "SAP Center", Types: []string{"establishment", "point_of_interest"}},
					},
				},
			},
			"SAP Center",
		},
		{
			"establishment without component uses its address",
			[]maps.GeocodingResult{{
				FormattedAddress: "Terminal 2, SFO, San Francisco, CA, USA",
				Types:            []string{"airport"},
			}},
			"Terminal 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, labelFromResults(tc.results))
		})
	}
}
