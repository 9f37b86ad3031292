package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"commute/internal/types"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// ErrUpstream is returned for non-2xx answers from the weather API.
var ErrUpstream = errors.New("weather upstream error")

// Client fetches current conditions from the OpenWeatherMap current-weather endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[Data]
}

// NewClient returns a Client. An empty baseURL selects the public API.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		breaker: gobreaker.NewCircuitBreaker[Data](gobreaker.Settings{
			Name:        "openweathermap",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
	}
}

type owmResponse struct {
	Weather []struct {
		ID   int    `json:"id"`
		Main string `json:"main"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

// GetCurrentWeather returns the current observation at the given coordinate.
func (c *Client) GetCurrentWeather(ctx context.Context, at types.Coordinate) (Data, error) {
	return c.breaker.Execute(func() (Data, error) {
		q := url.Values{}
		q.Set("lat", strconv.FormatFloat(at.Lat, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(at.Lng, 'f', 6, 64))
		q.Set("units", "metric")
		q.Set("appid", c.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
		if err != nil {
			return Data{}, fmt.Errorf("weather: build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return Data{}, fmt.Errorf("weather: do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Data{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		}

		var body owmResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Data{}, fmt.Errorf("weather: decode response: %w", err)
		}
		return body.toData(), nil
	})
}

func (r owmResponse) toData() Data {
	cond := ConditionClear
	if len(r.Weather) > 0 {
		cond = conditionFromCode(r.Weather[0].ID)
	}
	visibility := 10000.0
	if r.Visibility != nil {
		visibility = *r.Visibility
	}
	ts := time.Now().UTC()
	if r.Dt > 0 {
		ts = time.Unix(r.Dt, 0).UTC()
	}
	return Data{
		TemperatureC:             r.Main.Temp,
		FeelsLikeC:               r.Main.FeelsLike,
		Conditions:               cond,
		PrecipitationProbability: precipitationFor(cond),
		WindSpeedMS:              r.Wind.Speed,
		VisibilityMeters:         visibility,
		Timestamp:                ts,
	}
}

// conditionFromCode maps OpenWeatherMap condition codes onto Condition.
func conditionFromCode(code int) Condition {
	switch {
	case code == 781 || (code >= 200 && code < 300):
		return ConditionThunderstorm
	case code >= 300 && code < 400:
		return ConditionDrizzle
	case code == 511 || (code >= 611 && code <= 616):
		return ConditionSleet
	case code >= 502 && code <= 504, code == 522, code == 531:
		return ConditionHeavyRain
	case code >= 500 && code < 600:
		return ConditionRain
	case code == 602 || code == 622:
		return ConditionBlizzard
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionFog
	case code == 800:
		return ConditionClear
	case code == 801 || code == 802:
		return ConditionPartlyCloudy
	case code > 802 && code < 900:
		return ConditionCloudy
	}
	return ConditionClear
}

// precipitationFor estimates precipitation probability because the
// current-weather endpoint reports only what is happening now.
func precipitationFor(c Condition) float64 {
	switch c {
	case ConditionHeavyRain, ConditionBlizzard:
		return 95
	case ConditionThunderstorm:
		return 90
	case ConditionRain, ConditionSnow, ConditionSleet:
		return 80
	case ConditionDrizzle:
		return 60
	case ConditionFog, ConditionCloudy:
		return 20
	case ConditionPartlyCloudy:
		return 10
	}
	return 0
}

func formatSummary(tempC float64, c Condition) string {
	return fmt.Sprintf("%.0f°C, %s", tempC, c.label())
}

func (c Condition) label() string {
	switch c {
	case ConditionPartlyCloudy:
		return "partly cloudy"
	case ConditionHeavyRain:
		return "heavy rain"
	}
	return string(c)
}
