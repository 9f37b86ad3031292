// README: Trip aggregate, notification settings and the persisted snapshot summary.
package trip

import (
	"errors"
	"fmt"
	"time"

	"commute/internal/types"
)

var (
	ErrNotFound   = errors.New("trip not found")
	ErrBadRequest = errors.New("bad request")
)

type TransportMode string

const (
	ModeDriving TransportMode = "driving"
	ModeTransit TransportMode = "transit"
	ModeWalking TransportMode = "walking"
	ModeCycling TransportMode = "cycling"
)

type NotificationSettings struct {
	Enabled         bool  `json:"enabled"`
	ReminderOffsets []int `json:"reminder_offsets,omitempty"` // minutes before leave time
	Sound           bool  `json:"sound"`
}

// SnapshotSummary is the compact form of the latest conditions kept on the trip.
type SnapshotSummary struct {
	TravelMinutes      int       `json:"travel_minutes"`
	TrafficDelayMins   int       `json:"traffic_delay_minutes"`
	Congestion         string    `json:"congestion"`
	Confidence         float64   `json:"confidence"`
	RecommendedLeaveAt time.Time `json:"recommended_leave_at"`
	GeneratedAt        time.Time `json:"generated_at"`
}

type Trip struct {
	ID                     types.ID             `json:"id"`
	UserID                 types.ID             `json:"user_id"`
	Name                   string               `json:"name"`
	Origin                 types.Coordinate     `json:"origin"`
	Destination            types.Coordinate     `json:"destination"`
	DestinationName        string               `json:"destination_name"`
	ArrivalTime            time.Time            `json:"arrival_time"`
	TimeZone               string               `json:"time_zone"`
	BufferMinutes          int                  `json:"buffer_minutes"`
	IsActive               bool                 `json:"is_active"`
	RepeatDays             []time.Weekday       `json:"repeat_days,omitempty"`
	Notifications          NotificationSettings `json:"notifications"`
	TransportMode          TransportMode        `json:"transport_mode"`
	LastRouteSnapshot      *SnapshotSummary     `json:"last_route_snapshot,omitempty"`
	ExpectedWeatherSummary *string              `json:"expected_weather_summary,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	LastRouteSnapshot      *SnapshotSummary
	ExpectedWeatherSummary *string
	IsActive               *bool
	ArrivalTime            *time.Time
}

// Location is the trip's time zone, UTC when unset or unknown.
func (t *Trip) Location() *time.Location {
	if t.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NextArrival returns the arrival to plan for. One-off trips return ArrivalTime.
// Repeating trips keep the arrival's wall-clock time and roll forward to the
// first configured weekday whose arrival is after now.
func (t *Trip) NextArrival(now time.Time) time.Time {
	loc := t.Location()
	arrival := t.ArrivalTime.In(loc)
	if len(t.RepeatDays) == 0 {
		return arrival
	}

	days := make(map[time.Weekday]bool, len(t.RepeatDays))
	for _, d := range t.RepeatDays {
		days[d] = true
	}

	local := now.In(loc)
	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(),
			arrival.Hour(), arrival.Minute(), arrival.Second(), 0, loc)
		if days[candidate.Weekday()] && candidate.After(now) {
			return candidate
		}
	}
	return arrival
}

// Validate checks the fields a trip must have before it can be scheduled.
func (t *Trip) Validate() error {
	switch {
	case t.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrBadRequest)
	case !t.Origin.Valid() || !t.Destination.Valid():
		return fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	case t.ArrivalTime.IsZero():
		return fmt.Errorf("%w: arrival_time is required", ErrBadRequest)
	case t.BufferMinutes < 0:
		return fmt.Errorf("%w: buffer_minutes must not be negative", ErrBadRequest)
	}
	for _, d := range t.RepeatDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: repeat_days out of range", ErrBadRequest)
		}
	}
	return nil
}
