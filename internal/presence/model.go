// Package presence publishes live trip status ("leave by" countdown, navigation
// progress) for clients to render outside the app.
package presence

import (
	"errors"
	"time"

	"commute/internal/types"
)

var (
	// ErrNotSupported means this deployment has no presence backend.
	ErrNotSupported = errors.New("presence not supported")
	// ErrActivitiesDisabled means the user turned live status off on their device.
	ErrActivitiesDisabled = errors.New("presence activities disabled")
)

type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeNavigating Mode = "navigating"
)

// Attributes are fixed for the lifetime of a session.
type Attributes struct {
	TripID          types.ID  `json:"trip_id"`
	UserID          types.ID  `json:"user_id"`
	TripName        string    `json:"trip_name"`
	DestinationName string    `json:"destination_name"`
	ArrivalTime     time.Time `json:"arrival_time"`
}

// State is the mutable part of a session.
type State struct {
	Mode          Mode              `json:"mode"`
	LeaveTime     time.Time         `json:"leave_time"`
	TravelMinutes int               `json:"travel_minutes"`
	Explanation   string            `json:"explanation"`
	Location      *types.Coordinate `json:"location,omitempty"`
	Ended         bool              `json:"ended"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
