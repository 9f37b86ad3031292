// README: Trip handlers; create/get/list and schedule/cancel.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"commute/internal/modules/recommend"
	"commute/internal/modules/trip"
	"commute/internal/types"
)

type TripStore interface {
	Create(ctx context.Context, t *trip.Trip) error
	FetchTrip(ctx context.Context, id types.ID) (*trip.Trip, error)
	FetchTrips(ctx context.Context, userID types.ID) ([]trip.Trip, error)
}

type TripScheduler interface {
	ScheduleTrip(ctx context.Context, t *trip.Trip) (recommend.Recommendation, error)
	CancelTrip(ctx context.Context, tripID types.ID)
}

// PlaceLabeler names a coordinate for trips created without a destination name.
type PlaceLabeler interface {
	Label(ctx context.Context, at types.Coordinate) (string, error)
}

const labelTimeout = 3 * time.Second

type TripHandler struct {
	trips     TripStore
	scheduler TripScheduler
	places    PlaceLabeler
	clock     types.Clock
}

// NewTripHandler builds the trip handler. places may be nil.
func NewTripHandler(trips TripStore, sched TripScheduler, places PlaceLabeler, clock types.Clock) *TripHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &TripHandler{trips: trips, scheduler: sched, places: places, clock: clock}
}

type createTripReq struct {
	Name            string                     `json:"name"`
	Origin          types.Coordinate           `json:"origin"`
	Destination     types.Coordinate           `json:"destination"`
	DestinationName string                     `json:"destination_name"`
	ArrivalTime     time.Time                  `json:"arrival_time"`
	TimeZone        string                     `json:"time_zone"`
	BufferMinutes   int                        `json:"buffer_minutes"`
	RepeatDays      []time.Weekday             `json:"repeat_days"`
	Notifications   *trip.NotificationSettings `json:"notifications"`
	TransportMode   trip.TransportMode         `json:"transport_mode"`
}

// Create handles POST /api/trips.
func (h *TripHandler) Create(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	now := h.clock.Now().UTC()
	t := &trip.Trip{
		ID:              types.NewID(),
		UserID:          uid,
		Name:            req.Name,
		Origin:          req.Origin,
		Destination:     req.Destination,
		DestinationName: req.DestinationName,
		ArrivalTime:     req.ArrivalTime,
		TimeZone:        req.TimeZone,
		BufferMinutes:   req.BufferMinutes,
		IsActive:        true,
		RepeatDays:      req.RepeatDays,
		Notifications:   trip.NotificationSettings{Enabled: true, Sound: true},
		TransportMode:   req.TransportMode,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Notifications != nil {
		t.Notifications = *req.Notifications
	}
	if t.TransportMode == "" {
		t.TransportMode = trip.ModeDriving
	}
	if err := t.Validate(); err != nil {
		writeDomainError(c, err)
		return
	}
	if t.DestinationName == "" {
		t.DestinationName = h.label(c.Request.Context(), t.Destination)
	}
	if err := h.trips.Create(c.Request.Context(), t); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

// label is best effort; a lookup failure leaves the name empty.
func (h *TripHandler) label(ctx context.Context, at types.Coordinate) string {
	if h.places == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, labelTimeout)
	defer cancel()
	name, err := h.places.Label(ctx, at)
	if err != nil {
		return ""
	}
	return name
}

// List handles GET /api/trips.
func (h *TripHandler) List(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	trips, err := h.trips.FetchTrips(c.Request.Context(), uid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": trips})
}

// Get handles GET /api/trips/:id.
func (h *TripHandler) Get(c *gin.Context) {
	t, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, t)
}

// Schedule handles POST /api/trips/:id/schedule.
func (h *TripHandler) Schedule(c *gin.Context) {
	t, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	rec, err := h.scheduler.ScheduleTrip(c.Request.Context(), t)
	writeJSON(c, http.StatusOK, map[string]any{
		"trip_id":        t.ID,
		"recommendation": rec,
		"warnings":       warningCodes(err),
	})
}

// Unschedule handles DELETE /api/trips/:id/schedule.
func (h *TripHandler) Unschedule(c *gin.Context) {
	t, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	h.scheduler.CancelTrip(c.Request.Context(), t.ID)
	c.Status(http.StatusNoContent)
}

// ownedTrip loads :id and checks the caller owns it. Other users' trips are 404.
func (h *TripHandler) ownedTrip(c *gin.Context) (*trip.Trip, bool) {
	uid, ok := callerID(c)
	if !ok {
		return nil, false
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid trip id")
		return nil, false
	}
	t, err := h.trips.FetchTrip(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return nil, false
	}
	if t.UserID != uid {
		writeDomainError(c, trip.ErrNotFound)
		return nil, false
	}
	return t, true
}
