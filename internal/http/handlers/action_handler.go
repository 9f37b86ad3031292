// README: Trip action handlers; publish snooze/abort/navigation/feedback on the event bus.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"commute/internal/events"
)

type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

type ActionHandler struct {
	trips *TripHandler
	bus   Publisher
}

func NewActionHandler(trips *TripHandler, bus Publisher) *ActionHandler {
	return &ActionHandler{trips: trips, bus: bus}
}

type snoozeReq struct {
	Minutes int `json:"minutes" binding:"required,gt=0,lte=240"`
}

type feedbackReq struct {
	Positive *bool `json:"positive" binding:"required"`
}

// Snooze handles POST /api/trips/:id/snooze.
func (h *ActionHandler) Snooze(c *gin.Context) {
	var req snoozeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "minutes must be between 1 and 240")
		return
	}
	t, ok := h.trips.ownedTrip(c)
	if !ok {
		return
	}
	h.publish(c, events.TopicSnooze, events.Snooze{TripID: t.ID, Minutes: req.Minutes})
}

// Abort handles POST /api/trips/:id/abort.
func (h *ActionHandler) Abort(c *gin.Context) {
	t, ok := h.trips.ownedTrip(c)
	if !ok {
		return
	}
	h.publish(c, events.TopicAbort, events.Abort{TripID: t.ID})
}

// StartNavigation handles POST /api/trips/:id/navigation.
func (h *ActionHandler) StartNavigation(c *gin.Context) {
	t, ok := h.trips.ownedTrip(c)
	if !ok {
		return
	}
	h.publish(c, events.TopicStartNavigation, events.StartNavigation{TripID: t.ID})
}

// Feedback handles POST /api/trips/:id/feedback.
func (h *ActionHandler) Feedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "positive is required")
		return
	}
	t, ok := h.trips.ownedTrip(c)
	if !ok {
		return
	}
	h.publish(c, events.TopicFeedback, events.Feedback{TripID: t.ID, UserID: t.UserID, Positive: *req.Positive})
}

// publish answers 202 even when handlers report non-fatal scheduling
// conditions; those are returned as warnings.
func (h *ActionHandler) publish(c *gin.Context, topic events.Topic, payload any) {
	err := h.bus.Publish(c.Request.Context(), topic, payload)
	warnings := warningCodes(err)
	if err != nil && len(warnings) == 0 {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted", "warnings": warnings})
}
