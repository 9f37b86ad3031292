// README: Location handler; feeds the caller's position into the scheduler's location stream.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commute/internal/modules/scheduler"
	"commute/internal/types"
)

type LocationHandler struct {
	updates chan<- scheduler.LocationUpdate
}

func NewLocationHandler(updates chan<- scheduler.LocationUpdate) *LocationHandler {
	return &LocationHandler{updates: updates}
}

type locationReq struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// Update handles PUT /api/location. A full stream answers 503 rather than
// blocking the request.
func (h *LocationHandler) Update(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	coord := types.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	if !coord.Valid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}
	select {
	case h.updates <- scheduler.LocationUpdate{UserID: uid, Coordinate: coord}:
		writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted"})
	default:
		writeError(c, http.StatusServiceUnavailable, "location stream is busy")
	}
}
