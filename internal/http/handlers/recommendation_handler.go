// README: Recommendation handler; one-off leave-time recommendation for the caller.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"commute/internal/modules/recommend"
)

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Recommendation
}

type RecommendationHandler struct {
	rec Recommender
}

func NewRecommendationHandler(rec Recommender) *RecommendationHandler {
	return &RecommendationHandler{rec: rec}
}

// Create handles POST /api/recommendations.
func (h *RecommendationHandler) Create(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req recommend.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Origin.Valid() || !req.Destination.Valid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if req.BufferMinutes < 0 {
		writeError(c, http.StatusBadRequest, "buffer_minutes must not be negative")
		return
	}
	req.UserID = uid
	writeJSON(c, http.StatusOK, h.rec.Recommend(c.Request.Context(), req))
}
