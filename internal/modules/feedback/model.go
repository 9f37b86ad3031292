// README: Post-trip feedback recorded for analytics.
package feedback

import (
	"time"

	"commute/internal/types"
)

type Feedback struct {
	TripID    types.ID  `json:"trip_id"`
	UserID    types.ID  `json:"user_id"`
	Positive  bool      `json:"positive"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary counts feedback for one trip.
type Summary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}
