// README: Recommendation request/result types.
package recommend

import (
	"time"

	"commute/internal/modules/snapshot"
	"commute/internal/prediction"
	"commute/internal/types"
)

type Request struct {
	UserID        types.ID         `json:"user_id"`
	Origin        types.Coordinate `json:"origin" binding:"required"`
	Destination   types.Coordinate `json:"destination" binding:"required"`
	ArrivalTime   time.Time        `json:"arrival_time" binding:"required"`
	BufferMinutes int              `json:"buffer_minutes"` // overrides preferences when > 0
}

// Recommendation is the final leave-time decision. RecommendedLeaveTimeUTC is
// always strictly before the requested arrival.
type Recommendation struct {
	Prediction              prediction.Prediction `json:"prediction"`
	Snapshot                snapshot.Snapshot     `json:"snapshot"`
	RecommendedLeaveTimeUTC time.Time             `json:"recommended_leave_time_utc"`
	Explanation             string                `json:"explanation"`
	Confidence              float64               `json:"confidence"`
	WeatherPenaltyMinutes   int                   `json:"weather_penalty_minutes"`
	UserBufferMinutes       int                   `json:"user_buffer_minutes"`
}

// TravelMinutes is the traffic-adjusted travel time including the heuristic delay.
func (r Recommendation) TravelMinutes() int {
	return int(r.Snapshot.TravelTime().Round(time.Minute) / time.Minute)
}
