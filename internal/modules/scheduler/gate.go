package scheduler

import (
	"time"

	"commute/internal/types"
)

// passGate reports whether a location update should trigger a recompute and,
// when it does, records it as the new recalculation point. The first update
// for a user always passes.
func (s *sessions) passGate(userID types.ID, c types.Coordinate, now time.Time, minDistance float64, minInterval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if u.hasRecalc {
		if c.DistanceMeters(u.lastRecalc) <= minDistance || now.Sub(u.lastRecalcAt) < minInterval {
			return false
		}
	}
	u.lastRecalc, u.lastRecalcAt, u.hasRecalc = c, now, true
	return true
}
