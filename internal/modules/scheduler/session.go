// README: In-memory scheduler session state; never persisted.
package scheduler

import (
	"sync"
	"time"

	"commute/internal/presence"
	"commute/internal/throttle"
	"commute/internal/types"
)

type presenceSession struct {
	attrs     presence.Attributes
	state     presence.State
	throttler *throttle.Throttler
	pending   bool // state changed since the last push
}

type tripSession struct {
	lastLeave       time.Time
	hasLeave        bool
	lastExplanation string
	presence        *presenceSession
}

type userSession struct {
	lastKnown    types.Coordinate
	hasKnown     bool
	lastRecalc   types.Coordinate
	lastRecalcAt time.Time
	hasRecalc    bool
}

type sessions struct {
	mu    sync.Mutex
	trips map[types.ID]*tripSession
	users map[types.ID]*userSession
	locks map[types.ID]*tripLock
}

type tripLock struct {
	mu   sync.Mutex
	refs int // holders plus waiters, guarded by sessions.mu
}

func newSessions() *sessions {
	return &sessions{
		trips: make(map[types.ID]*tripSession),
		users: make(map[types.ID]*userSession),
		locks: make(map[types.ID]*tripLock),
	}
}

// lockTrip serializes cancel-then-recreate for one trip and returns the
// unlock func. The lock entry is pruned on the last release once the trip has
// no session left.
func (s *sessions) lockTrip(id types.ID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &tripLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		l.refs--
		if _, live := s.trips[id]; l.refs == 0 && !live {
			delete(s.locks, id)
		}
	}
}

func (s *sessions) trip(id types.ID) *tripSession {
	t, ok := s.trips[id]
	if !ok {
		t = &tripSession{}
		s.trips[id] = t
	}
	return t
}

func (s *sessions) user(id types.ID) *userSession {
	u, ok := s.users[id]
	if !ok {
		u = &userSession{}
		s.users[id] = u
	}
	return u
}

func (s *sessions) lastLeave(id types.ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok || !t.hasLeave {
		return time.Time{}, false
	}
	return t.lastLeave, true
}

func (s *sessions) recordLeave(id types.ID, leave time.Time, explanation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trip(id)
	t.lastLeave, t.hasLeave = leave, true
	t.lastExplanation = explanation
}

func (s *sessions) explanation(id types.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trips[id]; ok {
		return t.lastExplanation
	}
	return ""
}

func (s *sessions) setPresence(id types.ID, p *presenceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trip(id).presence = p
}

func (s *sessions) presence(id types.ID) *presenceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trips[id]; ok {
		return t.presence
	}
	return nil
}

// presenceTrips lists trips that have a presence session.
func (s *sessions) presenceTrips() []types.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []types.ID
	for id, t := range s.trips {
		if t.presence != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// drop removes the trip's session and returns it.
func (s *sessions) drop(id types.ID) *tripSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trips[id]
	delete(s.trips, id)
	return t
}

func (s *sessions) setLastKnown(userID types.ID, c types.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.lastKnown, u.hasKnown = c, true
}

func (s *sessions) lastKnown(userID types.ID) (types.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || !u.hasKnown {
		return types.Coordinate{}, false
	}
	return u.lastKnown, true
}
