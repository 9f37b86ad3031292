package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute/internal/events"
	"commute/internal/modules/feedback"
	"commute/internal/modules/preferences"
	"commute/internal/modules/recommend"
	"commute/internal/modules/snapshot"
	"commute/internal/modules/trip"
	"commute/internal/notify"
	"commute/internal/presence"
	"commute/internal/types"
)

var (
	baseNow   = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	arrival   = time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	homeCoord = types.Coordinate{Lat: 37.7749, Lng: -122.4194}
)

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memTrips struct {
	mu              sync.Mutex
	trips           map[types.ID]trip.Trip
	updates         []trip.Update
	fetchTripsCalls atomic.Int32
}

func (m *memTrips) FetchTrips(_ context.Context, userID types.ID) ([]trip.Trip, error) {
	m.fetchTripsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trip.Trip
	for _, t := range m.trips {
		if t.UserID == userID && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTrips) FetchTrip(_ context.Context, id types.ID) (*trip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	return &t, nil
}

func (m *memTrips) UpdateTrip(_ context.Context, id types.ID, u trip.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	if t, ok := m.trips[id]; ok && u.IsActive != nil {
		t.IsActive = *u.IsActive
		m.trips[id] = t
	}
	return nil
}

func (m *memTrips) active(id types.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trips[id].IsActive
}

type scriptedRecommender struct {
	mu    sync.Mutex
	leave time.Time
	step  time.Duration // added to leave after each call
	reqs  []recommend.Request
}

func (r *scriptedRecommender) Recommend(_ context.Context, req recommend.Request) recommend.Recommendation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	leave := r.leave
	r.leave = r.leave.Add(r.step)
	return recommend.Recommendation{
		Snapshot:                snapshot.Default(baseNow),
		RecommendedLeaveTimeUTC: leave,
		Explanation:             "20 min travel • 10 min buffer",
		Confidence:              0.6,
		UserBufferMinutes:       10,
	}
}

func (r *scriptedRecommender) set(leave time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave = leave
}

func (r *scriptedRecommender) lastRequest() recommend.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

type recordingNotifier struct {
	mu          sync.Mutex
	ops         []string
	scheduled   []notify.Request
	scheduleErr error
}

func (n *recordingNotifier) Schedule(_ context.Context, req notify.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.scheduleErr != nil {
		return n.scheduleErr
	}
	n.ops = append(n.ops, "schedule:"+req.ID)
	n.scheduled = append(n.scheduled, req)
	return nil
}

func (n *recordingNotifier) Cancel(_ context.Context, ids ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops = append(n.ops, "cancel:"+strings.Join(ids, ","))
	return nil
}

func (n *recordingNotifier) snapshot() ([]string, []notify.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ops...), append([]notify.Request(nil), n.scheduled...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops, n.scheduled = nil, nil
}

type recordingPresence struct {
	mu      sync.Mutex
	enabled bool
	starts  []presence.State
	updates []presence.State
	ends    int
}

func (p *recordingPresence) Start(_ context.Context, _ presence.Attributes, st presence.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, st)
	return nil
}

func (p *recordingPresence) Update(_ context.Context, _ types.ID, st presence.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, st)
	return nil
}

func (p *recordingPresence) End(context.Context, types.ID, presence.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ends++
	return nil
}

func (p *recordingPresence) AreEnabled(context.Context, types.ID) bool { return p.enabled }

func (p *recordingPresence) counts() (int, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.starts), len(p.updates), p.ends
}

type prefsStub struct{ p preferences.Preferences }

func (s prefsStub) Load(context.Context, types.ID) (preferences.Preferences, error) { return s.p, nil }

type identityStub struct{ name string }

func (i identityStub) FirstName(context.Context, types.ID) (string, error) {
	if i.name == "" {
		return "", errors.New("no profile")
	}
	return i.name, nil
}

type feedbackSink struct {
	mu    sync.Mutex
	items []feedback.Feedback
}

func (f *feedbackSink) RecordFeedback(_ context.Context, fb feedback.Feedback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, fb)
}

type harness struct {
	svc      *Service
	clock    *mutableClock
	trips    *memTrips
	rec      *scriptedRecommender
	push     *recordingNotifier
	inbox    *recordingNotifier
	presence *recordingPresence
	feedback *feedbackSink
	trip     trip.Trip
}

func newHarness(t *testing.T, presenceEnabled bool) *harness {
	t.Helper()
	tr := trip.Trip{
		ID:              "t1",
		UserID:          "u1",
		Name:            "Office",
		Origin:          homeCoord,
		Destination:     types.Coordinate{Lat: 37.3382, Lng: -121.8863},
		DestinationName: "HQ",
		ArrivalTime:     arrival,
		IsActive:        true,
		Notifications:   trip.NotificationSettings{Enabled: true},
	}
	h := &harness{
		clock:    &mutableClock{now: baseNow},
		trips:    &memTrips{trips: map[types.ID]trip.Trip{tr.ID: tr}},
		rec:      &scriptedRecommender{leave: time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)},
		push:     &recordingNotifier{},
		inbox:    &recordingNotifier{},
		presence: &recordingPresence{enabled: true},
		feedback: &feedbackSink{},
		trip:     tr,
	}
	h.svc = NewService(Deps{
		Trips:       h.trips,
		Recommender: h.rec,
		Notifier:    h.push,
		Fallback:    h.inbox,
		Presence:    h.presence,
		Preferences: prefsStub{p: preferences.Preferences{PresenceEnabled: presenceEnabled}},
		Identity:    identityStub{name: "Ada"},
		Feedback:    h.feedback,
		Clock:       h.clock,
	}, Options{})
	return h
}

func (h *harness) pushSchedules() int {
	_, reqs := h.push.snapshot()
	return len(reqs)
}

func TestScheduleTrip_PersonalizedNotification(t *testing.T) {
	h := newHarness(t, true)

	rec, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC).Equal(rec.RecommendedLeaveTimeUTC))

	_, reqs := h.push.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, "t1-leave", reqs[0].ID)
	assert.True(t, rec.RecommendedLeaveTimeUTC.Equal(reqs[0].TriggerAt))
	assert.True(t, reqs[0].Content.Personalized)
	assert.Equal(t, notify.CategoryLeaveReminder, reqs[0].Content.Category)
	assert.Equal(t, "Hi Ada, leave by 16:00 for HQ. 20 min travel • 10 min buffer", reqs[0].Content.Body)

	require.Len(t, h.trips.updates, 1)
	require.NotNil(t, h.trips.updates[0].LastRouteSnapshot)
	assert.Equal(t, 20, h.trips.updates[0].LastRouteSnapshot.TravelMinutes)
	require.NotNil(t, h.trips.updates[0].ExpectedWeatherSummary)

	starts, _, _ := h.presence.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, presence.ModeNormal, h.presence.starts[0].Mode)

	leave, ok := h.svc.sessions.lastLeave("t1")
	require.True(t, ok)
	assert.True(t, rec.RecommendedLeaveTimeUTC.Equal(leave))
}

func TestScheduleTrip_DefaultFirstName(t *testing.T) {
	h := newHarness(t, false)
	h.svc.identity = identityStub{}

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	require.NoError(t, err)
	_, reqs := h.push.snapshot()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].Content.Body, "Hi there, "))
}

func TestScheduleTrip_PermissionDeniedUsesFallback(t *testing.T) {
	h := newHarness(t, false)
	h.push.scheduleErr = notify.ErrPermissionDenied

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	assert.True(t, errors.Is(err, notify.ErrPermissionDenied))

	_, reqs := h.inbox.snapshot()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].Content.Personalized)
	assert.Equal(t, "Leave by 16:00 to arrive on time.", reqs[0].Content.Body)

	_, ok := h.svc.sessions.lastLeave("t1")
	assert.True(t, ok)
}

func TestScheduleTrip_LeaveTimeInPast(t *testing.T) {
	h := newHarness(t, false)
	h.rec.set(baseNow.Add(-time.Minute))

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	assert.True(t, errors.Is(err, ErrLeaveTimeInPast))
	assert.Zero(t, h.pushSchedules())
	assert.Len(t, h.trips.updates, 1)
}

func TestScheduleTrip_NotificationsDisabled(t *testing.T) {
	h := newHarness(t, false)
	h.trip.Notifications.Enabled = false

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	require.NoError(t, err)
	assert.Zero(t, h.pushSchedules())
}

func TestScheduleTrip_PresenceNotAuthorized(t *testing.T) {
	h := newHarness(t, true)
	h.presence.enabled = false

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	assert.True(t, errors.Is(err, presence.ErrActivitiesDisabled))
	assert.Equal(t, 1, h.pushSchedules())
	starts, _, _ := h.presence.counts()
	assert.Zero(t, starts)
}

func TestScheduleTrip_PresenceOffInPreferences(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.ScheduleTrip(context.Background(), &h.trip)
	require.NoError(t, err)
	starts, _, _ := h.presence.counts()
	assert.Zero(t, starts)
}

func TestRescheduleTrip_Hysteresis(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	first := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.push.reset()

	h.rec.set(first.Add(179 * time.Second))
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	ops, _ := h.push.snapshot()
	assert.Empty(t, ops)

	h.rec.set(first.Add(-179 * time.Second))
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	ops, _ = h.push.snapshot()
	assert.Empty(t, ops)

	h.rec.set(first.Add(180 * time.Second))
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	ops, reqs := h.push.snapshot()
	assert.Equal(t, []string{"cancel:t1-leave", "schedule:t1-leave"}, ops)
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].Content.Body, "Traffic changed. Hi Ada, leave by 16:03"))

	leave, _ := h.svc.sessions.lastLeave("t1")
	assert.True(t, first.Add(180*time.Second).Equal(leave))
}

func TestRescheduleTrip_WithoutRecordedLeaveIsDrift(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.svc.RescheduleTrip(context.Background(), &h.trip, "Traffic changed"))
	ops, _ := h.push.snapshot()
	assert.Equal(t, []string{"cancel:t1-leave", "schedule:t1-leave"}, ops)
}

func TestRescheduleTrip_PresenceUpdatesAreThrottled(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.rec.step = 10 * time.Minute

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)

	h.clock.Advance(40 * time.Second)
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	_, updates, _ := h.presence.counts()
	assert.Equal(t, 1, updates)

	h.clock.Advance(10 * time.Second)
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	_, updates, _ = h.presence.counts()
	assert.Equal(t, 1, updates)

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	_, updates, _ = h.presence.counts()
	assert.Equal(t, 2, updates)
}

func TestCancelTrip_Idempotent(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.push.reset()

	h.svc.CancelTrip(ctx, "t1")
	h.svc.CancelTrip(ctx, "t1")

	ops, _ := h.push.snapshot()
	assert.Equal(t, []string{"cancel:t1-leave,t1-feedback", "cancel:t1-leave,t1-feedback"}, ops)
	_, _, ends := h.presence.counts()
	assert.Equal(t, 1, ends)
	_, ok := h.svc.sessions.lastLeave("t1")
	assert.False(t, ok)
	assert.Nil(t, h.svc.sessions.presence("t1"))
}

func TestAbort_LocationChangeDoesNotReviveTrip(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.svc.Abort(ctx, "t1")
	assert.False(t, h.trips.active("t1"))
	h.push.reset()

	h.svc.observe(ctx, LocationUpdate{UserID: "u1", Coordinate: types.Coordinate{Lat: 37.70, Lng: -122.40}})
	h.svc.Wait()

	assert.EqualValues(t, 1, h.trips.fetchTripsCalls.Load())
	ops, reqs := h.push.snapshot()
	assert.Empty(t, ops)
	assert.Empty(t, reqs)
	_, ok := h.svc.sessions.lastLeave("t1")
	assert.False(t, ok)
}

func TestScheduleTrip_ReactivatesUnscheduledTrip(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.svc.CancelTrip(ctx, "t1")
	require.False(t, h.trips.active("t1"))

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	assert.True(t, h.trips.active("t1"))

	h.push.reset()
	h.rec.set(time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC))
	require.NoError(t, h.svc.HandleSignificantLocationChange(ctx, "u1"))
	ops, _ := h.push.snapshot()
	assert.Equal(t, []string{"cancel:t1-leave", "schedule:t1-leave"}, ops)
}

func TestCancelTrip_PrunesTripLock(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	lockCount := func() int {
		h.svc.sessions.mu.Lock()
		defer h.svc.sessions.mu.Unlock()
		return len(h.svc.sessions.locks)
	}

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	assert.Equal(t, 1, lockCount())

	h.svc.CancelTrip(ctx, "t1")
	assert.Equal(t, 0, lockCount())

	// a trip that never gets a session leaves nothing behind either
	h.svc.CancelTrip(ctx, "t2")
	assert.Equal(t, 0, lockCount())
}

func TestTripLock_SerializesAcrossPruning(t *testing.T) {
	ss := newSessions()
	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ss.lockTrip("t1")
			if holders.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			holders.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load())
	assert.Empty(t, ss.locks)
}

func TestFlushPresence_PushesThrottledState(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.rec.step = 10 * time.Minute

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)

	h.clock.Advance(40 * time.Second)
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	h.clock.Advance(10 * time.Second)
	require.NoError(t, h.svc.RescheduleTrip(ctx, &h.trip, "Traffic changed"))
	_, updates, _ := h.presence.counts()
	require.Equal(t, 1, updates)

	h.svc.FlushPresence(ctx) // interval not yet elapsed
	_, updates, _ = h.presence.counts()
	assert.Equal(t, 1, updates)

	h.clock.Advance(30 * time.Second)
	h.svc.FlushPresence(ctx)
	_, updates, _ = h.presence.counts()
	require.Equal(t, 2, updates)
	assert.Equal(t, time.Date(2026, 3, 2, 16, 20, 0, 0, time.UTC), h.presence.updates[1].LeaveTime)

	h.clock.Advance(30 * time.Second)
	h.svc.FlushPresence(ctx) // nothing pending
	_, updates, _ = h.presence.counts()
	assert.Equal(t, 2, updates)
}

func TestObserve_DebounceGate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	update := func(lat float64) {
		h.svc.observe(ctx, LocationUpdate{UserID: "u1", Coordinate: types.Coordinate{Lat: lat, Lng: homeCoord.Lng}})
		h.svc.Wait()
	}

	update(homeCoord.Lat) // first update always passes
	assert.EqualValues(t, 1, h.trips.fetchTripsCalls.Load())

	h.clock.Advance(60 * time.Second)
	update(homeCoord.Lat + 0.0009) // ~100 m
	assert.EqualValues(t, 1, h.trips.fetchTripsCalls.Load())

	h.clock.Advance(60 * time.Second)
	update(homeCoord.Lat + 0.009) // ~1 km but only 120 s after the trigger
	assert.EqualValues(t, 1, h.trips.fetchTripsCalls.Load())

	h.clock.Advance(180 * time.Second)
	update(homeCoord.Lat + 0.018) // ~2 km, 300 s after the trigger
	assert.EqualValues(t, 2, h.trips.fetchTripsCalls.Load())

	h.clock.Advance(60 * time.Second)
	update(homeCoord.Lat + 0.0189)
	h.clock.Advance(600 * time.Second)
	update(homeCoord.Lat + 0.0189) // ~100 m from the last trigger point
	assert.EqualValues(t, 2, h.trips.fetchTripsCalls.Load())

	known, ok := h.svc.sessions.lastKnown("u1")
	require.True(t, ok)
	assert.Equal(t, homeCoord.Lat+0.0189, known.Lat)
}

func TestObserveLocations_ReschedulesFromNewPosition(t *testing.T) {
	h := newHarness(t, false)
	updates := make(chan LocationUpdate, 1)
	here := types.Coordinate{Lat: 37.70, Lng: -122.40}
	updates <- LocationUpdate{UserID: "u1", Coordinate: here}
	close(updates)

	h.svc.ObserveLocations(context.Background(), updates)
	h.svc.Wait()

	assert.Equal(t, here, h.rec.lastRequest().Origin)
	_, reqs := h.push.snapshot()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].Content.Body, "Route updated for your new position. "))
}

func TestObserveLocations_StopsOnCancel(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.svc.ObserveLocations(ctx, make(chan LocationUpdate))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ObserveLocations did not return")
	}
}

func TestSnooze_BypassesHysteresis(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.push.reset()

	require.NoError(t, h.svc.Snooze(ctx, "t1", 10))
	ops, reqs := h.push.snapshot()
	assert.Equal(t, []string{"cancel:t1-leave", "schedule:t1-leave"}, ops)
	require.Len(t, reqs, 1)
	assert.True(t, baseNow.Add(10*time.Minute).Equal(reqs[0].TriggerAt))
	assert.Equal(t, "Snoozed for 10 minutes. 20 min travel • 10 min buffer", reqs[0].Content.Body)

	assert.True(t, errors.Is(h.svc.Snooze(ctx, "t1", 0), trip.ErrBadRequest))
	assert.True(t, errors.Is(h.svc.Snooze(ctx, "missing", 5), trip.ErrNotFound))
}

func TestStartNavigation(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	here := types.Coordinate{Lat: 37.6, Lng: -122.3}
	h.svc.sessions.setLastKnown("u1", here)
	h.push.reset()

	require.NoError(t, h.svc.StartNavigation(ctx, "t1"))

	_, updates, _ := h.presence.counts()
	require.Equal(t, 1, updates)
	st := h.presence.updates[0]
	assert.Equal(t, presence.ModeNavigating, st.Mode)
	require.NotNil(t, st.Location)
	assert.Equal(t, here, *st.Location)

	_, reqs := h.push.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, "t1-feedback", reqs[0].ID)
	assert.Equal(t, notify.CategoryTripFeedback, reqs[0].Content.Category)
	assert.True(t, arrival.Add(5*time.Minute).Equal(reqs[0].TriggerAt))
	assert.Equal(t, 15*time.Second, h.svc.sessions.presence("t1").throttler.Interval())
}

func TestBusHandlers(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	bus := events.NewBus()
	h.svc.Subscribe(bus)

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.push.reset()

	require.NoError(t, bus.Publish(ctx, events.TopicSnooze, events.Snooze{TripID: "t1", Minutes: 5}))
	require.NoError(t, bus.Publish(ctx, events.TopicStartNavigation, events.StartNavigation{TripID: "t1"}))
	require.NoError(t, bus.Publish(ctx, events.TopicFeedback, events.Feedback{TripID: "t1", UserID: "u1", Positive: true}))
	require.NoError(t, bus.Publish(ctx, events.TopicAbort, events.Abort{TripID: "t1"}))

	ops, _ := h.push.snapshot()
	assert.Equal(t, []string{
		"cancel:t1-leave", "schedule:t1-leave",
		"schedule:t1-feedback",
		"cancel:t1-leave,t1-feedback",
	}, ops)
	require.Len(t, h.feedback.items, 1)
	assert.True(t, h.feedback.items[0].Positive)
	_, ok := h.svc.sessions.lastLeave("t1")
	assert.False(t, ok)

	assert.Error(t, bus.Publish(ctx, events.TopicSnooze, "not a snooze"))
}

func TestRescheduleTrip_ConcurrentCallsAreSerialized(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.rec.step = 10 * time.Minute

	_, err := h.svc.ScheduleTrip(ctx, &h.trip)
	require.NoError(t, err)
	h.push.reset()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := h.trip
			assert.NoError(t, h.svc.RescheduleTrip(ctx, &tr, "Traffic changed"))
		}()
	}
	wg.Wait()

	ops, _ := h.push.snapshot()
	require.Len(t, ops, 16)
	for i := 0; i < len(ops); i += 2 {
		assert.Equal(t, "cancel:t1-leave", ops[i])
		assert.Equal(t, "schedule:t1-leave", ops[i+1])
	}
}
