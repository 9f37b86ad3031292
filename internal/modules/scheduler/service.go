// README: Scheduler; keeps each trip's leave notification and presence session in step with fresh recommendations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"commute/internal/logging"
	"commute/internal/metrics"
	"commute/internal/modules/feedback"
	"commute/internal/modules/preferences"
	"commute/internal/modules/recommend"
	"commute/internal/modules/trip"
	"commute/internal/notify"
	"commute/internal/presence"
	"commute/internal/throttle"
	"commute/internal/types"
)

// ErrLeaveTimeInPast means the recommended leave time has already passed, so
// no leave notification was scheduled.
var ErrLeaveTimeInPast = errors.New("recommended leave time is in the past")

const locationChangeReason = "Route updated for your new position"

type TripStore interface {
	FetchTrips(ctx context.Context, userID types.ID) ([]trip.Trip, error)
	FetchTrip(ctx context.Context, id types.ID) (*trip.Trip, error)
	UpdateTrip(ctx context.Context, id types.ID, u trip.Update) error
}

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Recommendation
}

type Notifier interface {
	Schedule(ctx context.Context, req notify.Request) error
	Cancel(ctx context.Context, ids ...string) error
}

type Presence interface {
	Start(ctx context.Context, attrs presence.Attributes, state presence.State) error
	Update(ctx context.Context, tripID types.ID, state presence.State) error
	End(ctx context.Context, tripID types.ID, state presence.State) error
	AreEnabled(ctx context.Context, userID types.ID) bool
}

type PreferencesLoader interface {
	Load(ctx context.Context, userID types.ID) (preferences.Preferences, error)
}

type Identity interface {
	FirstName(ctx context.Context, userID types.ID) (string, error)
}

type FeedbackSink interface {
	RecordFeedback(ctx context.Context, f feedback.Feedback)
}

// LocationUpdate is one sample from a user's location stream.
type LocationUpdate struct {
	UserID     types.ID
	Coordinate types.Coordinate
}

type Options struct {
	Hysteresis         time.Duration
	DebounceDistance   float64 // meters
	DebounceInterval   time.Duration
	PresenceThrottle   time.Duration
	NavigatingThrottle time.Duration
	FeedbackDelay      time.Duration

	PresenceFlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Hysteresis <= 0 {
		o.Hysteresis = 180 * time.Second
	}
	if o.DebounceDistance <= 0 {
		o.DebounceDistance = 500
	}
	if o.DebounceInterval <= 0 {
		o.DebounceInterval = 300 * time.Second
	}
	if o.PresenceThrottle <= 0 {
		o.PresenceThrottle = 30 * time.Second
	}
	if o.NavigatingThrottle <= 0 {
		o.NavigatingThrottle = 15 * time.Second
	}
	if o.FeedbackDelay <= 0 {
		o.FeedbackDelay = 5 * time.Minute
	}
	if o.PresenceFlushInterval <= 0 {
		o.PresenceFlushInterval = 5 * time.Second
	}
	return o
}

// Deps are the scheduler's collaborators. Fallback receives notifications
// when Notifier denies permission.
type Deps struct {
	Trips       TripStore
	Recommender Recommender
	Notifier    Notifier
	Fallback    Notifier
	Presence    Presence
	Preferences PreferencesLoader
	Identity    Identity
	Feedback    FeedbackSink
	Clock       types.Clock
	Logger      *slog.Logger
}

type Service struct {
	trips    TripStore
	rec      Recommender
	notifier Notifier
	fallback Notifier
	presence Presence
	prefs    PreferencesLoader
	identity Identity
	feedback FeedbackSink
	clock    types.Clock
	logger   *slog.Logger
	opts     Options

	sessions *sessions
	inflight sync.WaitGroup
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Presence == nil {
		deps.Presence = presence.Disabled{}
	}
	return &Service{
		trips:    deps.Trips,
		rec:      deps.Recommender,
		notifier: deps.Notifier,
		fallback: deps.Fallback,
		presence: deps.Presence,
		prefs:    deps.Preferences,
		identity: deps.Identity,
		feedback: deps.Feedback,
		clock:    deps.Clock,
		logger:   logging.OrDefault(deps.Logger).With("component", "scheduler"),
		opts:     opts.withDefaults(),
		sessions: newSessions(),
	}
}

// ScheduleTrip computes a recommendation, schedules the leave notification
// and starts a presence session when the user allows it. The returned error
// only joins the named notification and presence conditions; each one skipped
// a single side effect and the rest of the work completed.
func (s *Service) ScheduleTrip(ctx context.Context, t *trip.Trip) (recommend.Recommendation, error) {
	defer s.sessions.lockTrip(t.ID)()

	rec := s.recommend(ctx, t, t.Origin)
	active := true
	t.IsActive = true
	s.persistSummary(ctx, t, rec, &active)

	var surfaced []error
	if err := s.scheduleLeave(ctx, t, rec, ""); err != nil {
		surfaced = append(surfaced, err)
	}
	if err := s.startPresence(ctx, t, rec); err != nil {
		surfaced = append(surfaced, err)
	}
	s.sessions.recordLeave(t.ID, rec.RecommendedLeaveTimeUTC, rec.Explanation)
	return rec, errors.Join(surfaced...)
}

// RescheduleTrip recomputes the trip and replaces the notification only when
// the leave time moved by at least the hysteresis threshold.
func (s *Service) RescheduleTrip(ctx context.Context, t *trip.Trip, reason string) error {
	defer s.sessions.lockTrip(t.ID)()

	origin := t.Origin
	if c, ok := s.sessions.lastKnown(t.UserID); ok {
		origin = c
	}
	rec := s.recommend(ctx, t, origin)

	if prev, ok := s.sessions.lastLeave(t.ID); ok {
		delta := rec.RecommendedLeaveTimeUTC.Sub(prev)
		if delta < 0 {
			delta = -delta
		}
		if delta < s.opts.Hysteresis {
			metrics.Reschedules.WithLabelValues("suppressed").Inc()
			s.logger.Debug("reschedule suppressed", "trip_id", t.ID, "delta", delta)
			return nil
		}
	}
	metrics.Reschedules.WithLabelValues("applied").Inc()
	s.persistSummary(ctx, t, rec, nil)

	var surfaced []error
	s.cancelIDs(ctx, notify.LeaveID(t.ID))
	if err := s.scheduleLeave(ctx, t, rec, reason); err != nil {
		surfaced = append(surfaced, err)
	}
	if err := s.updatePresence(ctx, t.ID, func(st *presence.State) {
		st.LeaveTime = rec.RecommendedLeaveTimeUTC
		st.TravelMinutes = rec.TravelMinutes()
		st.Explanation = rec.Explanation
	}); err != nil {
		surfaced = append(surfaced, err)
	}
	s.sessions.recordLeave(t.ID, rec.RecommendedLeaveTimeUTC, rec.Explanation)
	return errors.Join(surfaced...)
}

// CancelTrip cancels the trip's notifications, ends its presence session,
// marks the trip inactive and forgets it. Safe to call repeatedly.
func (s *Service) CancelTrip(ctx context.Context, tripID types.ID) {
	defer s.sessions.lockTrip(tripID)()

	s.cancelIDs(ctx, notify.LeaveID(tripID), notify.FeedbackID(tripID))
	inactive := false
	if err := s.trips.UpdateTrip(ctx, tripID, trip.Update{IsActive: &inactive}); err != nil {
		s.logger.Warn("mark trip inactive failed", "trip_id", tripID, "error", err)
	}
	if sess := s.sessions.drop(tripID); sess != nil && sess.presence != nil {
		if err := s.presence.End(ctx, tripID, sess.presence.state); err != nil {
			s.logger.Warn("end presence failed", "trip_id", tripID, "error", err)
		}
	}
}

// HandleSignificantLocationChange reschedules every active trip of the user.
// Cancelled trips are inactive and not fetched.
func (s *Service) HandleSignificantLocationChange(ctx context.Context, userID types.ID) error {
	trips, err := s.trips.FetchTrips(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch trips for %s: %w", userID, err)
	}
	for i := range trips {
		if err := s.RescheduleTrip(ctx, &trips[i], locationChangeReason); err != nil {
			s.logger.Warn("reschedule after location change", "trip_id", trips[i].ID, "error", err)
		}
	}
	return nil
}

// ObserveLocations consumes updates one at a time until ctx is done or the
// channel closes. Updates that pass the debounce gate trigger a recompute in
// the background.
func (s *Service) ObserveLocations(ctx context.Context, updates <-chan LocationUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			s.observe(ctx, u)
		}
	}
}

func (s *Service) observe(ctx context.Context, u LocationUpdate) {
	s.sessions.setLastKnown(u.UserID, u.Coordinate)
	if !s.sessions.passGate(u.UserID, u.Coordinate, s.clock.Now(), s.opts.DebounceDistance, s.opts.DebounceInterval) {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.HandleSignificantLocationChange(context.WithoutCancel(ctx), u.UserID); err != nil {
			s.logger.Warn("location change recompute failed", "user_id", u.UserID, "error", err)
		}
	}()
}

// Wait blocks until background recomputes started by location updates finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// StartNavigation switches the trip's presence into navigating mode and
// schedules the post-arrival feedback prompt.
func (s *Service) StartNavigation(ctx context.Context, tripID types.ID) error {
	t, err := s.trips.FetchTrip(ctx, tripID)
	if err != nil {
		return err
	}
	defer s.sessions.lockTrip(tripID)()

	var surfaced []error
	here, hasHere := s.sessions.lastKnown(t.UserID)
	if sess := s.sessions.presence(tripID); sess != nil {
		sess.throttler = throttle.NewWithClock(s.opts.NavigatingThrottle, s.clock)
		if err := s.updatePresence(ctx, tripID, func(st *presence.State) {
			st.Mode = presence.ModeNavigating
			if hasHere {
				st.Location = &here
			}
		}); err != nil {
			surfaced = append(surfaced, err)
		}
	}

	arrival := t.NextArrival(s.clock.Now())
	req := notify.Request{
		ID:        notify.FeedbackID(tripID),
		UserID:    t.UserID,
		TriggerAt: arrival.Add(s.opts.FeedbackDelay).UTC(),
		Content: notify.Content{
			Title:    "How was your trip?",
			Body:     fmt.Sprintf("Did you make it to %s on time?", destinationLabel(t)),
			Category: notify.CategoryTripFeedback,
			TripID:   tripID,
		},
	}
	if err := s.deliver(ctx, req, req.Content); err != nil {
		surfaced = append(surfaced, err)
	}
	return errors.Join(surfaced...)
}

// Snooze moves the leave notification to now+minutes regardless of hysteresis.
func (s *Service) Snooze(ctx context.Context, tripID types.ID, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: snooze minutes must be positive", trip.ErrBadRequest)
	}
	t, err := s.trips.FetchTrip(ctx, tripID)
	if err != nil {
		return err
	}
	defer s.sessions.lockTrip(tripID)()

	reason := fmt.Sprintf("Snoozed for %d minutes", minutes)
	body := reason
	if exp := s.sessions.explanation(tripID); exp != "" {
		body += ". " + exp
	}
	content := notify.Content{
		Title:    "Time to leave",
		Body:     body,
		Category: notify.CategoryLeaveReminder,
		TripID:   tripID,
		Sound:    t.Notifications.Sound,
	}
	s.cancelIDs(ctx, notify.LeaveID(tripID))
	return s.deliver(ctx, notify.Request{
		ID:        notify.LeaveID(tripID),
		UserID:    t.UserID,
		TriggerAt: s.clock.Now().Add(time.Duration(minutes) * time.Minute).UTC(),
		Content:   content,
	}, content)
}

// Abort is CancelTrip by id.
func (s *Service) Abort(ctx context.Context, tripID types.ID) {
	s.CancelTrip(ctx, tripID)
}

// Feedback forwards post-trip feedback to analytics. Scheduler state is untouched.
func (s *Service) Feedback(ctx context.Context, tripID, userID types.ID, positive bool) {
	if s.feedback == nil {
		return
	}
	s.feedback.RecordFeedback(ctx, feedback.Feedback{TripID: tripID, UserID: userID, Positive: positive})
}

func (s *Service) recommend(ctx context.Context, t *trip.Trip, origin types.Coordinate) recommend.Recommendation {
	return s.rec.Recommend(ctx, recommend.Request{
		UserID:        t.UserID,
		Origin:        origin,
		Destination:   t.Destination,
		ArrivalTime:   t.NextArrival(s.clock.Now()),
		BufferMinutes: t.BufferMinutes,
	})
}

func (s *Service) persistSummary(ctx context.Context, t *trip.Trip, rec recommend.Recommendation, active *bool) {
	snap := rec.Snapshot
	summary := snap.Weather.Summary()
	err := s.trips.UpdateTrip(ctx, t.ID, trip.Update{
		LastRouteSnapshot: &trip.SnapshotSummary{
			TravelMinutes:      rec.TravelMinutes(),
			TrafficDelayMins:   int(snap.Route.TrafficDelay.Round(time.Minute) / time.Minute),
			Congestion:         snap.Route.Congestion.String(),
			Confidence:         rec.Confidence,
			RecommendedLeaveAt: rec.RecommendedLeaveTimeUTC,
			GeneratedAt:        snap.GeneratedAt,
		},
		ExpectedWeatherSummary: &summary,
		IsActive:               active,
	})
	if err != nil {
		s.logger.Warn("persist snapshot summary failed", "trip_id", t.ID, "error", err)
	}
}

// scheduleLeave schedules the personalized leave notification, falling back
// to non-personalized content on the fallback path when push is denied.
func (s *Service) scheduleLeave(ctx context.Context, t *trip.Trip, rec recommend.Recommendation, reason string) error {
	if !t.Notifications.Enabled {
		return nil
	}
	leave := rec.RecommendedLeaveTimeUTC
	if !leave.After(s.clock.Now()) {
		s.logger.Info("leave notification skipped", "trip_id", t.ID, "leave", leave, "error", ErrLeaveTimeInPast)
		return ErrLeaveTimeInPast
	}

	hhmm := leave.In(t.Location()).Format("15:04")
	body := fmt.Sprintf("Hi %s, leave by %s for %s. %s", s.firstName(ctx, t.UserID), hhmm, destinationLabel(t), rec.Explanation)
	coarse := fmt.Sprintf("Leave by %s to arrive on time.", hhmm)
	if reason != "" {
		body = reason + ". " + body
		coarse = reason + ". " + coarse
	}

	req := notify.Request{
		ID:        notify.LeaveID(t.ID),
		UserID:    t.UserID,
		TriggerAt: leave,
		Content: notify.Content{
			Title:        "Time to leave",
			Body:         body,
			Category:     notify.CategoryLeaveReminder,
			TripID:       t.ID,
			Personalized: true,
			Sound:        t.Notifications.Sound,
		},
	}
	fallback := req.Content
	fallback.Body = coarse
	fallback.Personalized = false
	return s.deliver(ctx, req, fallback)
}

// deliver schedules on the push path and, on permission denial, on the
// fallback path with fallbackContent. Only named conditions are returned.
func (s *Service) deliver(ctx context.Context, req notify.Request, fallbackContent notify.Content) error {
	err := s.notifier.Schedule(ctx, req)
	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues("push", "scheduled").Inc()
		return nil
	case errors.Is(err, notify.ErrInvalidTriggerTime):
		metrics.Notifications.WithLabelValues("push", "invalid_trigger").Inc()
		s.logger.Info("notification skipped", "id", req.ID, "error", err)
		return err
	case errors.Is(err, notify.ErrPermissionDenied):
		metrics.Notifications.WithLabelValues("push", "denied").Inc()
	default:
		metrics.Notifications.WithLabelValues("push", "error").Inc()
		s.logger.Warn("schedule notification failed", "id", req.ID, "error", err)
		return nil
	}

	if s.fallback == nil {
		s.logger.Info("push denied and no fallback path", "id", req.ID)
		return err
	}
	req.Content = fallbackContent
	if ferr := s.fallback.Schedule(ctx, req); ferr != nil {
		metrics.Notifications.WithLabelValues("inbox", "error").Inc()
		s.logger.Warn("fallback notification failed", "id", req.ID, "error", ferr)
	} else {
		metrics.Notifications.WithLabelValues("inbox", "scheduled").Inc()
	}
	s.logger.Info("push denied, used fallback path", "id", req.ID, "user_id", req.UserID)
	return err
}

func (s *Service) cancelIDs(ctx context.Context, ids ...string) {
	for _, n := range []Notifier{s.notifier, s.fallback} {
		if n == nil {
			continue
		}
		if err := n.Cancel(ctx, ids...); err != nil {
			s.logger.Warn("cancel notifications failed", "ids", ids, "error", err)
		}
	}
}

func (s *Service) startPresence(ctx context.Context, t *trip.Trip, rec recommend.Recommendation) error {
	if s.prefs == nil {
		return nil
	}
	p, err := s.prefs.Load(ctx, t.UserID)
	if err != nil {
		s.logger.Warn("load preferences failed, presence skipped", "user_id", t.UserID, "error", err)
		return nil
	}
	if !p.PresenceEnabled {
		return nil
	}
	if !s.presence.AreEnabled(ctx, t.UserID) {
		s.logger.Info("presence not authorized", "trip_id", t.ID)
		return presence.ErrActivitiesDisabled
	}

	sess := &presenceSession{
		attrs: presence.Attributes{
			TripID:          t.ID,
			UserID:          t.UserID,
			TripName:        t.Name,
			DestinationName: t.DestinationName,
			ArrivalTime:     t.NextArrival(s.clock.Now()),
		},
		state: presence.State{
			Mode:          presence.ModeNormal,
			LeaveTime:     rec.RecommendedLeaveTimeUTC,
			TravelMinutes: rec.TravelMinutes(),
			Explanation:   rec.Explanation,
		},
		throttler: throttle.NewWithClock(s.opts.PresenceThrottle, s.clock),
	}
	if old := s.sessions.presence(t.ID); old != nil {
		sess.state.Mode = old.state.Mode
		sess.throttler = old.throttler
	}
	if err := s.presence.Start(ctx, sess.attrs, sess.state); err != nil {
		s.logger.Info("start presence failed", "trip_id", t.ID, "error", err)
		return err
	}
	// Start counts as the first update of the interval.
	sess.throttler.ShouldExecute()
	s.sessions.setPresence(t.ID, sess)
	return nil
}

// updatePresence applies mutate to the active session and pushes it when the
// session's throttler allows. Without an active session it does nothing.
func (s *Service) updatePresence(ctx context.Context, tripID types.ID, mutate func(*presence.State)) error {
	sess := s.sessions.presence(tripID)
	if sess == nil {
		return nil
	}
	mutate(&sess.state)
	sess.pending = true
	return s.pushPresence(ctx, tripID, sess)
}

// pushPresence sends the pending state when the throttler allows. A denied
// push stays pending for FlushPresence.
func (s *Service) pushPresence(ctx context.Context, tripID types.ID, sess *presenceSession) error {
	if !sess.throttler.ShouldExecute() {
		s.logger.Debug("presence update throttled", "trip_id", tripID)
		return nil
	}
	sess.pending = false
	if err := s.presence.Update(ctx, tripID, sess.state); err != nil {
		if errors.Is(err, presence.ErrNotSupported) || errors.Is(err, presence.ErrActivitiesDisabled) {
			return err
		}
		s.logger.Warn("presence update failed", "trip_id", tripID, "error", err)
	}
	return nil
}

// FlushPresence pushes presence state that was held back by the throttler
// once its interval has elapsed.
func (s *Service) FlushPresence(ctx context.Context) {
	for _, id := range s.sessions.presenceTrips() {
		s.flushTrip(ctx, id)
	}
}

func (s *Service) flushTrip(ctx context.Context, tripID types.ID) {
	defer s.sessions.lockTrip(tripID)()
	sess := s.sessions.presence(tripID)
	if sess == nil || !sess.pending {
		return
	}
	if err := s.pushPresence(ctx, tripID, sess); err != nil {
		s.logger.Info("presence flush failed", "trip_id", tripID, "error", err)
	}
}

// RunPresenceFlush calls FlushPresence every PresenceFlushInterval until ctx
// is done.
func (s *Service) RunPresenceFlush(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PresenceFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FlushPresence(ctx)
		}
	}
}

func (s *Service) firstName(ctx context.Context, userID types.ID) string {
	if s.identity == nil {
		return "there"
	}
	name, err := s.identity.FirstName(ctx, userID)
	if err != nil || name == "" {
		return "there"
	}
	return name
}

func destinationLabel(t *trip.Trip) string {
	switch {
	case t.DestinationName != "":
		return t.DestinationName
	case t.Name != "":
		return t.Name
	}
	return "your destination"
}
