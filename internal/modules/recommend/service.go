// README: Recommendation service; snapshot + predictor (heuristic fallback) + user buffer.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"commute/internal/logging"
	"commute/internal/maps"
	"commute/internal/metrics"
	"commute/internal/modules/preferences"
	"commute/internal/modules/snapshot"
	"commute/internal/prediction"
	"commute/internal/types"
)

const explanationSeparator = " • "

type Snapshotter interface {
	Snapshot(ctx context.Context, origin, destination types.Coordinate, arrival time.Time) snapshot.Snapshot
}

type PreferencesLoader interface {
	Load(ctx context.Context, userID types.ID) (preferences.Preferences, error)
}

type Options struct {
	PredictorTimeout time.Duration
	Verbose          bool
}

type Service struct {
	snapshots Snapshotter
	predictor prediction.Predictor
	prefs     PreferencesLoader
	clock     types.Clock
	logger    *slog.Logger
	opts      Options
}

// NewService wires the recommendation pipeline. predictor and prefs may be nil:
// the heuristic fallback and the default buffer are used instead.
func NewService(snapshots Snapshotter, predictor prediction.Predictor, prefs PreferencesLoader, clock types.Clock, logger *slog.Logger, opts Options) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if opts.PredictorTimeout <= 0 {
		opts.PredictorTimeout = 12 * time.Second
	}
	return &Service{
		snapshots: snapshots,
		predictor: predictor,
		prefs:     prefs,
		clock:     clock,
		logger:    logging.OrDefault(logger).With("component", "recommend"),
		opts:      opts,
	}
}

// Recommend always returns a recommendation; every upstream failure degrades
// to cached, heuristic or default data.
func (s *Service) Recommend(ctx context.Context, req Request) Recommendation {
	start := time.Now()
	defer func() { metrics.RecommendationDuration.Observe(time.Since(start).Seconds()) }()

	snap := s.snapshot(ctx, req)
	pred := s.predict(ctx, req, snap)
	buffer := s.userBuffer(ctx, req)

	arrival := req.ArrivalTime
	leave := arrival.Add(-(snap.TravelTime() + time.Duration(buffer)*time.Minute)).UTC()
	if !leave.Before(arrival) {
		leave = arrival.Add(-time.Minute).UTC()
	}

	rec := Recommendation{
		Prediction:              pred,
		Snapshot:                snap,
		RecommendedLeaveTimeUTC: leave,
		Confidence:              snap.Confidence,
		WeatherPenaltyMinutes:   int(snap.WeatherPenalty().Round(time.Minute) / time.Minute),
		UserBufferMinutes:       buffer,
	}
	rec.Explanation = explain(rec, arrival.Location())

	if s.opts.Verbose {
		s.logger.Info("recommendation computed",
			"user_id", req.UserID,
			"arrival", arrival,
			"leave_utc", leave,
			"route_source", snap.RouteSource,
			"weather_source", snap.WeatherSource,
			"traffic_delay", snap.Route.TrafficDelay,
			"heuristics_delay", snap.HeuristicsDelay,
			"buffer_minutes", buffer,
			"prediction_source", pred.Source,
			"prediction_leave", pred.LeaveTime,
			"confidence", snap.Confidence,
		)
	}
	return rec
}

// snapshot recovers a panic in snapshot generation into the static default.
func (s *Service) snapshot(ctx context.Context, req Request) (snap snapshot.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot generation panicked", "panic", r)
			snap = snapshot.Default(s.clock.Now())
		}
	}()
	return s.snapshots.Snapshot(ctx, req.Origin, req.Destination, req.ArrivalTime)
}

func (s *Service) predict(ctx context.Context, req Request, snap snapshot.Snapshot) prediction.Prediction {
	if s.predictor == nil {
		return heuristicPrediction(req.ArrivalTime, snap, s.clock.Now())
	}
	in := prediction.Input{
		Origin:      req.Origin,
		Destination: req.Destination,
		ArrivalTime: req.ArrivalTime,
		CurrentTime: s.clock.Now(),
		Route: prediction.RouteFeatures{
			Distance:            snap.Route.DistanceMeters,
			BaselineDuration:    snap.Route.Duration.Seconds(),
			CurrentTrafficDelay: snap.Route.TrafficDelay.Seconds(),
			IncidentCount:       len(snap.Route.Incidents),
			CongestionLevel:     int(snap.Route.Congestion),
		},
		Weather: prediction.WeatherFeatures{
			WeatherScore:             snap.Weather.Score(),
			PrecipitationProbability: snap.Weather.PrecipitationProbability,
			Visibility:               snap.Weather.VisibilityMeters / 1000,
		},
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.PredictorTimeout)
	defer cancel()
	pred, err := s.predictor.Predict(pctx, in)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("predictor").Inc()
		s.logger.Warn("predictor failed, using heuristic", "error", err)
		return heuristicPrediction(req.ArrivalTime, snap, s.clock.Now())
	}
	return pred
}

func (s *Service) userBuffer(ctx context.Context, req Request) int {
	if req.BufferMinutes > 0 {
		return req.BufferMinutes
	}
	if s.prefs == nil || req.UserID == "" {
		return preferences.DefaultBufferMinutes
	}
	p, err := s.prefs.Load(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("load preferences failed, using default buffer", "user_id", req.UserID, "error", err)
		return preferences.DefaultBufferMinutes
	}
	return p.BufferMinutes()
}

func heuristicPrediction(arrival time.Time, snap snapshot.Snapshot, now time.Time) prediction.Prediction {
	leave := arrival.Add(-snap.TravelTime()).UTC()
	buffer := int(snap.HeuristicsDelay / time.Minute)
	if buffer < 5 {
		buffer = 5
	}
	return prediction.Prediction{
		LeaveTime:   leave,
		Confidence:  snap.Confidence,
		Explanation: snap.Explanation,
		Alternatives: []prediction.Alternative{
			{LeaveTime: leave.Add(-10 * time.Minute), ArrivalProbability: 0.92, Description: "extra buffer"},
			{LeaveTime: leave.Add(5 * time.Minute), ArrivalProbability: 0.65, Description: "cutting it close"},
		},
		BufferMinutes: buffer,
		Source:        prediction.SourceHeuristic,
		PredictedAt:   now,
	}
}

func explain(r Recommendation, loc *time.Location) string {
	parts := []string{fmt.Sprintf("%d min travel", r.TravelMinutes())}
	if c := r.Snapshot.Route.Congestion; c >= maps.CongestionModerate {
		parts = append(parts, c.Descriptor())
	}
	if r.WeatherPenaltyMinutes > 0 {
		parts = append(parts, fmt.Sprintf("+%d min weather", r.WeatherPenaltyMinutes))
	}
	parts = append(parts, fmt.Sprintf("%d min buffer", r.UserBufferMinutes))
	parts = append(parts, "Leave by "+r.RecommendedLeaveTimeUTC.In(loc).Format("15:04"))
	return strings.Join(parts, explanationSeparator)
}
