// README: Feedback service; analytics sink for post-trip feedback (DB row + counter).
package feedback

import (
	"context"
	"log/slog"
	"time"

	"commute/internal/logging"
	"commute/internal/metrics"
	"commute/internal/types"
)

type Recorder interface {
	Insert(ctx context.Context, f Feedback) error
}

type Service struct {
	store  Recorder
	clock  types.Clock
	logger *slog.Logger
}

func NewService(store Recorder, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{store: store, clock: clock, logger: logging.OrDefault(logger).With("component", "feedback")}
}

// RecordFeedback counts the feedback and persists it in the background.
// Failures are logged only.
func (s *Service) RecordFeedback(ctx context.Context, f Feedback) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.clock.Now()
	}
	sentiment := "negative"
	if f.Positive {
		sentiment = "positive"
	}
	metrics.Feedback.WithLabelValues(sentiment).Inc()

	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.store.Insert(wctx, f); err != nil {
			s.logger.Warn("record feedback failed", "trip_id", f.TripID, "error", err)
		}
	}()
}
