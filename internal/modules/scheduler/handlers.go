// README: Event bus subscriptions for user actions on trips.
package scheduler

import (
	"context"
	"fmt"

	"commute/internal/events"
)

// Subscribe registers the scheduler's handlers for trip action topics.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TopicStartNavigation, func(ctx context.Context, p any) error {
		e, ok := p.(events.StartNavigation)
		if !ok {
			return payloadError(events.TopicStartNavigation, p)
		}
		return s.StartNavigation(ctx, e.TripID)
	})
	bus.Subscribe(events.TopicSnooze, func(ctx context.Context, p any) error {
		e, ok := p.(events.Snooze)
		if !ok {
			return payloadError(events.TopicSnooze, p)
		}
		return s.Snooze(ctx, e.TripID, e.Minutes)
	})
	bus.Subscribe(events.TopicAbort, func(ctx context.Context, p any) error {
		e, ok := p.(events.Abort)
		if !ok {
			return payloadError(events.TopicAbort, p)
		}
		s.Abort(ctx, e.TripID)
		return nil
	})
	bus.Subscribe(events.TopicFeedback, func(ctx context.Context, p any) error {
		e, ok := p.(events.Feedback)
		if !ok {
			return payloadError(events.TopicFeedback, p)
		}
		s.Feedback(ctx, e.TripID, e.UserID, e.Positive)
		return nil
	})
}

func payloadError(topic events.Topic, p any) error {
	return fmt.Errorf("scheduler: unexpected payload %T on %s", p, topic)
}
