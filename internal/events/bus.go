// Package events is an in-process publish/subscribe bus. Publishers and
// subscribers only share the topic names and payload types below.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commute/internal/types"
)

type Topic string

const (
	TopicStartNavigation Topic = "trip.start_navigation"
	TopicSnooze          Topic = "trip.snooze"
	TopicAbort           Topic = "trip.abort"
	TopicFeedback        Topic = "trip.feedback"
)

var ErrNoSubscribers = errors.New("no subscribers for topic")

type StartNavigation struct {
	TripID types.ID
}

type Snooze struct {
	TripID  types.ID
	Minutes int
}

type Abort struct {
	TripID types.ID
}

type Feedback struct {
	TripID   types.ID
	UserID   types.ID
	Positive bool
}

type Handler func(ctx context.Context, payload any) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish calls every handler of topic in subscription order, even after a
// failure, and returns the joined handler errors.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	if len(hs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubscribers, topic)
	}
	var errs []error
	for _, h := range hs {
		if err := h(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
