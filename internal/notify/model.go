// Package notify schedules user notifications: FCM push through a Redis-backed
// due queue, with a Redis in-app inbox as the always-permitted fallback path.
package notify

import (
	"errors"
	"time"

	"commute/internal/types"
)

var (
	// ErrPermissionDenied means the user cannot receive push notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrInvalidTriggerTime means the trigger is not in the future.
	ErrInvalidTriggerTime = errors.New("notification trigger time is in the past")
)

// Category groups notifications that share a set of actions.
type Category string

const (
	CategoryLeaveReminder Category = "LEAVE_REMINDER"
	CategoryTripFeedback  Category = "TRIP_FEEDBACK"
)

// Action is a user response attached to a notification category.
type Action string

const (
	ActionStartNavigation  Action = "START_NAVIGATION"
	ActionSnooze           Action = "SNOOZE"
	ActionAbort            Action = "ABORT_TRIP"
	ActionFeedbackPositive Action = "FEEDBACK_POSITIVE"
	ActionFeedbackNegative Action = "FEEDBACK_NEGATIVE"
)

// Actions lists the actions a client should render for the category.
func (c Category) Actions() []Action {
	switch c {
	case CategoryLeaveReminder:
		return []Action{ActionStartNavigation, ActionSnooze, ActionAbort}
	case CategoryTripFeedback:
		return []Action{ActionFeedbackPositive, ActionFeedbackNegative}
	}
	return nil
}

type Content struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Category     Category `json:"category"`
	TripID       types.ID `json:"trip_id"`
	Personalized bool     `json:"personalized"`
	Sound        bool     `json:"sound"`
}

// Request is one non-repeating notification fired at TriggerAt.
type Request struct {
	ID        string    `json:"id"`
	UserID    types.ID  `json:"user_id"`
	Content   Content   `json:"content"`
	TriggerAt time.Time `json:"trigger_at"`
}

// LeaveID and FeedbackID are the stable request ids for a trip, so a reschedule
// replaces rather than duplicates.
func LeaveID(tripID types.ID) string    { return string(tripID) + "-leave" }
func FeedbackID(tripID types.ID) string { return string(tripID) + "-feedback" }
