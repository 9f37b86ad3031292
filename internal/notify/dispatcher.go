// README: Dispatcher loop; sends due push notifications through FCM.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"firebase.google.com/go/v4/messaging"

	"commute/internal/logging"
	"commute/internal/metrics"
	"commute/internal/types"
)

// Sender delivers one FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type dueQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]Request, error)
	DeviceToken(ctx context.Context, userID types.ID) (string, error)
}

type Dispatcher struct {
	queue  dueQueue
	sender Sender
	clock  types.Clock
	tick   time.Duration
	batch  int64
	logger *slog.Logger
}

func NewDispatcher(queue *PushQueue, sender Sender, tick time.Duration, logger *slog.Logger) *Dispatcher {
	return newDispatcher(queue, sender, types.RealClock{}, tick, logger)
}

func newDispatcher(queue dueQueue, sender Sender, clock types.Clock, tick time.Duration, logger *slog.Logger) *Dispatcher {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Dispatcher{
		queue:  queue,
		sender: sender,
		clock:  clock,
		tick:   tick,
		batch:  100,
		logger: logging.OrDefault(logger).With("component", "notify-dispatcher"),
	}
}

func (d *Dispatcher) RunDispatcher(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.logger.Warn("dispatch due notifications failed", "error", err)
			}
		}
	}
}

// DispatchDue sends every request due now and reports how many were delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.queue.ClaimDue(ctx, d.clock.Now(), d.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, req := range due {
		token, err := d.queue.DeviceToken(ctx, req.UserID)
		if err != nil {
			metrics.Notifications.WithLabelValues("push", "dropped").Inc()
			d.logger.Warn("no device for due notification", "id", req.ID, "user_id", req.UserID, "error", err)
			continue
		}
		messageID, err := d.sender.Send(ctx, buildMessage(token, req))
		if err != nil {
			metrics.Notifications.WithLabelValues("push", "send_failed").Inc()
			d.logger.Warn("fcm send failed", "id", req.ID, "error", err)
			continue
		}
		metrics.Notifications.WithLabelValues("push", "sent").Inc()
		d.logger.Debug("fcm sent", "id", req.ID, "message_id", messageID)
		sent++
	}
	return sent, nil
}

func buildMessage(token string, req Request) *messaging.Message {
	actions := make([]string, 0, 3)
	for _, a := range req.Content.Category.Actions() {
		actions = append(actions, string(a))
	}
	msg := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"id":         req.ID,
			"category":   string(req.Content.Category),
			"trip_id":    string(req.Content.TripID),
			"actions":    strings.Join(actions, ","),
			"trigger_at": strconv.FormatInt(req.TriggerAt.Unix(), 10),
		},
		Notification: &messaging.Notification{
			Title: req.Content.Title,
			Body:  req.Content.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Category: string(req.Content.Category)},
			},
		},
	}
	if req.Content.Sound {
		msg.APNS.Payload.Aps.Sound = "default"
		msg.Android.Notification = &messaging.AndroidNotification{Sound: "default"}
	}
	return msg
}
