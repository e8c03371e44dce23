// Package worker consumes reminder events off the bus and delivers Web
// Push notifications. Delivery is at-most-once per event: the worker
// probes the reminder_sent flag before pushing, and a push attempt is
// never repeated once the gateway has accepted it.
package worker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"TaskPulse/internal/bus"
	"TaskPulse/internal/events"
	"TaskPulse/internal/push"
)

// Prober answers whether a task's reminder was already sent. Reads go
// straight to the database; writes go through the API.
type Prober interface {
	ReminderSent(ctx context.Context, taskID int64) (bool, error)
}

// API is the slice of the server's service endpoints the worker calls.
type API interface {
	MarkReminderSent(ctx context.Context, taskID int64) error
	DeleteSubscriptionEndpoint(ctx context.Context, endpoint string) error
}

// Pusher dispatches one notification and classifies the result.
type Pusher interface {
	Send(ctx context.Context, sub events.PushSubscription, p push.Payload) (push.Outcome, error)
}

type Worker struct {
	prober Prober
	api    API
	pusher Pusher
	log    zerolog.Logger
}

func New(prober Prober, api API, pusher Pusher, log zerolog.Logger) *Worker {
	return &Worker{prober: prober, api: api, pusher: pusher, log: log}
}

// HandleReminder processes one reminder event.
//
// Returning nil acks the event. Returning a plain error nacks it for
// redelivery. Malformed payloads are dropped: redelivering them can
// never succeed.
func (w *Worker) HandleReminder(ctx context.Context, payload []byte) error {
	var event events.ReminderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.log.Error().Err(err).Msg("dropping undecodable reminder event")
		return bus.Drop(err)
	}

	log := w.log.With().
		Str("event_id", event.EventID).
		Int64("task_id", event.TaskID).
		Str("user_id", event.UserID).
		Logger()

	// Best-effort dedup: a failed probe falls through to delivery rather
	// than blocking the reminder behind a read outage.
	sent, err := w.prober.ReminderSent(ctx, event.TaskID)
	if err != nil {
		log.Warn().Err(err).Msg("reminder sent probe failed, delivering anyway")
	} else if sent {
		log.Debug().Msg("reminder already sent, skipping")
		return nil
	}

	notification := push.ReminderPayload(event.TaskID, event.Title, event.DueAt)
	outcome, sendErr := w.pusher.Send(ctx, event.PushSubscription, notification)

	switch outcome {
	case push.Delivered:
		// The user has the notification. If the mark-sent call fails we
		// still ack: redelivery would risk a duplicate push, and the
		// dedup probe on sibling events closes most of the gap.
		if err := w.api.MarkReminderSent(ctx, event.TaskID); err != nil {
			log.Error().Err(err).Msg("push delivered but mark-sent failed")
		} else {
			log.Info().Msg("reminder delivered")
		}
		return nil

	case push.Terminal:
		log.Warn().Err(sendErr).Str("endpoint", event.PushSubscription.Endpoint).
			Msg("subscription rejected by gateway, pruning")
		if err := w.api.DeleteSubscriptionEndpoint(ctx, event.PushSubscription.Endpoint); err != nil {
			log.Error().Err(err).Msg("failed to prune dead subscription")
		}
		return nil

	default:
		log.Warn().Err(sendErr).Msg("push dispatch failed, will retry")
		return sendErr
	}
}

// HandleTaskEvent is the audit consumer for task lifecycle events. It
// only logs; the topic exists so other consumers can attach later.
func (w *Worker) HandleTaskEvent(ctx context.Context, payload []byte) error {
	var event events.TaskEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.log.Error().Err(err).Msg("dropping undecodable task event")
		return bus.Drop(err)
	}

	e := w.log.Info().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Int64("task_id", event.TaskID).
		Str("user_id", event.UserID).
		Time("timestamp", event.Timestamp.UTC())
	if event.IsRecurring {
		e = e.Bool("is_recurring", true)
		if event.RecurrenceRule != nil {
			e = e.Str("recurrence_rule", *event.RecurrenceRule)
		}
	}
	e.Msg("task event")
	return nil
}
