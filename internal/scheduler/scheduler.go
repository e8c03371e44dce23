// Package scheduler scans for due, unsent reminders on a fixed interval
// and publishes one reminder event per (task, push subscription) pair.
// It never writes to the database; the worker marks reminders sent.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"TaskPulse/internal/app"
	"TaskPulse/internal/events"
)

const tickTimeout = 30 * time.Second

// Store is the read-only slice of the task store the scheduler needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]app.Task, error)
	SubscriptionsForUser(ctx context.Context, userID string) ([]app.Subscription, error)
}

type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Scheduler struct {
	store    Store
	bus      Bus
	interval time.Duration
	log      zerolog.Logger
}

func New(store Store, bus Bus, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: store, bus: bus, interval: interval, log: log}
}

// Start runs one tick immediately, then on every interval until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	published, err := s.RunTick(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reminder scan failed")
		return
	}
	if published > 0 {
		s.log.Info().Int("published", published).Msg("reminder events published")
	}
}

// RunTick scans once and returns how many events were published. A
// publish failure for one event is logged and does not stop the rest;
// the unsent reminder stays due and is retried on the next tick.
func (s *Scheduler) RunTick(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	tasks, err := s.store.DueReminders(ctx, now)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, task := range tasks {
		subs, err := s.store.SubscriptionsForUser(ctx, task.UserID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", task.UserID).
				Msg("failed to load push subscriptions")
			continue
		}
		if len(subs) == 0 {
			continue
		}

		for _, sub := range subs {
			event := events.ReminderEvent{
				EventID:    events.NewEventID(),
				TaskID:     task.ID,
				UserID:     task.UserID,
				Title:      task.Title,
				ReminderAt: *task.ReminderAt,
				DueAt:      task.DueAt,
				PushSubscription: events.PushSubscription{
					Endpoint: sub.Endpoint,
					Keys: events.SubscriptionKeys{
						P256dh: sub.P256dhKey,
						Auth:   sub.AuthKey,
					},
				},
				Timestamp: now,
			}

			payload, err := json.Marshal(event)
			if err != nil {
				s.log.Error().Err(err).Int64("task_id", task.ID).
					Msg("failed to encode reminder event")
				continue
			}
			if err := s.bus.Publish(ctx, events.TopicReminders, payload); err != nil {
				s.log.Error().Err(err).Int64("task_id", task.ID).
					Msg("failed to publish reminder event")
				continue
			}
			published++
		}
	}
	return published, nil
}
