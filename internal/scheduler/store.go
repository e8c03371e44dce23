package scheduler

import (
	"context"
	"time"

	"TaskPulse/internal/app"
)

// DBStore adapts the pgx pool to the scheduler's read-only Store.
type DBStore struct {
	DB app.DBTX
}

func (s DBStore) DueReminders(ctx context.Context, now time.Time) ([]app.Task, error) {
	return app.DueReminders(ctx, s.DB, now)
}

func (s DBStore) SubscriptionsForUser(ctx context.Context, userID string) ([]app.Subscription, error) {
	return app.ListSubscriptions(ctx, s.DB, userID)
}
