package worker

import (
	"context"
	"errors"

	"TaskPulse/internal/app"
)

// DBProber reads the reminder_sent flag directly from the database.
type DBProber struct {
	DB app.DBTX
}

func (p DBProber) ReminderSent(ctx context.Context, taskID int64) (bool, error) {
	sent, err := app.ReminderSent(ctx, p.DB, taskID)
	if errors.Is(err, app.ErrNotFound) {
		// Task permanently deleted after the event was published.
		// Nothing to notify about.
		return true, nil
	}
	return sent, err
}
