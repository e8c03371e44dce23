package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TaskPulse/internal/recurrence"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is the slice of the pool needed to open a transaction.
// Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ToggleComplete inverts a task's completed flag. When a recurring task
// flips to completed, the next occurrence is materialized in the same
// transaction and the completed row stops being recurring (it becomes a
// historical instance). Returns the updated task and the materialized next
// occurrence, if any.
func ToggleComplete(ctx context.Context, db TxBeginner, userID string, id int64) (Task, *Task, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Task{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanTask(tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, nil, ErrNotFound
	}
	if err != nil {
		return Task{}, nil, fmt.Errorf("fetch task: %w", err)
	}
	if cur.UserID != userID {
		return Task{}, nil, ErrForbidden
	}

	completed := !cur.Completed
	stillRecurring := cur.IsRecurring

	var next *Task
	if completed && cur.IsRecurring && cur.RecurrenceRule != nil && recurrence.Valid(*cur.RecurrenceRule) {
		nextDate, err := recurrence.Next(materializationBase(cur), *cur.RecurrenceRule, cur.RecurrenceEnd)
		if err != nil {
			return Task{}, nil, err
		}
		if nextDate != nil {
			n, err := insertNextOccurrence(ctx, tx, cur, *nextDate)
			if err != nil {
				return Task{}, nil, err
			}
			next = &n
			// The completed row is now history; the new row carries the series.
			stillRecurring = false
		}
	}

	updated, err := scanTask(tx.QueryRow(ctx,
		`UPDATE tasks
		 SET completed=$1, is_recurring=$2, updated_at=now() AT TIME ZONE 'utc'
		 WHERE id=$3
		 RETURNING `+taskColumns,
		completed, stillRecurring, id))
	if err != nil {
		return Task{}, nil, fmt.Errorf("update completion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, nil, fmt.Errorf("commit: %w", err)
	}
	return updated, next, nil
}

// materializationBase picks the date the next occurrence is computed from:
// reminder_at, else due_at, else now.
func materializationBase(t Task) time.Time {
	if t.ReminderAt != nil {
		return t.ReminderAt.UTC()
	}
	if t.DueAt != nil {
		return t.DueAt.UTC()
	}
	return time.Now().UTC()
}

func insertNextOccurrence(ctx context.Context, db DBTX, original Task, nextDate time.Time) (Task, error) {
	// The computed date lands where the original kept its schedule.
	var reminderAt, dueAt *time.Time
	if original.ReminderAt != nil {
		reminderAt = &nextDate
	} else if original.DueAt != nil {
		dueAt = &nextDate
	}

	parentID := original.ID
	if original.ParentTaskID != nil {
		parentID = *original.ParentTaskID
	}

	t, err := scanTask(db.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, color, pinned, archived,
		                    completed, reminder_at, reminder_sent, due_at,
		                    is_recurring, recurrence_rule, recurrence_end, parent_task_id)
		 VALUES ($1,$2,$3,$4,$5,FALSE,FALSE,$6,FALSE,$7,TRUE,$8,$9,$10)
		 RETURNING `+taskColumns,
		original.UserID, original.Title, original.Description, original.Color, original.Pinned,
		reminderAt, dueAt,
		original.RecurrenceRule, original.RecurrenceEnd, parentID,
	))
	if err != nil {
		return Task{}, fmt.Errorf("materialize next occurrence: %w", err)
	}
	return t, nil
}
