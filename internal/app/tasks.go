package app

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"TaskPulse/internal/recurrence"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

type Task struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	Color       string  `json:"color"`
	Pinned      bool    `json:"pinned"`
	Archived    bool    `json:"archived"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	ReminderAt   *time.Time `json:"reminder_at,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
	DueAt        *time.Time `json:"due_at,omitempty"`

	IsRecurring    bool       `json:"is_recurring"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
	RecurrenceEnd  *time.Time `json:"recurrence_end,omitempty"`
	ParentTaskID   *int64     `json:"parent_task_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Trash exposes the soft-delete tri-state as a tagged view so callers
// cannot mistake a trashed task for an active one.
func (t Task) Trash() (deletedAt time.Time, trashed bool) {
	if t.DeletedAt == nil {
		return time.Time{}, false
	}
	return *t.DeletedAt, true
}

// taskColumns is the canonical column list every task query selects.
const taskColumns = `id, user_id, title, description, completed, color, pinned, archived,
	        deleted_at, reminder_at, reminder_sent, due_at,
	        is_recurring, recurrence_rule, recurrence_end, parent_task_id,
	        created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.Color, &t.Pinned, &t.Archived,
		&t.DeletedAt, &t.ReminderAt, &t.ReminderSent, &t.DueAt,
		&t.IsRecurring, &t.RecurrenceRule, &t.RecurrenceEnd, &t.ParentTaskID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type CreateTaskParams struct {
	Title          string
	Description    *string
	Color          string
	Pinned         bool
	ReminderAt     *time.Time
	DueAt          *time.Time
	IsRecurring    bool
	RecurrenceRule *string
	RecurrenceEnd  *time.Time
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return validationf("title is required")
	}
	if n > maxTitleLen {
		return validationf("title exceeds %d characters", maxTitleLen)
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > maxDescriptionLen {
		return validationf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}

func validateRecurrence(isRecurring bool, rule *string) error {
	if !isRecurring {
		return nil
	}
	if rule == nil || !recurrence.Valid(*rule) {
		return validationf("recurring tasks require a valid recurrence rule")
	}
	return nil
}

func CreateTask(ctx context.Context, db DBTX, userID string, p CreateTaskParams) (Task, error) {
	if err := validateTitle(p.Title); err != nil {
		return Task{}, err
	}
	if err := validateDescription(p.Description); err != nil {
		return Task{}, err
	}
	if err := validateRecurrence(p.IsRecurring, p.RecurrenceRule); err != nil {
		return Task{}, err
	}

	color := p.Color
	if color == "" {
		color = "default"
	}

	t, err := scanTask(db.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, color, pinned,
		                    reminder_at, due_at,
		                    is_recurring, recurrence_rule, recurrence_end)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING `+taskColumns,
		userID, p.Title, p.Description, color, p.Pinned,
		utcPtr(p.ReminderAt), utcPtr(p.DueAt),
		p.IsRecurring, p.RecurrenceRule, utcPtr(p.RecurrenceEnd),
	))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask fetches a task by id and enforces ownership. Lookups are by id
// alone so a foreign task yields ErrForbidden, not ErrNotFound.
func GetTask(ctx context.Context, db DBTX, userID string, id int64) (Task, error) {
	t, err := scanTask(db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("fetch task: %w", err)
	}
	if t.UserID != userID {
		return Task{}, ErrForbidden
	}
	return t, nil
}

type TaskFilter string

const (
	FilterActive    TaskFilter = "active"
	FilterTrash     TaskFilter = "trash"
	FilterArchive   TaskFilter = "archive"
	FilterReminders TaskFilter = "reminders"
)

func ListTasks(ctx context.Context, db DBTX, userID string, filter TaskFilter) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1`

	switch filter {
	case FilterActive, "":
		q += ` AND deleted_at IS NULL AND archived = FALSE`
	case FilterTrash:
		q += ` AND deleted_at IS NOT NULL`
	case FilterArchive:
		q += ` AND deleted_at IS NULL AND archived = TRUE`
	case FilterReminders:
		// Archived tasks keep their reminders; only deletion gates them.
		q += ` AND deleted_at IS NULL AND reminder_at IS NOT NULL`
	default:
		return nil, validationf("unknown filter %q", filter)
	}

	q += ` ORDER BY pinned DESC, created_at DESC, id DESC`

	rows, err := db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 64)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type UpdateTaskPatch struct {
	Title       *string
	Description *string
	Color       *string
	Pinned      *bool
	Archived    *bool

	ReminderAt      *time.Time
	ClearReminderAt bool
	DueAt           *time.Time
	ClearDueAt      bool

	IsRecurring        *bool
	RecurrenceRule     *string
	ClearRecurrence    bool
	RecurrenceEnd      *time.Time
	ClearRecurrenceEnd bool
}

// UpdateTask applies a partial update. Touching reminder_at in either
// direction resets the reminder_sent latch.
func UpdateTask(ctx context.Context, db DBTX, userID string, id int64, patch UpdateTaskPatch) (Task, error) {
	cur, err := GetTask(ctx, db, userID, id)
	if err != nil {
		return Task{}, err
	}

	next := cur

	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = patch.Description
	}
	if patch.Color != nil {
		next.Color = *patch.Color
	}
	if patch.Pinned != nil {
		next.Pinned = *patch.Pinned
	}
	if patch.Archived != nil {
		next.Archived = *patch.Archived
	}

	if patch.ClearReminderAt {
		next.ReminderAt = nil
		next.ReminderSent = false
	} else if patch.ReminderAt != nil {
		next.ReminderAt = utcPtr(patch.ReminderAt)
		next.ReminderSent = false
	}

	if patch.ClearDueAt {
		next.DueAt = nil
	} else if patch.DueAt != nil {
		next.DueAt = utcPtr(patch.DueAt)
	}

	if patch.ClearRecurrence {
		next.IsRecurring = false
		next.RecurrenceRule = nil
		next.RecurrenceEnd = nil
	} else {
		if patch.IsRecurring != nil {
			next.IsRecurring = *patch.IsRecurring
		}
		if patch.RecurrenceRule != nil {
			next.RecurrenceRule = patch.RecurrenceRule
		}
		if patch.ClearRecurrenceEnd {
			next.RecurrenceEnd = nil
		} else if patch.RecurrenceEnd != nil {
			next.RecurrenceEnd = utcPtr(patch.RecurrenceEnd)
		}
	}

	if err := validateTitle(next.Title); err != nil {
		return Task{}, err
	}
	if err := validateDescription(next.Description); err != nil {
		return Task{}, err
	}
	if err := validateRecurrence(next.IsRecurring, next.RecurrenceRule); err != nil {
		return Task{}, err
	}

	t, err := scanTask(db.QueryRow(ctx,
		`UPDATE tasks
		 SET title=$1, description=$2, color=$3, pinned=$4, archived=$5,
		     reminder_at=$6, reminder_sent=$7, due_at=$8,
		     is_recurring=$9, recurrence_rule=$10, recurrence_end=$11,
		     updated_at=now() AT TIME ZONE 'utc'
		 WHERE id=$12 AND user_id=$13
		 RETURNING `+taskColumns,
		next.Title, next.Description, next.Color, next.Pinned, next.Archived,
		next.ReminderAt, next.ReminderSent, next.DueAt,
		next.IsRecurring, next.RecurrenceRule, next.RecurrenceEnd,
		id, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func ownedTaskDelta(ctx context.Context, db DBTX, userID string, id int64, sql string) error {
	var owner string
	err := db.QueryRow(ctx, `SELECT user_id FROM tasks WHERE id=$1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch task owner: %w", err)
	}
	if owner != userID {
		return ErrForbidden
	}

	if _, err := db.Exec(ctx, sql, id, userID); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// SoftDelete moves a task to the trash.
func SoftDelete(ctx context.Context, db DBTX, userID string, id int64) error {
	return ownedTaskDelta(ctx, db, userID, id,
		`UPDATE tasks SET deleted_at=now() AT TIME ZONE 'utc', updated_at=now() AT TIME ZONE 'utc'
		 WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`)
}

// Restore pulls a task back out of the trash.
func Restore(ctx context.Context, db DBTX, userID string, id int64) error {
	return ownedTaskDelta(ctx, db, userID, id,
		`UPDATE tasks SET deleted_at=NULL, updated_at=now() AT TIME ZONE 'utc'
		 WHERE id=$1 AND user_id=$2`)
}

// PermanentDelete removes the task and its label associations in one
// statement.
func PermanentDelete(ctx context.Context, db DBTX, userID string, id int64) error {
	return ownedTaskDelta(ctx, db, userID, id,
		`WITH labels AS (
		   DELETE FROM task_labels WHERE task_id=$1
		 )
		 DELETE FROM tasks WHERE id=$1 AND user_id=$2`)
}

// EmptyTrash permanently deletes every trashed task of the user.
func EmptyTrash(ctx context.Context, db DBTX, userID string) error {
	_, err := db.Exec(ctx,
		`WITH trashed AS (
		   SELECT id FROM tasks WHERE user_id=$1 AND deleted_at IS NOT NULL
		 ), labels AS (
		   DELETE FROM task_labels WHERE task_id IN (SELECT id FROM trashed)
		 )
		 DELETE FROM tasks WHERE id IN (SELECT id FROM trashed)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("empty trash: %w", err)
	}
	return nil
}

// MarkReminderSent latches reminder_sent. Not user-scoped: the caller is
// the notification worker over the trusted channel. Idempotent.
func MarkReminderSent(ctx context.Context, db DBTX, id int64) (Task, error) {
	t, err := scanTask(db.QueryRow(ctx,
		`UPDATE tasks SET reminder_sent=TRUE, updated_at=now() AT TIME ZONE 'utc'
		 WHERE id=$1
		 RETURNING `+taskColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("mark reminder sent: %w", err)
	}
	return t, nil
}

// ReminderSent reads the latch for the worker's dedup probe.
func ReminderSent(ctx context.Context, db DBTX, id int64) (bool, error) {
	var sent bool
	err := db.QueryRow(ctx, `SELECT reminder_sent FROM tasks WHERE id=$1`, id).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("fetch reminder_sent: %w", err)
	}
	return sent, nil
}

// DueReminders returns tasks whose reminder is due and unsent. Soft-deleted
// tasks never show up here; archived ones do.
func DueReminders(ctx context.Context, db DBTX, now time.Time) ([]Task, error) {
	rows, err := db.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE reminder_at IS NOT NULL
		   AND reminder_at <= $1
		   AND reminder_sent = FALSE
		   AND deleted_at IS NULL
		 ORDER BY reminder_at, id`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 32)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
