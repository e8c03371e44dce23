package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// MockTx implements the pgx.Tx methods ToggleComplete touches; the
// embedded interface covers the rest (never called).
type MockTx struct {
	pgx.Tx
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	commits      int
	rollbacks    int
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.QueryRowFunc(ctx, sql, args...)
}

func (m *MockTx) Commit(ctx context.Context) error {
	m.commits++
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	return nil
}

type MockTxBeginner struct {
	tx *MockTx
}

func (b MockTxBeginner) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return b.tx, nil
}

// txCall records one statement the transaction saw.
type txCall struct {
	sql  string
	args []any
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func int64Ptr(n int64) *int64 { return &n }

func TestToggleComplete_MaterializesNextOccurrence(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	original := Task{
		ID: 10, UserID: "user-a", Title: "Water plants",
		Description: strPtr("the ficus too"), Color: "blue", Pinned: true,
		ReminderAt: timePtr(at), IsRecurring: true, RecurrenceRule: strPtr("daily"),
	}
	nextAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	var calls []txCall
	tx := &MockTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls = append(calls, txCall{sql: sql, args: args})
			switch len(calls) {
			case 1: // lock + fetch
				return taskRow(original)
			case 2: // materialize next
				next := original
				next.ID = 11
				next.ReminderAt = timePtr(nextAt)
				next.ParentTaskID = int64Ptr(10)
				return taskRow(next)
			default: // update original
				updated := original
				updated.Completed = true
				updated.IsRecurring = false
				return taskRow(updated)
			}
		},
	}

	updated, next, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 statements (lock, insert, update), got %d", len(calls))
	}
	if tx.commits != 1 {
		t.Fatalf("expected 1 commit, got %d", tx.commits)
	}

	insert := calls[1]
	if !strings.Contains(insert.sql, "INSERT INTO tasks") {
		t.Fatalf("second statement is not the materialization insert: %s", insert.sql)
	}
	// insert args: user_id, title, description, color, pinned,
	// reminder_at, due_at, recurrence_rule, recurrence_end, parent_task_id
	if insert.args[0] != "user-a" || insert.args[1] != "Water plants" {
		t.Errorf("owner/title not copied: %v", insert.args[:2])
	}
	if desc := insert.args[2].(*string); desc == nil || *desc != "the ficus too" {
		t.Errorf("description not copied: %v", insert.args[2])
	}
	if insert.args[3] != "blue" || insert.args[4] != true {
		t.Errorf("color/pinned not copied: %v", insert.args[3:5])
	}
	if got := insert.args[5].(*time.Time); got == nil || !got.Equal(nextAt) {
		t.Errorf("next date not placed in reminder_at: %v", insert.args[5])
	}
	if insert.args[6] != (*time.Time)(nil) {
		t.Errorf("due_at should stay empty when the original scheduled by reminder: %v", insert.args[6])
	}
	if rule := insert.args[7].(*string); rule == nil || *rule != "daily" {
		t.Errorf("recurrence rule not carried: %v", insert.args[7])
	}
	if insert.args[9] != int64(10) {
		t.Errorf("expected parent_task_id = original id, got %v", insert.args[9])
	}

	update := calls[2]
	// update args: completed, is_recurring, id
	if update.args[0] != true {
		t.Errorf("expected completed=true, got %v", update.args[0])
	}
	if update.args[1] != false {
		t.Errorf("expected is_recurring cleared on the completed row, got %v", update.args[1])
	}

	if next == nil || next.ID != 11 {
		t.Fatalf("expected materialized next occurrence, got %+v", next)
	}
	if updated.IsRecurring {
		t.Error("updated original still marked recurring")
	}
}

func TestToggleComplete_ParentChainStaysFlat(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	original := Task{
		ID: 20, UserID: "user-a", Title: "Standup notes", Color: "default",
		ReminderAt: timePtr(at), IsRecurring: true, RecurrenceRule: strPtr("weekly"),
		ParentTaskID: int64Ptr(3),
	}

	var calls []txCall
	tx := &MockTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls = append(calls, txCall{sql: sql, args: args})
			switch len(calls) {
			case 1:
				return taskRow(original)
			default:
				return taskRow(original)
			}
		},
	}

	_, _, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Later occurrences keep pointing at the series root, not their
	// immediate predecessor.
	insert := calls[1]
	if insert.args[9] != int64(3) {
		t.Errorf("expected parent_task_id = series root 3, got %v", insert.args[9])
	}
}

func TestToggleComplete_SeriesEndsAtRecurrenceEnd(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) // before the next daily slot
	original := Task{
		ID: 30, UserID: "user-a", Title: "Final stretch", Color: "default",
		ReminderAt: timePtr(at), IsRecurring: true,
		RecurrenceRule: strPtr("daily"), RecurrenceEnd: timePtr(end),
	}

	var calls []txCall
	tx := &MockTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls = append(calls, txCall{sql: sql, args: args})
			if len(calls) == 1 {
				return taskRow(original)
			}
			done := original
			done.Completed = true
			return taskRow(done)
		},
	}

	updated, next, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no next occurrence past recurrence_end, got %+v", next)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 statements (lock, update), got %d", len(calls))
	}

	// When the series ends the completed row keeps its recurring flag.
	update := calls[1]
	if update.args[0] != true || update.args[1] != true {
		t.Errorf("expected completed=true, is_recurring=true, got %v", update.args[:2])
	}
	if !updated.Completed {
		t.Error("expected updated task to be completed")
	}
}

func TestToggleComplete_NonRecurring(t *testing.T) {
	original := Task{ID: 40, UserID: "user-a", Title: "One-off", Color: "default"}

	var calls []txCall
	tx := &MockTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls = append(calls, txCall{sql: sql, args: args})
			if len(calls) == 1 {
				return taskRow(original)
			}
			done := original
			done.Completed = true
			return taskRow(done)
		},
	}

	_, next, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Fatalf("non-recurring task must not materialize, got %+v", next)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(calls))
	}
}

func TestToggleComplete_UncompleteSkipsMaterialization(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	original := Task{
		ID: 50, UserID: "user-a", Title: "Oops", Color: "default", Completed: true,
		ReminderAt: timePtr(at), IsRecurring: true, RecurrenceRule: strPtr("daily"),
	}

	var calls []txCall
	tx := &MockTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls = append(calls, txCall{sql: sql, args: args})
			if len(calls) == 1 {
				return taskRow(original)
			}
			undone := original
			undone.Completed = false
			return taskRow(undone)
		},
	}

	_, next, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Fatalf("un-completing must not materialize, got %+v", next)
	}
	if calls[1].args[0] != false {
		t.Errorf("expected completed=false, got %v", calls[1].args[0])
	}
}

func TestToggleComplete_Ownership(t *testing.T) {
	t.Run("Foreign task", func(t *testing.T) {
		tx := &MockTx{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return taskRow(Task{ID: 60, UserID: "user-b", Title: "theirs", Color: "default"})
			},
		}

		_, _, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 60)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if tx.commits != 0 {
			t.Errorf("expected no commit, got %d", tx.commits)
		}
		if tx.rollbacks == 0 {
			t.Error("expected rollback")
		}
	})

	t.Run("Missing task", func(t *testing.T) {
		tx := &MockTx{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return noRowsRow()
			},
		}

		_, _, err := ToggleComplete(context.Background(), MockTxBeginner{tx}, "user-a", 61)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
