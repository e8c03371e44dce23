package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"TaskPulse/internal/app"
	authmw "TaskPulse/internal/auth"
	"TaskPulse/internal/events"

	"github.com/go-chi/chi/v5"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// writeAppErr maps store errors onto HTTP statuses. Anything unmapped is
// a 500 with a generic message.
func writeAppErr(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeErr(w, http.StatusNotFound, "task not found")
	case errors.Is(err, app.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden")
	default:
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

func parseInt64Param(r *http.Request, key string) (int64, error) {
	s := chi.URLParam(r, key)
	return strconv.ParseInt(s, 10, 64)
}

func CreateTaskHandler(deps app.Deps) http.HandlerFunc {
	type request struct {
		Title          string     `json:"title"`
		Description    *string    `json:"description"`
		Color          string     `json:"color"`
		Pinned         bool       `json:"pinned"`
		ReminderAt     *time.Time `json:"reminder_at"`
		DueAt          *time.Time `json:"due_at"`
		IsRecurring    bool       `json:"is_recurring"`
		RecurrenceRule *string    `json:"recurrence_rule"`
		RecurrenceEnd  *time.Time `json:"recurrence_end"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		t, err := app.CreateTask(ctx, deps.DB, user.ID, app.CreateTaskParams{
			Title:          req.Title,
			Description:    req.Description,
			Color:          req.Color,
			Pinned:         req.Pinned,
			ReminderAt:     req.ReminderAt,
			DueAt:          req.DueAt,
			IsRecurring:    req.IsRecurring,
			RecurrenceRule: req.RecurrenceRule,
			RecurrenceEnd:  req.RecurrenceEnd,
		})
		if err != nil {
			writeAppErr(w, err, "failed to create task")
			return
		}

		writeJSON(w, http.StatusCreated, t)
	}
}

func ListTasksHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		filter := app.TaskFilter(r.URL.Query().Get("filter"))
		tasks, err := app.ListTasks(ctx, deps.DB, user.ID, filter)
		if err != nil {
			writeAppErr(w, err, "failed to list tasks")
			return
		}

		writeJSON(w, http.StatusOK, tasks)
	}
}

func GetTaskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		t, err := app.GetTask(ctx, deps.DB, user.ID, taskID)
		if err != nil {
			writeAppErr(w, err, "failed to fetch task")
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTaskHandler(deps app.Deps) http.HandlerFunc {
	type request struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
		Pinned      *bool   `json:"pinned"`
		Archived    *bool   `json:"archived"`

		ReminderAt      *time.Time `json:"reminder_at"`
		ClearReminderAt *bool      `json:"clear_reminder_at"`
		DueAt           *time.Time `json:"due_at"`
		ClearDueAt      *bool      `json:"clear_due_at"`

		IsRecurring        *bool      `json:"is_recurring"`
		RecurrenceRule     *string    `json:"recurrence_rule"`
		ClearRecurrence    *bool      `json:"clear_recurrence"`
		RecurrenceEnd      *time.Time `json:"recurrence_end"`
		ClearRecurrenceEnd *bool      `json:"clear_recurrence_end"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		t, err := app.UpdateTask(ctx, deps.DB, user.ID, taskID, app.UpdateTaskPatch{
			Title:       req.Title,
			Description: req.Description,
			Color:       req.Color,
			Pinned:      req.Pinned,
			Archived:    req.Archived,

			ReminderAt:      req.ReminderAt,
			ClearReminderAt: req.ClearReminderAt != nil && *req.ClearReminderAt,
			DueAt:           req.DueAt,
			ClearDueAt:      req.ClearDueAt != nil && *req.ClearDueAt,

			IsRecurring:        req.IsRecurring,
			RecurrenceRule:     req.RecurrenceRule,
			ClearRecurrence:    req.ClearRecurrence != nil && *req.ClearRecurrence,
			RecurrenceEnd:      req.RecurrenceEnd,
			ClearRecurrenceEnd: req.ClearRecurrenceEnd != nil && *req.ClearRecurrenceEnd,
		})
		if err != nil {
			writeAppErr(w, err, "failed to update task")
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func CompleteTaskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
		defer cancel()

		task, next, err := app.ToggleComplete(ctx, deps.DB, user.ID, taskID)
		if err != nil {
			writeAppErr(w, err, "failed to toggle completion")
			return
		}

		if task.Completed {
			publishCompleted(ctx, deps, task, next)
		}

		writeJSON(w, http.StatusOK, task)
	}
}

// publishCompleted emits the lifecycle event after the transaction has
// committed. Best-effort: a bus outage must not fail the user's request.
func publishCompleted(ctx context.Context, deps app.Deps, task app.Task, next *app.Task) {
	event := events.TaskEvent{
		EventID:        events.NewEventID(),
		EventType:      events.TaskCompleted,
		TaskID:         task.ID,
		UserID:         task.UserID,
		Timestamp:      time.Now().UTC(),
		IsRecurring:    task.IsRecurring,
		RecurrenceRule: task.RecurrenceRule,
		TaskData: map[string]any{
			"title":     task.Title,
			"completed": task.Completed,
		},
	}
	if next != nil {
		event.TaskData["next_occurrence_id"] = next.ID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		deps.Log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to encode task event")
		return
	}
	if err := deps.Bus.Publish(ctx, events.TopicTaskEvents, payload); err != nil {
		deps.Log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to publish task event")
	}
}

func DeleteTaskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.SoftDelete(ctx, deps.DB, user.ID, taskID); err != nil {
			writeAppErr(w, err, "failed to delete task")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func RestoreTaskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.Restore(ctx, deps.DB, user.ID, taskID); err != nil {
			writeAppErr(w, err, "failed to restore task")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func PermanentDeleteTaskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.PermanentDelete(ctx, deps.DB, user.ID, taskID); err != nil {
			writeAppErr(w, err, "failed to delete task")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func EmptyTrashHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := app.EmptyTrash(ctx, deps.DB, user.ID); err != nil {
			writeAppErr(w, err, "failed to empty trash")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
