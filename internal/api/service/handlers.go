// Package service exposes the trusted endpoints the notification worker
// and external schedulers call. Everything here sits behind the service
// token.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"TaskPulse/internal/app"
	"TaskPulse/internal/scheduler"

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

func parseInt64Param(r *http.Request, key string) (int64, error) {
	s := chi.URLParam(r, key)
	return strconv.ParseInt(s, 10, 64)
}

// MarkReminderSentHandler latches reminder_sent on behalf of the worker.
// Not user-scoped: the worker acts across all users.
func MarkReminderSentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		t, err := app.MarkReminderSent(ctx, deps.DB, taskID)
		if errors.Is(err, app.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to mark reminder sent")
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func ReminderStatusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := parseInt64Param(r, "id")
		if err != nil || taskID <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid task id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sent, err := app.ReminderSent(ctx, deps.DB, taskID)
		if errors.Is(err, app.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to fetch reminder status")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"task_id":       taskID,
			"reminder_sent": sent,
		})
	}
}

// DeleteSubscriptionEndpointHandler prunes a push endpoint the gateway
// has declared gone, regardless of which user owns it.
func DeleteSubscriptionEndpointHandler(deps app.Deps) http.HandlerFunc {
	type request struct {
		Endpoint string `json:"endpoint"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
			writeErr(w, http.StatusBadRequest, "endpoint is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.DeleteSubscriptionEndpoint(ctx, deps.DB, req.Endpoint); err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to delete subscription")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RemindersBindingHandler runs one reminder scan on demand. External
// cron bindings use it instead of the built-in scheduler process.
func RemindersBindingHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		s := scheduler.New(scheduler.DBStore{DB: deps.DB}, deps.Bus, time.Minute, deps.Log)
		published, err := s.RunTick(ctx)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "reminder scan failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":              "ok",
			"reminders_published": published,
		})
	}
}
