package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"TaskPulse/internal/app"
	authmw "TaskPulse/internal/auth"
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

// UpsertSubscriptionHandler registers the browser's push endpoint.
// Clients flatten the PushSubscription keys into p256dh_key and
// auth_key before posting. 201 on first registration, 200 on refresh.
func UpsertSubscriptionHandler(deps app.Deps) http.HandlerFunc {
	type request struct {
		Endpoint  string  `json:"endpoint"`
		P256dhKey string  `json:"p256dh_key"`
		AuthKey   string  `json:"auth_key"`
		UserAgent *string `json:"user_agent"`
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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sub, created, err := app.UpsertSubscription(ctx, deps.DB,
			user.ID, req.Endpoint, req.P256dhKey, req.AuthKey, req.UserAgent)
		if err != nil {
			if errors.Is(err, app.ErrValidation) {
				writeErr(w, http.StatusBadRequest, err.Error())
				return
			}
			writeErr(w, http.StatusInternalServerError, "failed to save subscription")
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, sub)
	}
}

func ListSubscriptionsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		subs, err := app.ListSubscriptions(ctx, deps.DB, user.ID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to list subscriptions")
			return
		}

		writeJSON(w, http.StatusOK, subs)
	}
}

// DeleteSubscriptionHandler removes one of the caller's own endpoints.
// Idempotent: deleting an endpoint that is already gone still 204s.
func DeleteSubscriptionHandler(deps app.Deps) http.HandlerFunc {
	type request struct {
		Endpoint string `json:"endpoint"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
			writeErr(w, http.StatusBadRequest, "endpoint is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.DeleteSubscriptionByEndpoint(ctx, deps.DB, user.ID, req.Endpoint); err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to delete subscription")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteAllSubscriptionsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authmw.FromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := app.DeleteAllSubscriptions(ctx, deps.DB, user.ID); err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to delete subscriptions")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
