package service

import (
	"TaskPulse/internal/app"

	"github.com/go-chi/chi/v5"
)

func Routes(r chi.Router, deps app.Deps) {
	r.Patch("/tasks/{id}/reminder-sent", MarkReminderSentHandler(deps))
	r.Get("/tasks/{id}/reminder-status", ReminderStatusHandler(deps))
	r.Delete("/push-subscriptions/by-endpoint", DeleteSubscriptionEndpointHandler(deps))
	r.Post("/reminders/binding", RemindersBindingHandler(deps))
}
