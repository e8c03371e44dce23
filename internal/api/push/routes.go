package push

import (
	"TaskPulse/internal/app"

	"github.com/go-chi/chi/v5"
)

func Routes(r chi.Router, deps app.Deps) {
	r.Route("/push-subscriptions", func(r chi.Router) {
		r.Post("/", UpsertSubscriptionHandler(deps))
		r.Get("/", ListSubscriptionsHandler(deps))
		r.Delete("/", DeleteSubscriptionHandler(deps))
		r.Delete("/all", DeleteAllSubscriptionsHandler(deps))
	})
}
