package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"TaskPulse/internal/api/push"
	"TaskPulse/internal/api/service"
	"TaskPulse/internal/api/tasks"
	"TaskPulse/internal/app"
	authmw "TaskPulse/internal/auth"
)

func NewRouter(deps app.Deps) chi.Router {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})

	// Global middleware
	r.Use(func(next http.Handler) http.Handler {
		return secureMiddleware.Handler(next)
	})
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(middleware.CleanPath)

	// Global rate limit: 100 requests per minute per IP
	r.Use(httprate.LimitByIP(100, 1*time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/ready", ReadyHandler(deps.DB))
		r.Get("/version", VersionHandler())

		// Everything in here requires a valid user token
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(deps.JWTSecret))

			tasks.Routes(r, deps)
			push.Routes(r, deps)
		})

		// Trusted endpoints for the worker and external schedulers
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireService(deps.ServiceToken))
			service.Routes(r, deps)
		})
	})

	return r
}
