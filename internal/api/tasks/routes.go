package tasks

import (
	"TaskPulse/internal/app"

	"github.com/go-chi/chi/v5"
)

func Routes(r chi.Router, deps app.Deps) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", CreateTaskHandler(deps))
		r.Get("/", ListTasksHandler(deps))

		r.Delete("/trash", EmptyTrashHandler(deps))

		r.Get("/{id}", GetTaskHandler(deps))
		r.Patch("/{id}", UpdateTaskHandler(deps))
		r.Patch("/{id}/complete", CompleteTaskHandler(deps))
		r.Delete("/{id}", DeleteTaskHandler(deps))
		r.Post("/{id}/restore", RestoreTaskHandler(deps))
		r.Delete("/{id}/permanent", PermanentDeleteTaskHandler(deps))
	})
}
