package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Get("/tools", h.ListTools)

		r.Route("/requests/{id}", func(r chi.Router) {
			// Artifact ingestion
			r.Post("/plans", h.SubmitPlan)
			r.Post("/critiques", h.SubmitCritique)

			// Execution
			r.Post("/execute", h.ExecutePlan)
			r.Post("/resume", h.ResumePlan)

			// Versioned reads
			r.Get("/plans", h.ListPlans)
			r.Get("/critiques", h.ListCritiques)
			r.Get("/executions", h.ListExecutions)
			r.Get("/executions/latest", h.GetLatestExecution)
			r.Get("/questions", h.ListQuestions)
			r.Get("/route", h.RoutePlan)
		})
	})
}
