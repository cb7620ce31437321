package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts all routes on a chi router. Extra middlewares, such as
// request tracing, run after the built-in ones.
func NewRouter(h *Handlers, mws ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mws...)

	r.Get("/healthz", h.Healthz)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows/{handle}", func(r chi.Router) {
			r.Post("/plan", h.CreatePlan)
			r.Get("/plan", h.GetPlan)
			r.Post("/plan/{id}/archive", h.ArchivePlan)
			r.Delete("/plan/{id}", h.DeletePlan)
			r.Get("/history", h.History)
			r.Get("/status", h.Status)

			r.Post("/tasks", h.AddTask)
			r.Post("/tasks/{id}/start", h.StartTask)
			r.Post("/tasks/{id}/complete", h.CompleteTask)
			r.Post("/tasks/{id}/block", h.BlockTask)
			r.Post("/tasks/{id}/cancel", h.CancelTask)
			r.Post("/tasks/{id}/requeue", h.RequeueTask)
		})

		r.Route("/executor", func(r chi.Router) {
			r.Get("/", h.ExecutorState)
			r.Post("/start", h.ExecutorStart)
			r.Post("/stop", h.ExecutorStop)
			r.Post("/pause", h.ExecutorPause)
			r.Post("/resume", h.ExecutorResume)
		})
	})

	return r
}
