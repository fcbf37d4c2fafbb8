package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/server/internal/middleware"
)

// NewRouter mounts every API route. A nil limiter disables rate limiting.
func NewRouter(h *Handler, limiter *middleware.IPRateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.SecurityHeaders)
	if limiter != nil {
		r.Use(limiter.Limit)
	}

	r.Get("/api/health", h.Health)
	r.Get("/api/summary", h.Summary)

	r.Route("/api/usage", func(r chi.Router) {
		r.Get("/daily", h.Usage(bucket.Day))
		r.Get("/weekly", h.Usage(bucket.Week))
		r.Get("/monthly", h.Usage(bucket.Month))
		r.Get("/sessions", h.Sessions)
		r.Get("/session-models", h.SessionModels)
		r.Get("/top-projects-weekly", h.TopProjectsWeekly)
		r.Get("/hourly", h.Hourly)
	})

	r.Get("/api/projects", h.Projects)
	r.Get("/api/projects/{project_id}", h.ResolveProject)
	r.Get("/api/timeline/events/{project_id}", h.Timeline)
	r.Get("/api/schema-timeline", h.SchemaTimeline)
	r.Get("/api/sessions/{project_id}/{session_id}", h.SessionDetail)

	return r
}
