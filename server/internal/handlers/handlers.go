package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/config"
	"github.com/zhaobenny/ccsessions/internal/engine"
	"github.com/zhaobenny/ccsessions/internal/filter"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/parser"
	"github.com/zhaobenny/ccsessions/internal/session"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine *engine.Engine
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a new Handler
func New(e *engine.Engine, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: e, cfg: cfg, logger: logger}
}

// errBadParam marks a request parameter that failed to parse.
var errBadParam = errors.New("invalid parameter")

// filterFrom reads the days and project query parameters. A missing or empty
// days means all time.
func (h *Handler) filterFrom(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	days := 0
	if d := q.Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return filter.Filter{}, errBadParam
		}
		days = n
	}
	return h.cfg.Filter(days, q.Get("project")), nil
}

// query runs fn with the request's filter and writes its result as JSON.
func query[T any](h *Handler, w http.ResponseWriter, r *http.Request, fn func(context.Context, filter.Filter) (T, error)) {
	f, err := h.filterFrom(r)
	if err != nil {
		h.jsonError(w, "days must be an integer", http.StatusBadRequest)
		return
	}
	result, err := fn(r.Context(), f)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Health handles the health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":        "healthy",
		"projects_path": h.cfg.ProjectsPath,
	})
}

// Summary handles GET /api/summary. The single rollup row is wrapped in a list.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, func(ctx context.Context, f filter.Filter) ([]model.Summary, error) {
		s, err := h.engine.Summary(ctx, f)
		if err != nil {
			return nil, err
		}
		return []model.Summary{s}, nil
	})
}

// Usage returns a handler for GET /api/usage/{daily,weekly,monthly}.
func (h *Handler) Usage(g bucket.Granularity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query(h, w, r, func(ctx context.Context, f filter.Filter) ([]model.AggregateRow, error) {
			return h.engine.Usage(ctx, f, g)
		})
	}
}

// Sessions handles GET /api/usage/sessions
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, h.engine.Sessions)
}

// SessionModels handles GET /api/usage/session-models
func (h *Handler) SessionModels(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, h.engine.SessionModels)
}

// Projects handles GET /api/projects. The project parameter is ignored.
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, h.engine.Projects)
}

// TopProjectsWeekly handles GET /api/usage/top-projects-weekly. Without a
// days parameter the configured default window applies; days=0 is all time.
func (h *Handler) TopProjectsWeekly(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, func(ctx context.Context, f filter.Filter) ([]model.AggregateRow, error) {
		if !r.URL.Query().Has("days") {
			f.Days = h.cfg.TopProjectsDays
		}
		return h.engine.TopProjectsWeekly(ctx, f)
	})
}

// Hourly handles GET /api/usage/hourly
func (h *Handler) Hourly(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, h.engine.Hourly)
}

// Timeline handles GET /api/timeline/events/{project_id}
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, func(ctx context.Context, f filter.Filter) ([]model.TimelineEvent, error) {
		f.Project = chi.URLParam(r, "project_id")
		return h.engine.Timeline(ctx, f)
	})
}

// SchemaTimeline handles GET /api/schema-timeline
func (h *Handler) SchemaTimeline(w http.ResponseWriter, r *http.Request) {
	query(h, w, r, h.engine.SchemaTimeline)
}

// SessionDetail handles GET /api/sessions/{project_id}/{session_id}. An
// event_uuid parameter narrows the result to that event's subtree.
func (h *Handler) SessionDetail(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.SessionEvents(r.Context(),
		chi.URLParam(r, "project_id"),
		chi.URLParam(r, "session_id"),
		r.URL.Query().Get("event_uuid"),
	)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// ResolveProject handles GET /api/projects/{project_id}
func (h *Handler) ResolveProject(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.ResolveProject(chi.URLParam(r, "project_id")))
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		h.jsonError(w, "session not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrProjectRequired):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, parser.ErrProjectsDirNotFound):
		h.jsonError(w, "projects directory not found", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
