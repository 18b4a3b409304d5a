package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/arbiter/internal/presentation/graph"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Engine is the part of the workflow engine exposed over HTTP.
type Engine interface {
	ListActiveWorkflows() []domain.Summary
	GetWorkflow(workflowID string) (*domain.Workflow, bool)
	GetWorkflowStatus(workflowID string) (domain.Snapshot, bool)
	PauseWorkflow(ctx context.Context, workflowID string) error
	ResumeWorkflow(ctx context.Context, workflowID string) (*domain.ExecutionResult, error)
	CancelWorkflow(ctx context.Context, workflowID string) error
}

// Server serves workflow inspection and control endpoints.
type Server struct {
	Engine  Engine
	Metrics http.Handler
	Logger  *zap.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /workflows
//	GET  /workflows/{id}
//	GET  /workflows/{id}/graph
//	POST /workflows/{id}/pause
//	POST /workflows/{id}/resume
//	POST /workflows/{id}/cancel
//
// Resume blocks until the run stops and responds with its result.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.ListWorkflows)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetWorkflow)
			r.Get("/graph", s.GetGraph)
			r.Post("/pause", s.Pause)
			r.Post("/resume", s.Resume)
			r.Post("/cancel", s.Cancel)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.ListActiveWorkflows())
}

// GetWorkflow handles GET /workflows/{id}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Engine.GetWorkflowStatus(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GetGraph handles GET /workflows/{id}/graph and returns Mermaid text.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.Engine.GetWorkflow(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, domain.ErrNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.ForWorkflow(wf)))
}

// Pause handles POST /workflows/{id}/pause.
func (s *Server) Pause(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.PauseWorkflow(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, id)
}

// Resume handles POST /workflows/{id}/resume.
// The run outlives the request: a disconnecting client does not interrupt it.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.ResumeWorkflow(context.WithoutCancel(r.Context()), chi.URLParam(r, "id"))
	if err != nil && res == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.Logger.Error("resume finished with store failure", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /workflows/{id}/cancel.
func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.CancelWorkflow(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"workflow_id": id, "status": string(domain.StatusCancelled)})
}

func (s *Server) writeStatus(w http.ResponseWriter, id string) {
	snap, ok := s.Engine.GetWorkflowStatus(id)
	if !ok {
		s.writeError(w, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	default:
		s.Logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("failed to encode response", zap.Error(err))
	}
}
