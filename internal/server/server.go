// Package server exposes the job manager over HTTP.
//
// Routes:
//
//	GET    /healthz     liveness and build version
//	POST   /jobs        submit a conversion, 202 with the queued job
//	GET    /jobs        list jobs
//	GET    /jobs/{id}   job status and progress
//	DELETE /jobs/{id}   cancel an active job, or remove a finished one
//
// Input and output paths in requests are relative to the server root and
// may not leave it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/reflow/pkg/buildinfo"
	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/jobs"
	"github.com/matzehuels/reflow/pkg/observability"
	"github.com/matzehuels/reflow/pkg/pipeline"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Config configures a Server.
type Config struct {
	// Root is the directory request paths are resolved against.
	Root string

	Manager *jobs.Manager
	Logger  *log.Logger
}

// Server handles the job API.
type Server struct {
	root    string
	manager *jobs.Manager
	logger  *log.Logger
	router  chi.Router
}

// New creates a server. Root must be set.
func New(cfg Config) (*Server, error) {
	if cfg.Root == "" {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "server root is required")
	}
	if cfg.Manager == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "job manager is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "resolve root %s", cfg.Root)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	s := &Server{root: root, manager: cfg.Manager, logger: cfg.Logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleCancel)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Root returns the absolute directory request paths are resolved against.
func (s *Server) Root() string { return s.root }

// observe logs each request and reports it to the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		d := time.Since(start)
		observability.HTTP().OnRequest(r.Context(), r.Method, route)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, ww.Status(), d)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if err := s.confine(&opts); err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.manager.Submit(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// confine resolves the request's input and output against the root.
func (s *Server) confine(opts *pipeline.Options) error {
	if err := apperr.ValidatePath(opts.Input); err != nil {
		return err
	}
	opts.Input = filepath.Join(s.root, opts.Input)
	if opts.Output != "" {
		if err := apperr.ValidatePath(opts.Output); err != nil {
			return err
		}
		opts.Output = filepath.Join(s.root, opts.Output)
	}
	return nil
}

// =============================================================================
// Responses
// =============================================================================

type errorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: apperr.UserMessage(err), Code: apperr.GetCode(err)})
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, jobs.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	switch apperr.GetCode(err) {
	case apperr.ErrCodeInvalidInput, apperr.ErrCodeInvalidConfig, apperr.ErrCodeInvalidFormat,
		apperr.ErrCodeInvalidPages, apperr.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case apperr.ErrCodeFileNotFound, apperr.ErrCodeNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeAlreadyExists:
		return http.StatusConflict
	case apperr.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
