package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/observability"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var rawSpec []byte

// KernelPool hands out the kernel serving a session.
type KernelPool interface {
	Get(ctx context.Context, sessionID string) (gokernel.Interactive, error)
}

// SessionLister lists persisted sessions.
type SessionLister interface {
	List(ctx context.Context) ([]string, error)
}

// SubmitRequest is the body of POST /sessions/{id}/submit.
type SubmitRequest struct {
	Code    string `json:"code"`
	Command string `json:"command,omitempty"`
}

// SubmitResponse carries the events of one submission.
type SubmitResponse struct {
	Events []domain.Event `json:"events"`
	Error  string         `json:"error,omitempty"`
}

// Server exposes session kernels over HTTP.
type Server struct {
	pool       KernelPool
	sessions   SessionLister
	directives *directive.Registry
	metrics    *observability.Metrics
	logger     *slog.Logger

	doc    *openapi3.T
	submit *openapi3.Schema
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDirectives serves the directives of r on /directives.
func WithDirectives(r *directive.Registry) Option {
	return func(s *Server) {
		s.directives = r
	}
}

// WithSessions serves the sessions of l on /sessions.
func WithSessions(l SessionLister) Option {
	return func(s *Server) {
		s.sessions = l
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewServer builds a Server on top of pool.
func NewServer(pool KernelPool, opts ...Option) (*Server, error) {
	doc, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	ref, ok := doc.Components.Schemas["SubmitRequest"]
	if !ok || ref.Value == nil {
		return nil, errors.New("openapi spec lacks the SubmitRequest schema")
	}

	s := &Server{
		pool:   pool,
		logger: logging.NewNop(),
		doc:    doc,
		submit: ref.Value,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed, CORS-enabled handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions/{id}/submit", s.Submit)
	r.Get("/sessions/{id}/events", s.SubscribeEvents)
	r.Get("/sessions", s.ListSessions)
	r.Get("/directives", s.ListDirectives)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Submit handles POST /sessions/{id}/submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if err := s.submit.VisitJSON(raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// The schema already vetted the shape, so this cannot fail.
	var req SubmitRequest
	body, _ := json.Marshal(raw)
	_ = json.Unmarshal(body, &req)

	k, err := s.pool.Get(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("Failed to get kernel", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var cmd domain.Command = domain.NewSubmitCode(req.Code)
	if req.Command == "diagnostics" {
		cmd = domain.RequestDiagnostics{Sub: domain.NewSubmission(req.Code)}
	}

	res, err := k.Send(r.Context(), cmd)
	if err == nil {
		err = res.Err()
	}
	resp := SubmitResponse{Events: res.Events}
	if resp.Events == nil {
		resp.Events = []domain.Event{}
	}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Debug("Submission failed", "session_id", sessionID, "err", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	k, err := s.pool.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sub := k.Events().Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE client subscribed", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Warn("Failed to encode event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Base().Type, data)
			flusher.Flush()
		}
	}
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// ListDirectives handles GET /directives.
func (s *Server) ListDirectives(w http.ResponseWriter, r *http.Request) {
	list := []directive.Directive{}
	if s.directives != nil {
		list = s.directives.Directives()
	}
	writeJSON(w, http.StatusOK, list)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.doc.Info != nil {
		apiVersion = s.doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "gokernel-http",
		"version":     strings.TrimSpace(gokernel.Version),
		"api_version": apiVersion,
		"languages":   gokernel.Languages(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
