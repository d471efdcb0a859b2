package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/healingherb/shifa/internal/assistant"
	"github.com/healingherb/shifa/internal/auth"
	"github.com/healingherb/shifa/internal/config"
	"github.com/healingherb/shifa/internal/observability"
	"github.com/healingherb/shifa/internal/store"
)

type Server struct {
	cfg       config.Config
	store     store.Store
	assistant *assistant.Service
	tokens    *auth.Manager
	metrics   *observability.Metrics
}

func New(cfg config.Config, st store.Store, svc *assistant.Service, tokens *auth.Manager, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		assistant: svc,
		tokens:    tokens,
		metrics:   metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/chat", s.handleChatGet)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/chat", s.handleChat)
			r.Get("/history", s.handleHistory)
			r.Delete("/history", s.handleClearHistory)
			r.Get("/stats", s.handleStats)
			r.Post("/feedback", s.handleFeedback)
			r.Get("/health", s.handleAIHealth)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// envelope is the response shape shared by every /api handler.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Error: message})
}
