// Package server exposes the coaching engine over HTTP: a REST surface for
// agent sessions and an SSE surface for streaming chat.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socraticlabs/coach/pkg/content"
	"github.com/socraticlabs/coach/pkg/instruction"
	"github.com/socraticlabs/coach/pkg/llms"
	"github.com/socraticlabs/coach/pkg/session"
)

// Server wires the session stores, the content store and the selected
// generation backend behind the HTTP surface.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	provider llms.Provider
	agents   session.Store
	chats    *session.ChatStore
	content  content.Store
	template *instruction.Template
}

// New builds a server. content may be nil when no question database is
// configured; prompt context then comes entirely from the request.
func New(addr string, provider llms.Provider, agents session.Store, chats *session.ChatStore, contentStore content.Store, template *instruction.Template) *Server {
	s := &Server{
		provider: provider,
		agents:   agents,
		chats:    chats,
		content:  contentStore,
		template: template,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/init", s.handleAgentInit)
		r.Post("/{sessionID}/input", s.handleAgentInput)
		r.Get("/{sessionID}/state", s.handleAgentState)
		r.Post("/{sessionID}/reset", s.handleAgentReset)
		r.Delete("/{sessionID}", s.handleAgentDelete)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/chat/stream", s.handleChatStream)
		r.Post("/chat/init-stream", s.handleChatInitStream)
		r.Get("/chat/history/{sessionID}", s.handleChatHistory)
		r.Delete("/chat/{sessionID}", s.handleChatDelete)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}
