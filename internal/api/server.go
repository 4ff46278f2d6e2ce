// Package api exposes the chat service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
)

// ChatService is the part of chat.Service the handlers use.
type ChatService interface {
	ProcessMessage(ctx context.Context, message, sessionID string) (*chat.TurnResult, error)
	GetConversationHistory(ctx context.Context, sessionID string) (*chat.History, error)
}

// Pinger probes the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker probes the completion backend.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

type Options struct {
	Port             int
	MaxMessageLength int
	// RateLimitRPS of 0 disables rate limiting on the message endpoint.
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	port       int

	chat    ChatService
	db      Pinger
	llm     HealthChecker
	logger  *slog.Logger
	schema  *gojsonschema.Schema
	limiter *rate.Limiter
	maxLen  int
}

func NewServer(opts Options, svc ChatService, db Pinger, llm HealthChecker, logger *slog.Logger) *Server {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   opts.Port,
		chat:   svc,
		db:     db,
		llm:    llm,
		logger: logger,
		schema: messageSchema,
		maxLen: opts.MaxMessageLength,
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	router.Get("/health", s.health)
	router.Route("/api/chat", func(r chi.Router) {
		r.With(s.rateLimit).Post("/message", s.postMessage)
		r.Get("/history/{sessionId}", s.getHistory)
		r.Get("/health", s.chatHealth)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for embedding in tests or other servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
