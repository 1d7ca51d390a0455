// Package web exposes the HTTP surface: the Meta webhook, health and
// metrics endpoints, and the static files the assistant links to in chat.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akivoy/orion/internal/admission"
	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/conversation"
	"github.com/akivoy/orion/internal/notify"
	"github.com/akivoy/orion/internal/observability"
	"github.com/akivoy/orion/internal/odoo"
	"github.com/akivoy/orion/internal/store"
)

// Assistant runs one conversation turn and blocks for the answer. userID
// keys the session; whatsAppID is the raw sender id tool notices are
// addressed to.
type Assistant interface {
	Process(ctx context.Context, userID, whatsAppID, text string) (string, error)
}

// PartnerFinder resolves a phone number to an ERP partner on first contact.
type PartnerFinder interface {
	GetPartnerByPhone(ctx context.Context, phone string) (odoo.Record, error)
}

// Deps collects the collaborators of the HTTP layer.
type Deps struct {
	Assistant  Assistant
	Sessions   conversation.Store
	Gate       *admission.Gate
	Partners   PartnerFinder
	WhatsApp   *notify.WhatsAppSender
	Background *notify.Background
	// History may be nil; persistence is then skipped.
	History  *store.DB
	Registry *prometheus.Registry
}

// Server is the HTTP front of the assistant.
type Server struct {
	cfg  config.Config
	log  *observability.Logger
	deps Deps
	http *http.Server
}

// NewServer assembles the router and the underlying http.Server.
func NewServer(cfg config.Config, deps Deps, log *observability.Logger) *Server {
	s := &Server{cfg: cfg, log: log, deps: deps}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router; exposed separately for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/whatsapp", s.handleVerify)
	r.Post("/whatsapp", s.handleWebhook)

	if s.deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))
	}
	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.Dir(s.cfg.Server.StaticDir))))
	return r
}

// Start serves until the context is canceled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	s.log.Info(context.Background(), "http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "WhatsApp Webhook API",
	})
}

// handleVerify answers Meta's webhook subscription handshake by echoing the
// challenge when the verify token matches.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.cfg.WhatsApp.VerifyToken {
		s.log.Info(r.Context(), "webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	s.log.Warn(r.Context(), "webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
