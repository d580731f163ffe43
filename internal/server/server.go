// ABOUTME: HTTP server wiring for the agent hub
// ABOUTME: Composes store, registry, relay, auth, and web UI; owns lifecycle and routes

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BAEM1N/a2a-agent-hub/internal/auth"
	"github.com/BAEM1N/a2a-agent-hub/internal/card"
	"github.com/BAEM1N/a2a-agent-hub/internal/config"
	"github.com/BAEM1N/a2a-agent-hub/internal/registry"
	"github.com/BAEM1N/a2a-agent-hub/internal/relay"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
	"github.com/BAEM1N/a2a-agent-hub/internal/web"
)

// sessionSweepInterval is how often expired sessions are purged.
const sessionSweepInterval = time.Hour

// Server is the agent hub HTTP server.
type Server struct {
	cfg      *config.Config
	store    store.Store
	registry *registry.Service
	relay    *relay.Service
	auth     *auth.Service
	web      *web.Handler
	logger   *slog.Logger
}

// New builds a Server and all its collaborators from config.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	fetcher := card.NewFetcher(&http.Client{Timeout: cfg.Agents.CardFetchTimeout})
	reg := registry.New(st, fetcher)
	rel := relay.New(st, relay.Config{
		InvokeTimeout: cfg.Agents.InvokeTimeout,
		StreamTimeout: cfg.Agents.StreamTimeout,
	})

	tokens := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret))
	authSvc := auth.New(st, tokens, cfg.AuthRequired(), cfg.Auth.SessionDuration)

	return &Server{
		cfg:      cfg,
		store:    st,
		registry: reg,
		relay:    rel,
		auth:     authSvc,
		web:      web.New(authSvc, reg),
		logger:   logger.With("component", "server"),
	}, nil
}

// Routes returns the fully wired request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Liveness probe
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Auth API
	mux.HandleFunc("POST /api/auth/login", s.web.HandleLogin)
	mux.HandleFunc("POST /api/auth/register", s.web.HandleRegister)
	mux.HandleFunc("POST /api/auth/logout", s.web.HandleLogout)

	// Settings API
	mux.HandleFunc("GET /api/settings", s.auth.RequireUser(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.auth.RequireUser(s.handleSaveSettings))

	// Agent API
	mux.HandleFunc("GET /api/agents", s.auth.RequireUser(s.handleListAgents))
	mux.HandleFunc("POST /api/agents", s.auth.RequireUser(s.handleRegisterAgent))
	mux.HandleFunc("DELETE /api/agents/{id}", s.auth.RequireUser(s.handleDeleteAgent))
	mux.HandleFunc("POST /api/agents/{id}/test", s.auth.RequireUser(s.handleTestAgent))
	mux.HandleFunc("POST /api/agents/{id}/stream", s.auth.RequireUser(s.handleStreamAgent))
	mux.HandleFunc("GET /api/agents/{id}/health", s.auth.RequireUser(s.handleAgentHealth))

	// Web UI pages
	s.web.RegisterRoutes(mux)

	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Server.HTTPAddr,
		Handler: s.Routes(),
	}

	go s.sweepSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", "error", err)
	}

	return s.store.Close()
}

// sweepSessions periodically removes expired sessions so the table doesn't
// grow without bound.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.DeleteExpiredSessions(ctx); err != nil {
				s.logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
