package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
	"github.com/sensorgrid/sensorgrid-core/internal/ledger"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
	"github.com/sensorgrid/sensorgrid-core/internal/wallet"
)

// Logger interface for API logging. Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Deps holds everything the HTTP server needs.
type Deps struct {
	Config   *config.Config
	Logger   Logger
	DB       *database.DB
	Registry *registry.Service
	Ledger   *ledger.Service
	Wallets  *wallet.Repository
	Events   events.Repository
	Hub      *Hub
}

// Server is the marketplace HTTP API.
type Server struct {
	cfg      *config.Config
	logger   Logger
	db       *database.DB
	registry *registry.Service
	ledger   *ledger.Service
	wallets  *wallet.Repository
	events   events.Repository
	hub      *Hub

	httpServer *http.Server
}

// NewServer creates the HTTP server and mounts all routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Server{
		cfg:      deps.Config,
		logger:   logger,
		db:       deps.DB,
		registry: deps.Registry,
		ledger:   deps.Ledger,
		wallets:  deps.Wallets,
		events:   deps.Events,
		hub:      deps.Hub,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.API.Host, deps.Config.API.Port),
		Handler:      s.routes(),
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "tls", s.cfg.API.TLS.Enabled)

	var err error
	if s.cfg.API.TLS.Enabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.API.TLS.CertFile, s.cfg.API.TLS.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// handleHealth reports service and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.db.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":     status,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"ws_clients": s.hub.ClientCount(),
	})
}
