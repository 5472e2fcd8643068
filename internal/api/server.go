package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/skybridge/skybridge-core/internal/drc"
	"github.com/skybridge/skybridge-core/internal/heartbeat"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// WorkflowController drives the DRC workflow.
// Satisfied by *drc.Controller.
type WorkflowController interface {
	RequestAuth(ctx context.Context) error
	ConfirmAuth() error
	Cancel() error
	EnterDRC(ctx context.Context) error
	ExitDRC(ctx context.Context) error
	Reset()
	Status() drc.ControllerStatus
}

// DeviceSwitcher tracks and switches the active device.
// Satisfied by *devicestate.Context.
type DeviceSwitcher interface {
	CurrentSN() string
	SetCurrentDevice(ctx context.Context, sn string) error
}

// StateReader reads and writes card state.
// Satisfied by *devicestate.Manager.
type StateReader interface {
	GetState(ctx context.Context, deviceSN, cardID string) (map[string]json.RawMessage, error)
	SetState(ctx context.Context, deviceSN, cardID, field string, value interface{}) error
}

// SessionLister lists recent DRC session history.
// Satisfied by *drc.SessionRepository. Nil disables the endpoint.
type SessionLister interface {
	RecentSessions(ctx context.Context, gatewaySN string, limit int) ([]drc.SessionRecord, error)
}

// HeartbeatStats exposes link-quality counters.
// Satisfied by *heartbeat.Keeper. Nil disables the endpoint.
type HeartbeatStats interface {
	Stats() heartbeat.Stats
	IsRunning() bool
}

// Logger is the minimal logging interface the server needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config wires the server's collaborators.
type Config struct {
	ListenAddr   string
	Controller   WorkflowController
	Devices      DeviceSwitcher
	State        StateReader
	Sessions     SessionLister
	Heartbeat    HeartbeatStats
	Logger       Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	router *mux.Router
	http   *http.Server
	logger Logger
}

// New creates a Server with its routes registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.routes()

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called; a clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http api listening", "addr", s.cfg.ListenAddr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
