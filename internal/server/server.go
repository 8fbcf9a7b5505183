// Package server exposes the relay's HTTP surface.
//
// Two trust levels share the same mux: dashboard routes require a session
// cookie, while the device-facing routes (telemetry push, command pull)
// are open by design — possession of a device id authorizes them. That is
// a deliberate, low-security choice suitable only for non-adversarial
// deployments.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jwulff/picorelay/internal/auth"
	"github.com/jwulff/picorelay/internal/devices"
	"github.com/jwulff/picorelay/internal/mailbox"
	"github.com/jwulff/picorelay/internal/storage"
	"github.com/jwulff/picorelay/internal/telemetry"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		MaxBodyBytes: 64 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the relay HTTP server.
type Server struct {
	httpServer *http.Server
	addr       string
	maxBody    int64

	auth     *auth.Service
	gateway  *devices.Gateway
	mailbox  *mailbox.Mailbox
	ingestor *telemetry.Ingestor
	store    storage.Store
}

// New creates a server wired to the given services.
func New(cfg Config, authSvc *auth.Service, gateway *devices.Gateway, mb *mailbox.Mailbox, ingestor *telemetry.Ingestor, store storage.Store) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	server := &Server{
		addr:     cfg.Addr,
		maxBody:  cfg.MaxBodyBytes,
		auth:     authSvc,
		gateway:  gateway,
		mailbox:  mb,
		ingestor: ingestor,
		store:    store,
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return server
}

// Handler returns the routed handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	// Dashboard (owner session required)
	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("POST /api/devices", s.handleRegisterDevice)
	mux.HandleFunc("GET /api/telemetry/{deviceID}", s.handleGetSnapshot)
	mux.HandleFunc("GET /api/events/{deviceID}", s.handleGetEvents)
	mux.HandleFunc("POST /api/cmd/{deviceID}", s.handleSetCommand)

	// Device-facing (open; device id is the credential)
	mux.HandleFunc("POST /api/telemetry/{deviceID}", s.handleIngestTelemetry)
	mux.HandleFunc("GET /api/cmd/{deviceID}", s.handleConsumeCommand)

	return s.limitBody(mux)
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the server fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Println("server shut down gracefully")
		return nil
	case err := <-errChan:
		return err
	}
}
