package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

type HomelinkServerOptions struct {
	Addr         string        // Listen address, e.g. ":3000"
	ReadTimeout  time.Duration // Optional
	WriteTimeout time.Duration // Optional; keep zero-friendly for long-lived sockets
	IdleTimeout  time.Duration // Optional

	WebhookPath string       // e.g. "/callback"
	Webhook     http.Handler // Chat webhook receiver
	Health      http.Handler // Optional, mounted at /health
}

// HomelinkServer serves the chat webhook and the device channel on one
// HTTP listener.
type HomelinkServer struct {
	options     HomelinkServerOptions
	coordinator *Coordinator
	server      *http.Server
}

func NewHomelinkServer(coordinator *Coordinator, opts HomelinkServerOptions) *HomelinkServer {
	if coordinator == nil {
		coordinator = NewCoordinator(nil)
	}
	s := &HomelinkServer{options: opts, coordinator: coordinator}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *HomelinkServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if s.options.Webhook != nil {
		r.Method(http.MethodPost, s.options.WebhookPath, s.options.Webhook)
	}
	if s.options.Health != nil {
		r.Method(http.MethodGet, "/health", s.options.Health)
	}
	for _, t := range s.coordinator.Transports {
		r.Method(http.MethodGet, t.Meta().Address, t)
	}
	return r
}

// Start serves until ctx is cancelled, then shuts the listener and the
// device transports down.
func (s *HomelinkServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", s.options.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.coordinator.Shutdown()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server and transports")
	s.coordinator.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("There was an error when shutting down HTTP server", "error", err.Error())
		return err
	}
	return nil
}
