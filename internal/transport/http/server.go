package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	customMiddleware "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/middleware"
)

// Server defaults
const (
	DefaultReadTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRateLimit       = 20
	DefaultRateBurst       = 40
)

// ServerOptions configures the status server
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    float64
	RateBurst    int
	// RunID tags request logs with the run being served
	RunID string
	// Tracing wraps every request in a server span
	Tracing bool
	// Metrics mounts the Prometheus handler on /metrics
	Metrics bool
}

// DefaultServerOptions returns options for addr with metrics enabled
func DefaultServerOptions(addr string) ServerOptions {
	return ServerOptions{
		Addr:         addr,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		RateLimit:    DefaultRateLimit,
		RateBurst:    DefaultRateBurst,
		Metrics:      true,
	}
}

// Server is the status server: /health, /status and /metrics
type Server struct {
	Router   *chi.Mux
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan error
}

// NewRouter builds the status routes
func NewRouter(handler *StatusHandler, opts ServerOptions, logger *slog.Logger) (*chi.Mux, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	if opts.RunID != "" {
		r.Use(customMiddleware.RunContext(opts.RunID))
	}
	r.Use(customMiddleware.Recoverer(logger))
	if opts.Tracing {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create otel middleware: %w", err)
		}
		r.Use(otelMiddleware.Handler)
	}
	r.Use(customMiddleware.StructuredLogger(logger))
	if opts.RateLimit > 0 {
		r.Use(customMiddleware.NewRateLimiter(opts.RateLimit, opts.RateBurst, logger).Handler)
	}
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", handler.Health)
		r.Get("/status", handler.Status)
	})
	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r, nil
}

// NewServer creates a status server. Start binds the address.
func NewServer(handler *StatusHandler, opts ServerOptions, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "status_server"))

	router, err := NewRouter(handler, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		Router: router,
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      router,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		logger: logger,
	}, nil
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.done = make(chan error, 1)

	s.logger.Info("status server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops the server gracefully and returns the serve error, if any
func (s *Server) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	err := <-s.done
	s.logger.Info("status server stopped")
	return err
}
