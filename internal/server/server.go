package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/glarson/lensproxy/internal/config"
	"github.com/glarson/lensproxy/internal/lens"
	"github.com/glarson/lensproxy/internal/metrics"
)

const (
	LensPath   = "/api/lens-summary"
	HealthPath = "/api/health"

	// MaxBodyBytes caps a lens request body.
	MaxBodyBytes = 16 << 10

	shutdownTimeout = 30 * time.Second
)

type Server struct {
	cfg     config.Config
	router  *chi.Mux
	server  *http.Server
	lens    *lens.Service
	metrics *metrics.Exporter
}

// New wires routes and middleware. exporter may be nil when metrics are disabled.
func New(cfg config.Config, svc *lens.Service, exporter *metrics.Exporter) *Server {
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		lens:    svc,
		metrics: exporter,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	if s.cfg.Server.TrustProxyHeaders {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Group(func(r chi.Router) {
		r.Use(cors)
		r.HandleFunc(LensPath, s.handleLens)
		r.Get(HealthPath, s.handleHealth)
	})

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	if dir := s.cfg.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err != nil {
			slog.Warn("Static directory is not readable; site files will not be served", "dir", dir, "error", err)
		} else {
			s.router.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger assigns a request id, attaches a scoped logger and records the completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		logger := slog.Default().With("request_id", id)
		ctx := lens.ContextWithLogger(r.Context(), logger)

		// Create a response wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(rw, r.WithContext(ctx))

		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.RecordRequest(r.Method, route, rw.status, time.Since(start))
		}

		logger.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) Run() error {
	// Create a channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("Starting shutdown", "signal", sig)

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

// Custom response writer to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
