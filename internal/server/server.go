// Package server is the HTTP surface of assistantd, the companion persistence
// service: judge results, ratings, session lookup and traversal graph analysis.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/piotrzwolinski/synapseos-sub000/internal/metrics"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
)

// RequestTimeout bounds every API request.
const RequestTimeout = 30 * time.Second

// Options configures a Server.
type Options struct {
	Port      int
	AuthToken string
	Store     storage.SessionStore
	Metrics   *metrics.Recorder
	Gatherer  prometheus.Gatherer // served on /metrics when set
	Logger    *slog.Logger
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	h := &Handler{store: opts.Store, logger: logger}
	r.Route("/api", func(r chi.Router) {
		if opts.AuthToken != "" {
			r.Use(AuthMiddleware(opts.AuthToken))
		}
		r.Use(middleware.Timeout(RequestTimeout))
		h.Routes(r)
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Handler returns the router wrapped with OpenTelemetry instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router, "assistantd")
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
