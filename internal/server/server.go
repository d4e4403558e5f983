// Package server exposes the recommendation pipeline and its observability
// data over HTTP.
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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/observability"
	"github.com/rxflow/substitute-gateway/internal/observability/store"
	"github.com/rxflow/substitute-gateway/internal/pipeline"
)

const requestTimeout = 60 * time.Second

type Server struct {
	Router *chi.Mux
	Port   int

	logger   *slog.Logger
	catalog  *catalog.Catalog
	pipeline *pipeline.Pipeline
	tracker  *observability.Tracker
	store    *store.Store
}

func New(port int, cat *catalog.Catalog, pipe *pipeline.Pipeline, tracker *observability.Tracker, st *store.Store, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "substitute-gateway")
	})

	s := &Server{
		Router:   r,
		Port:     port,
		logger:   logger,
		catalog:  cat,
		pipeline: pipe,
		tracker:  tracker,
		store:    st,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.Get("/", s.handleRoot)
	s.Router.Get("/health", s.handleHealth)

	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Post("/products", s.handleCreateProduct)
		r.Post("/products/bulk", s.handleBulkCreateProducts)
		r.Post("/recommendations", s.handleRecommendations)

		r.Route("/observability", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/metrics/recent", s.handleRecentMetrics)
			r.Get("/metrics/{request_id}", s.handleMetricsByID)
			r.Get("/drift/alerts", s.handleDriftAlerts)
			r.Get("/drift/history", s.handleDriftHistory)
			r.Post("/drift/set-baseline", s.handleSetBaseline)
			r.Get("/analyses/recent", s.handleRecentAnalyses)
		})
	})
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
