package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seantiz/urlcheck/internal/engine"
	"github.com/seantiz/urlcheck/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// writeTimeout bounds synchronous and batch checks. SSE hop streams lift
	// it per connection.
	writeTimeout = 30 * time.Second
)

var corsOptions = cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
	ExposedHeaders: []string{"X-Request-Id"},
	MaxAge:         300,
}

// Server serves the check API over the engine and store.
type Server struct {
	router *chi.Mux
	store  store.Store
	engine *engine.Engine
	logger *slog.Logger
	addr   string
}

// NewServer builds the API router. Checks run through eng and are read back
// from s.
func NewServer(addr string, s store.Store, eng *engine.Engine, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  s,
		engine: eng,
		logger: logger,
		addr:   addr,
	}

	srv.router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		srv.loggingMiddleware,
		metricsMiddleware,
		cors.Handler(corsOptions),
	)
	srv.routes()

	return srv
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/handlers", s.handleListHandlers)
		r.Get("/stats", s.handleGetStats)

		r.Route("/checks", func(r chi.Router) {
			r.Post("/", s.handleCreateCheck)
			r.Post("/async", s.handleAsyncCheck)
			r.Post("/batch", s.handleBatchCheck)
			r.Get("/", s.handleListChecks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCheck)
				r.Delete("/", s.handleDeleteCheck)
				r.Get("/hops", s.handleStreamHops)
				r.Get("/hops/history", s.handleGetHopHistory)
			})
		})
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run listens on the configured address and serves until ctx is done. It then
// shuts the listener down and waits for submitted checks to finish.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down", "cause", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	s.engine.Wait()
	s.logger.Info("server stopped", "checks_drained", true)
	return nil
}

// loggingMiddleware logs each API request with its chi request id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", routePattern(r),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
