// Package web serves the dashboard pages and a JSON API over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end of the service.
type Server struct {
	svc     *app.Service
	cfg     config.ServerConfig
	assets  config.Assets
	chart   string
	logger  *zap.Logger
	limiter *rateLimiter
}

// New creates a server for svc configured from cfg.
func New(svc *app.Service, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:     svc,
		cfg:     cfg.Server,
		assets:  cfg.CDN.Assets(),
		chart:   cfg.Preferences.ChartType,
		logger:  logger.Named("web"),
		limiter: newRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// basename returns the configured mount prefix without a trailing slash.
// An empty result means the prefix is resolved per request.
func (s *Server) basename() string {
	return strings.TrimRight(s.cfg.Basename, "/")
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Route(s.basename()+"/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{name}", s.handleGetTable)
		r.Post("/tables/{name}", s.handleLoadTable)
		r.Post("/query", s.handleQuery)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/history", s.handleHistory)
		r.Get("/engine", s.handleEngine)
		r.Post("/export/{format}", s.handleExport)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})
	r.Get("/*", s.handlePage)
	r.NotFound(s.handleNotFound)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("basename", s.cfg.Basename))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.limiter.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
