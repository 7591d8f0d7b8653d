// Package server exposes the box and the text-generation proxy over HTTP.
//
// Claims and releases posted here run through the same arbitration engine
// as any other client. Writers that talk to Redis directly are not
// constrained by it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dyluth/osechi/internal/arbiter"
	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/identity"
	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/internal/ratelimit"
	"github.com/dyluth/osechi/internal/textgen"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BoxSource is the synchronizer as seen by the HTTP layer.
type BoxSource interface {
	Snapshot() *box.Box
	Loading() bool
	Err() error
	Watch(ctx context.Context) <-chan *box.Box
}

// Deps are the components the server routes to.
type Deps struct {
	Store    Pinger
	Box      BoxSource
	Engine   *arbiter.Engine
	Verifier *identity.TokenVerifier
	Limiter  *ratelimit.FixedWindow
	TextGen  *textgen.Service
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Server is the osechi HTTP server.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	router *gin.Engine
	logger zerolog.Logger
}

// New builds the router.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, logger: deps.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	gen := api.Group("", s.rateLimit())
	gen.POST("/generate-meaning", s.handleGenerateMeaning)
	gen.POST("/generate-recipe", s.handleGenerateRecipe)
	gen.POST("/suggest-dish", s.handleSuggestDish)

	b := api.Group("/box")
	b.GET("", s.handleSnapshot)
	b.GET("/events", s.handleEvents)
	slots := b.Group("/tiers/:tier/slots/:slot", s.authenticate())
	slots.POST("", s.handleClaim)
	slots.DELETE("", s.handleRelease)

	return r
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: the event stream is long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("event", "listening").Str("addr", s.cfg.Addr).Msg("HTTP server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info().Str("event", "stopped").Msg("HTTP server stopped")
	return nil
}
