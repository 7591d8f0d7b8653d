package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/osechi/internal/identity"
	"github.com/dyluth/osechi/internal/logging"
	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/internal/ratelimit"
	"github.com/dyluth/osechi/internal/server"
	"github.com/dyluth/osechi/internal/textgen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve the box and the dish-suggestion endpoints over HTTP.

Endpoints:
  GET    /api/box                              current snapshot
  GET    /api/box/events                       snapshot stream (server-sent events)
  POST   /api/box/tiers/{tier}/slots/{slot}    claim a slot
  DELETE /api/box/tiers/{tier}/slots/{slot}    release a slot
  POST   /api/generate-meaning                 symbolic meaning of a dish
  POST   /api/generate-recipe                  recipe for a dish
  POST   /api/suggest-dish                     dish that balances the box
  GET    /healthz                              Redis connectivity
  GET    /metrics                              Prometheus metrics

The box is seeded on first start if Redis holds none.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	s, err := openSession(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer s.Close()

	verifier := identity.NewTokenVerifier(cfg.Server.TokenSecret, cfg.Server.TokenIssuer)
	if !verifier.Enabled() {
		logger.Warn().Str("event", "auth_disabled").Msg("No token secret configured; every request acts as a guest")
	}

	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	limiterLog := logging.Component(logger, "ratelimit")
	go limiter.Run(ctx, cfg.RateLimit.SweepInterval, func(removed int) {
		limiterLog.Debug().Str("event", "sweep").Int("removed", removed).Int("tracked", limiter.Len()).Msg("Expired windows swept")
	})

	var completer textgen.Completer
	if c, err := textgen.NewOpenAICompleter(cfg.TextGen); err == nil {
		completer = c
	} else if errors.Is(err, textgen.ErrNotConfigured) {
		logger.Warn().Str("event", "textgen_disabled").Msg("No API key configured; text generation endpoints will fail")
	} else {
		return printer.Error("invalid text generation configuration", err.Error(), nil)
	}
	gen := textgen.NewService(completer, cfg.TextGen.Timeout, logging.Component(logger, "textgen"), m)

	srv := server.New(cfg.Server, server.Deps{
		Store:    s.client,
		Box:      s.sync,
		Engine:   s.engine,
		Verifier: verifier,
		Limiter:  limiter,
		TextGen:  gen,
		Gatherer: reg,
		Metrics:  m,
		Logger:   logging.Component(logger, "server"),
	})

	logger.Info().
		Str("event", "starting").
		Str("box", cfg.Box.Name).
		Str("addr", cfg.Server.Addr).
		Msg("Starting osechi server")

	if err := srv.Run(ctx); err != nil {
		return printer.Error("server failed", err.Error(), nil)
	}
	return nil
}
