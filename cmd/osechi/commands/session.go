package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/osechi/internal/arbiter"
	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/identity"
	"github.com/dyluth/osechi/internal/logging"
	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/internal/mirror"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// session is a connected box: store client, synchronizer and engine.
type session struct {
	cfg     *config.OsechiConfig
	logger  zerolog.Logger
	client  *box.Client
	sync    *mirror.Synchronizer
	engine  *arbiter.Engine
	gate    *identity.Gate
	metrics *metrics.Metrics
}

func newLogger(cfg *config.OsechiConfig) (zerolog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, logging.Format(cfg.Logging.Format))
	if err != nil {
		return zerolog.Nop(), printer.Error("invalid logging configuration", err.Error(), nil)
	}
	return logger, nil
}

// openStore connects to Redis and verifies the connection.
func openStore(ctx context.Context, cfg *config.OsechiConfig) (*box.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Store.RedisURL)
	if err != nil {
		return nil, printer.Error("invalid Redis URL", err.Error(), []string{"Set store.redis_url in osechi.yml or REDIS_URL"})
	}

	client, err := box.NewClient(redisOpts, cfg.Box.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create box client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"URL": cfg.Store.RedisURL, "Box": cfg.Box.Name},
			[]string{"Check that Redis is running and reachable"},
		)
	}

	return client, nil
}

// openSession connects, starts the synchronizer and builds an engine acting
// for whoever the gate holds. m may be nil.
func openSession(ctx context.Context, cfg *config.OsechiConfig, logger zerolog.Logger, m *metrics.Metrics) (*session, error) {
	client, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sync := mirror.New(client, cfg.Layout(), mirror.Options{
		ResyncInterval: cfg.Store.ResyncInterval,
		Logger:         logging.Component(logger, "mirror"),
		Metrics:        m,
	})
	if err := sync.Start(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start synchronizer: %w", err)
	}

	gate := identity.NewGate()
	engine := arbiter.NewEngine(sync, client, gate, cfg.Rules, arbiter.Options{
		WriteTimeout: cfg.Store.WriteTimeout,
		Logger:       logging.Component(logger, "arbiter"),
		Metrics:      m,
	})

	return &session{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		sync:    sync,
		engine:  engine,
		gate:    gate,
		metrics: m,
	}, nil
}

// signIn verifies token and records the principal on the session's gate.
// An empty token leaves the session acting as a guest.
func (s *session) signIn(token string) error {
	if token == "" {
		return nil
	}

	verifier := identity.NewTokenVerifier(s.cfg.Server.TokenSecret, s.cfg.Server.TokenIssuer)
	p, err := verifier.Verify(token)
	if errors.Is(err, identity.ErrVerifierDisabled) {
		return printer.Error(
			"identity token cannot be verified",
			"No token secret is configured, so signed-in actions are unavailable.",
			[]string{"Set server.token_secret in osechi.yml or OSECHI_TOKEN_SECRET"},
		)
	}
	if err != nil {
		return printer.Error("invalid identity token", err.Error(), nil)
	}

	s.gate.Observe(p)
	return nil
}

// flush waits for dispatched writes and reports the first write failure.
func (s *session) flush() error {
	s.engine.Wait()

	for {
		select {
		case err := <-s.sync.Errors():
			var te *box.TransportError
			if errors.As(err, &te) && te.Op == "write" {
				return printer.ErrorWithContext(
					"write failed",
					"The change was accepted but the store did not acknowledge it.",
					map[string]string{"Path": te.Path, "Error": te.Err.Error()},
					nil,
				)
			}
		default:
			return nil
		}
	}
}

// Close waits for writes already accepted by the engine, then stops the
// synchronizer and disconnects.
func (s *session) Close() {
	s.engine.Wait()
	s.sync.Close()
	s.client.Close()
}
