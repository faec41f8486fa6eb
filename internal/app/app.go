package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/membership"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/relay"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
	"github.com/vovakirdan/wirechat-fanout/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-fanout/internal/transport/http"
	"github.com/vovakirdan/wirechat-fanout/internal/utils"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	dispatcher      *core.Dispatcher
	relay           *relay.Relay
	rdb             *redis.Client
	auth            *auth.Service
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})

	members := membership.NewGuarded(st, membership.Settings{
		Timeout:     cfg.MembershipTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger)

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		auth:            authService,
		store:           st,
		log:             logger,
	}

	opts := []core.DispatcherOption{core.WithWriteTimeout(cfg.WriteTimeout)}
	if cfg.RedisAddr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.relay = relay.New(a.rdb, cfg.RedisChannel, utils.NewInstanceID(), logger)
		opts = append(opts, core.WithPeer(a.relay))
		logger.Info().Str("redis_addr", cfg.RedisAddr).Str("instance", a.relay.InstanceID()).Msg("cross-instance relay enabled")
	}

	codec := proto.NewJSONCodec()
	registry := core.NewRegistry()
	a.dispatcher = core.NewDispatcher(registry, members, codec, logger, opts...)
	handler := core.NewHandler(registry, a.dispatcher, st, st, codec, logger)

	a.server = transporthttp.NewServer(handler, authService, st, cfg, logger)
	return a, nil
}

// Auth exposes the token service, mainly for tooling and tests.
func (a *App) Auth() *auth.Service {
	return a.auth
}

// Run listens on the configured address and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln and, when configured, the relay subscriber.
// Resources are released before it returns.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	if a.relay != nil {
		g.Go(func() error {
			err := a.relay.Run(gctx, a.dispatcher.DeliverEncoded)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("relay: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
