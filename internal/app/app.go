package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/auth"
	"github.com/vovakirdan/wirespace-server/internal/config"
	"github.com/vovakirdan/wirespace-server/internal/core"
	applog "github.com/vovakirdan/wirespace-server/internal/log"
	"github.com/vovakirdan/wirespace-server/internal/store"
	"github.com/vovakirdan/wirespace-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirespace-server/internal/transport/http"
)

// TokenTTL is how long tokens minted by the server stay valid.
const TokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// JWTConfig derives the token settings from cfg.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      TokenTTL,
	}
}

// HubOptions derives the session timings from cfg.
func HubOptions(cfg *config.Config) core.Options {
	opts := core.DefaultOptions()
	opts.IdleCheckInterval = cfg.IdleCheckInterval
	opts.IdleTimeout = cfg.IdleTimeout
	opts.JoinTimeout = cfg.JoinTimeout
	return opts
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("jwt_secret is empty, only guest connections will be accepted")
	}
	resolver := auth.NewResolver(JWTConfig(cfg), cfg.RequireToken)

	hub := core.NewHub(st, HubOptions(cfg), applog.Module(logger, "core"))
	server := transporthttp.NewServer(hub, st, resolver, cfg, applog.Module(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// Cancelling ctx also ends every open WebSocket session.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()
	a.server.BaseContext = func(net.Listener) context.Context { return sessionCtx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Int("rooms", len(a.hub.Rooms().Rooms())).Msg("shutting down http server")
		cancelSessions()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
