package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/filmtopia/internal/config"
	httpserver "github.com/Clark-Hu/filmtopia/internal/http"
	"github.com/Clark-Hu/filmtopia/internal/logging"
	"github.com/Clark-Hu/filmtopia/internal/repository"
	"github.com/Clark-Hu/filmtopia/internal/service"
	"github.com/Clark-Hu/filmtopia/internal/session"
	"github.com/Clark-Hu/filmtopia/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("filmtopia", "info", "console", os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New("filmtopia", cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

// run serves until ctx is cancelled. A listener failure is returned; a
// requested shutdown is not an error.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	server, st, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// setup opens and migrates the store and wires the HTTP server. The caller
// owns the returned store.
func setup(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*httpserver.Server, *store.Store, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBDriver, cfg.DSN(), store.Options{
		MaxConns:               cfg.DBMaxConns,
		MinConns:               cfg.DBMinConns,
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	sessions, err := session.NewManager(session.Options{
		Name:     cfg.SessionName,
		HashKey:  []byte(cfg.SessionHashKey),
		BlockKey: []byte(cfg.SessionBlockKey),
		Secure:   cfg.SessionSecure,
	}, logger)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("init sessions: %w", err)
	}

	repo := repository.New(st)
	ratings := service.NewRatings(repo.Ratings, logger)
	server, err := httpserver.New(cfg, st, ratings, sessions, logger)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("init http server: %w", err)
	}
	return server, st, nil
}
