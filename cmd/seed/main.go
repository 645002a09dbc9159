package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/filmtopia/internal/config"
	"github.com/Clark-Hu/filmtopia/internal/logging"
	"github.com/Clark-Hu/filmtopia/internal/repository"
	"github.com/Clark-Hu/filmtopia/internal/service"
	"github.com/Clark-Hu/filmtopia/internal/store"
)

func main() {
	data := flag.String("data", "cmd/seed/testdata/ratings.json", "path to a JSON array of ratings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("filmtopia-seed", "info", "console", os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config error")
	}
	logger := logging.New("filmtopia-seed", cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stored, err := run(ctx, cfg, *data, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *data).Int("stored", stored).Msg("seed failed")
	}
	logger.Info().Int("stored", stored).Msg("fixtures loaded")
}

// run loads the fixture file at path into the configured store and returns
// how many ratings were written.
func run(ctx context.Context, cfg config.Config, path string, logger zerolog.Logger) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()

	entries, err := readFixtures(file)
	if err != nil {
		return 0, err
	}

	st, err := store.New(ctx, cfg.DBDriver, cfg.DSN(), store.Options{
		MaxConns:               cfg.DBMaxConns,
		MinConns:               cfg.DBMinConns,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return 0, fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return 0, fmt.Errorf("migrate database: %w", err)
	}

	svc := service.NewRatings(repository.New(st).Ratings, logger)
	return loadFixtures(ctx, svc, entries, logger)
}
