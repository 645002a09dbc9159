package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/filmtopia/internal/config"
)

// sqlite waits this long on a locked database before failing a write.
const sqliteBusyTimeoutMillis = 5000

// Options controls connection-pool behaviour.
type Options struct {
	MaxConns               int
	MinConns               int
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 zerolog.Logger
}

// Store hides direct access to the underlying connection pool so higher layers
// can focus on business logic.
type Store struct {
	db     *sqlx.DB
	driver string
	logger zerolog.Logger
	opts   Options
}

// New opens the configured engine and validates connectivity with Ping.
// For sqlite3 dsn is a file path, for postgres a connection URL.
func New(ctx context.Context, driver, dsn string, opts Options) (*Store, error) {
	logger := opts.Logger.With().Str("component", "store").Str("driver", driver).Logger()
	logger.Info().
		Int("max", opts.MaxConns).
		Int("min", opts.MinConns).
		Dur("idle", opts.MaxConnIdleTime).
		Dur("life", opts.MaxConnLifetime).
		Int("stmt_cache", opts.StatementCacheCapacity).
		Msg("initializing connection pool")

	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case config.DriverSQLite:
		db, err = openSQLite(dsn)
	case config.DriverPostgres:
		db, err = openPostgres(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		db.SetMaxIdleConns(opts.MinConns)
	}
	if opts.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxConnIdleTime)
	}
	if opts.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(opts.MaxConnLifetime)
	}

	connCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}

	if err := db.PingContext(connCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logger.Info().Msg("database connection established")

	return &Store{db: db, driver: driver, logger: logger, opts: opts}, nil
}

// NewWithDB wraps an already open handle, e.g. a sqlmock connection in tests.
func NewWithDB(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver, logger: zerolog.Nop()}
}

func openSQLite(path string) (*sqlx.DB, error) {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeoutMillis))
	q.Set("_journal_mode", "WAL")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sqlx.Open(config.DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func openPostgres(dbURL string, opts Options) (*sqlx.DB, error) {
	connCfg, err := pgx.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if opts.StatementCacheCapacity >= 0 {
		connCfg.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		connCfg.StatementCacheCapacity = opts.StatementCacheCapacity
	}
	return sqlx.NewDb(stdlib.OpenDB(*connCfg), "pgx"), nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.logger.Info().Msg("closing connection pool")
	if err := s.db.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close connection pool")
	}
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	checkCtx := ctx
	if s.opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, s.opts.ConnTimeout)
		defer cancel()
	}
	return s.db.PingContext(checkCtx)
}

// DB exposes the sqlx handle for repositories.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver reports the engine name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Builder returns a squirrel statement builder using the engine's placeholder style.
func (s *Store) Builder() sq.StatementBuilderType {
	if s.driver == config.DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Stats exposes database/sql pool statistics for observability.
func (s *Store) Stats() sql.DBStats {
	if s == nil || s.db == nil {
		return sql.DBStats{}
	}
	return s.db.Stats()
}
