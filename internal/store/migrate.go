package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Clark-Hu/filmtopia/db"
	"github.com/Clark-Hu/filmtopia/internal/config"
)

// Migrate applies every pending up migration for the store's engine.
// The migrate instance is not closed since that would close the shared *sql.DB.
func (s *Store) Migrate() error {
	src, err := iofs.New(db.Migrations, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("open migrations for %s: %w", s.driver, err)
	}
	defer src.Close()

	var driver database.Driver
	switch s.driver {
	case config.DriverSQLite:
		driver, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	case config.DriverPostgres:
		driver, err = migratepgx.WithInstance(s.db.DB, &migratepgx.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", s.driver)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	s.logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema up to date")
	return nil
}
