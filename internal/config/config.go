package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supported storage engines.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config captures all runtime configuration derived from environment variables
// and, optionally, a YAML file named by CONFIG_FILE.
type Config struct {
	Port              string
	DBDriver          string
	DBPath            string
	DBURL             string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
	SessionName       string
	SessionHashKey    string
	SessionBlockKey   string
	SessionSecure     bool
	LogLevel          string
	LogFormat         string
}

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"DB_DRIVER":                   DriverSQLite,
	"DB_PATH":                     "ratings.db",
	"SERVER_READ_TIMEOUT":         15,
	"SERVER_WRITE_TIMEOUT":        15,
	"SERVER_IDLE_TIMEOUT":         60,
	"DB_MAX_CONNS":                20,
	"DB_MIN_CONNS":                2,
	"DB_MAX_CONN_IDLE_SECS":       300,
	"DB_MAX_CONN_LIFETIME_SECS":   3600,
	"DB_CONN_TIMEOUT_SECS":        10,
	"DB_STATEMENT_CACHE_CAPACITY": 256,
	"SESSION_NAME":                "filmtopia",
	"SESSION_SECURE":              false,
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "console",
}

// Load reads configuration, applying defaults and validation.
func Load() (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	// Keys without a default are only seen by AutomaticEnv once bound.
	for _, key := range []string{"DB_URL", "SESSION_HASH_KEY", "SESSION_BLOCK_KEY", "CONFIG_FILE"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:              v.GetString("PORT"),
		DBDriver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBPath:            v.GetString("DB_PATH"),
		DBURL:             v.GetString("DB_URL"),
		ReadTimeoutSecs:   v.GetInt("SERVER_READ_TIMEOUT"),
		WriteTimeoutSecs:  v.GetInt("SERVER_WRITE_TIMEOUT"),
		IdleTimeoutSecs:   v.GetInt("SERVER_IDLE_TIMEOUT"),
		DBMaxConns:        v.GetInt("DB_MAX_CONNS"),
		DBMinConns:        v.GetInt("DB_MIN_CONNS"),
		DBMaxIdleSecs:     v.GetInt("DB_MAX_CONN_IDLE_SECS"),
		DBMaxLifeSecs:     v.GetInt("DB_MAX_CONN_LIFETIME_SECS"),
		DBConnTimeoutSecs: v.GetInt("DB_CONN_TIMEOUT_SECS"),
		DBStatementCache:  v.GetInt("DB_STATEMENT_CACHE_CAPACITY"),
		SessionName:       v.GetString("SESSION_NAME"),
		SessionHashKey:    v.GetString("SESSION_HASH_KEY"),
		SessionBlockKey:   v.GetString("SESSION_BLOCK_KEY"),
		SessionSecure:     v.GetBool("SESSION_SECURE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for %s", DriverSQLite)
		}
	case DriverPostgres:
		if cfg.DBURL == "" {
			return fmt.Errorf("DB_URL is required for %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %s or %s, got %q", DriverSQLite, DriverPostgres, cfg.DBDriver)
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.SessionName == "" {
		return fmt.Errorf("SESSION_NAME is required")
	}
	// securecookie accepts AES-128/192/256 block keys only.
	if n := len(cfg.SessionBlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("SESSION_BLOCK_KEY must be 16, 24 or 32 bytes")
	}
	if cfg.SessionBlockKey != "" && cfg.SessionHashKey == "" {
		return fmt.Errorf("SESSION_HASH_KEY is required when SESSION_BLOCK_KEY is set")
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json")
	}
	return nil
}

// DSN returns the connection string for the configured engine: the file
// path for sqlite3, the URL for postgres.
func (cfg Config) DSN() string {
	if cfg.DBDriver == DriverPostgres {
		return cfg.DBURL
	}
	return cfg.DBPath
}
