package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/askdb/askdb/internal/config"
)

const (
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"
)

type Config struct {
	Driver      string
	DSN         string
	PingTimeout time.Duration
}

// OpenFunc opens a dedicated handle. Callers own the returned *sql.DB and must close it.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// Open returns a handle capped at a single connection, verified with a ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("database driver is required")
	}
	if driver == DriverPostgres && strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func Opener(cfg Config) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		return Open(ctx, cfg)
	}
}

// FromConfig resolves the connection settings. An explicit DSN wins over the
// host/port/name/user/password fields.
func FromConfig(cfg config.DatabaseConfig) Config {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" && cfg.Driver == DriverPostgres {
		dsn = PostgresDSN(cfg)
	}
	return Config{Driver: cfg.Driver, DSN: dsn}
}

func PostgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// Ping opens a throwaway handle to verify the target is reachable.
func Ping(open OpenFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		db, err := open(ctx)
		if err != nil {
			return err
		}
		return db.Close()
	}
}
