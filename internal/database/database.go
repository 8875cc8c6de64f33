// Package database opens the PostgreSQL pool behind the persistent directions cache.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetclock/fleetclock/internal/config"
)

// Connect creates a connection pool for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.Name, err)
	}

	return pool, nil
}

// poolConfig builds pgx pool settings. Credentials are URL-escaped so
// passwords may contain any character.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}

	pc, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pc.MaxConns = int32(cfg.MaxConns) //nolint:gosec // bounded by config validation
	pc.MinConns = int32(cfg.MinConns) //nolint:gosec // bounded by config validation
	pc.MaxConnLifetime = cfg.ConnMaxLifetime

	return pc, nil
}
