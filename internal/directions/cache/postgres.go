package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fleetclock/fleetclock/internal/directions"
)

// querier is the subset of *pgxpool.Pool used by PostgresStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by a directions_cache table.
type PostgresStore struct {
	db  querier
	now func() time.Time
}

// NewPostgresStore creates a PostgreSQL store. db is typically a *pgxpool.Pool.
func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS directions_cache (
		cache_key   TEXT PRIMARY KEY,
		provider    TEXT NOT NULL,
		routes      JSONB NOT NULL,
		fetched_at  TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS directions_cache_expires_at_idx ON directions_cache (expires_at);
`

// EnsureSchema creates the cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create directions_cache table: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (*directions.Response, bool, error) {
	query := `
		SELECT provider, routes, fetched_at
		FROM directions_cache
		WHERE cache_key = $1 AND expires_at > $2
	`

	var (
		provider  string
		routes    []byte
		fetchedAt time.Time
	)
	err := s.db.QueryRow(ctx, query, key, s.now()).Scan(&provider, &routes, &fetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query directions cache: %w", err)
	}

	var stored [][]storedLeg
	if err := json.Unmarshal(routes, &stored); err != nil {
		return nil, false, fmt.Errorf("decode cached routes: %w", err)
	}

	return &directions.Response{
		StatusCode: http.StatusOK,
		Provider:   provider,
		FetchedAt:  fetchedAt,
		Routes:     decodeRoutes(stored),
	}, true, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, key string, resp *directions.Response, ttl time.Duration) error {
	routes, err := json.Marshal(encodeRoutes(resp.Routes))
	if err != nil {
		return fmt.Errorf("encode routes: %w", err)
	}

	fetchedAt := resp.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	query := `
		INSERT INTO directions_cache (cache_key, provider, routes, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE SET
			provider = EXCLUDED.provider,
			routes = EXCLUDED.routes,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.Exec(ctx, query, key, resp.Provider, routes, fetchedAt, s.now().Add(ttl)); err != nil {
		return fmt.Errorf("upsert directions cache: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM directions_cache WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired directions: %w", err)
	}
	return tag.RowsAffected(), nil
}
