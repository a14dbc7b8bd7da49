package pgcache

import (
	"context"
	"time"

	"github.com/BearBump/trackgen/internal/cache"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var _ cache.Store = (*Storage)(nil)

// Время берём из БД (now()), чтобы TTL был согласован между инстансами.

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `
SELECT value FROM cache_entries
WHERE key = $1 AND expires_at > now()
`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cache.Unavailable(err, "pg get")
	}
	return value, true, nil
}

func (s *Storage) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO cache_entries (key, value, expires_at)
VALUES ($1, $2, now() + $3::float8 * interval '1 millisecond')
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
`, key, value, float64(ttl.Milliseconds()))
	if err != nil {
		return cache.Unavailable(err, "pg set")
	}
	return nil
}

// SetIfAbsentWithTTL inserts the row, or takes over an expired one, in a single statement.
// A live row makes the statement return nothing.
func (s *Storage) SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var got string
	err := s.db.QueryRow(ctx, `
INSERT INTO cache_entries (key, value, expires_at)
VALUES ($1, $2, now() + $3::float8 * interval '1 millisecond')
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
WHERE cache_entries.expires_at <= now()
RETURNING key
`, key, value, float64(ttl.Milliseconds())).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, cache.Unavailable(err, "pg setnx")
	}
	return true, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Storage) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, errors.Wrap(err, "purge expired")
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return cache.Unavailable(err, "pg ping")
	}
	return nil
}
