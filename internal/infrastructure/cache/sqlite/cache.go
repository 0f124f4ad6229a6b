// Package sqlite implements the offline document cache on a local SQLite file.
//
// The cache is an optimization only: every storage error is logged and
// degrades to a miss, nothing is returned to callers of Put/Get/Remove/Clear.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

const (
	DefaultMaxBytes  int64 = 50 << 20
	DefaultRetention       = 7 * 24 * time.Hour
	// headroomRatio is the fill level eviction trims down to.
	headroomRatio = 0.8
)

// Observer receives cache outcome notifications.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted(entries int, bytes int64)
}

type Options struct {
	MaxBytes  int64
	Retention time.Duration
	Observer  Observer
}

type Cache struct {
	db        *sql.DB
	maxBytes  int64
	retention time.Duration
	observer  Observer
	now       func() time.Time
}

func Open(ctx context.Context, path string, opts Options) (*Cache, error) {
	if path == "" {
		path = "./data/offline-cache.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Cache{
		db:        db,
		maxBytes:  opts.MaxBytes,
		retention: opts.Retention,
		observer:  opts.Observer,
		now:       time.Now,
	}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	size INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	stored_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_stored_at ON cache_entries(stored_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores data under key, evicting oldest entries first when the budget would be exceeded.
func (c *Cache) Put(ctx context.Context, key string, data []byte, contentType string) {
	size := int64(len(data))
	if size > c.maxBytes {
		slog.Warn("cache_put_skipped", "key", key, "size", size, "max_bytes", c.maxBytes)
		return
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		slog.Warn("cache_put_failed", "key", key, "error", err)
		return
	}
	if _, _, err := c.evict(ctx, size); err != nil {
		slog.Warn("cache_evict_failed", "key", key, "error", err)
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO cache_entries (key, data, size, content_type, stored_at)
VALUES (?, ?, ?, ?, ?)
`, key, data, size, contentType, c.now().UnixNano())
	if err != nil {
		slog.Warn("cache_put_failed", "key", key, "error", err)
	}
}

// Get returns the entry for key; entries past retention are deleted and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	var entry domain.CacheEntry
	var storedAt int64
	err := c.db.QueryRowContext(ctx, `
SELECT key, data, size, content_type, stored_at FROM cache_entries WHERE key = ?
`, key).Scan(&entry.Key, &entry.Data, &entry.Size, &entry.ContentType, &storedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("cache_get_failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	entry.StoredAt = time.Unix(0, storedAt).UTC()

	if c.now().Sub(entry.StoredAt) > c.retention {
		c.Remove(ctx, key)
		slog.Debug("cache_entry_expired", "key", key, "stored_at", entry.StoredAt)
		c.miss()
		return nil, false
	}
	if c.observer != nil {
		c.observer.CacheHit()
	}
	return &entry, true
}

func (c *Cache) Remove(ctx context.Context, key string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		slog.Warn("cache_remove_failed", "key", key, "error", err)
	}
}

func (c *Cache) Clear(ctx context.Context) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		slog.Warn("cache_clear_failed", "error", err)
	}
}

// Evict runs an explicit eviction pass and reports what was removed.
func (c *Cache) Evict(ctx context.Context) (int, int64, error) {
	return c.evict(ctx, 0)
}

func (c *Cache) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats := domain.CacheStats{MaxBytes: c.maxBytes}
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cache_entries`).
		Scan(&stats.Entries, &stats.Bytes)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

// evict removes oldest entries until total+incoming is at or below 80% of the budget.
// It only acts once total+incoming exceeds the budget.
func (c *Cache) evict(ctx context.Context, incoming int64) (int, int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM cache_entries`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("sum cache size: %w", err)
	}
	if total+incoming <= c.maxBytes {
		return 0, 0, nil
	}

	target := int64(float64(c.maxBytes) * headroomRatio)
	rows, err := c.db.QueryContext(ctx, `SELECT key, size FROM cache_entries ORDER BY stored_at ASC, rowid ASC`)
	if err != nil {
		return 0, 0, fmt.Errorf("list cache entries: %w", err)
	}
	type victim struct {
		key  string
		size int64
	}
	var victims []victim
	remaining := total
	for rows.Next() && remaining+incoming > target {
		var v victim
		if err := rows.Scan(&v.key, &v.size); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan cache entry: %w", err)
		}
		victims = append(victims, v)
		remaining -= v.size
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, fmt.Errorf("iterate cache entries: %w", err)
	}
	rows.Close()

	var freed int64
	for _, v := range victims {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, v.key); err != nil {
			return len(victims), freed, fmt.Errorf("delete cache entry: %w", err)
		}
		freed += v.size
	}
	if len(victims) > 0 {
		slog.Info("cache_evicted", "entries", len(victims), "bytes", freed, "total_before", total, "max_bytes", c.maxBytes)
		if c.observer != nil {
			c.observer.CacheEvicted(len(victims), freed)
		}
	}
	return len(victims), freed, nil
}

func (c *Cache) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}
