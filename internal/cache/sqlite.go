package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"BBWPScreener/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteCache keeps fetched series in a SQLite file so they survive restarts within the TTL.
type SQLiteCache struct {
	db     *sql.DB
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLiteCache opens (or creates) the database and runs migrations.
func NewSQLiteCache(dbPath string, ttl time.Duration, logger *zap.Logger) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets a second process read the cache while the screener writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db, ttl: ttl, now: time.Now, logger: logger}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	c.logger.Info("sqlite cache opened", zap.String("path", dbPath), zap.Duration("ttl", ttl))
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series_cache (
			cache_key TEXT PRIMARY KEY,
			symbol    TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			bar_limit INTEGER NOT NULL,
			bars      INTEGER NOT NULL,
			payload   BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_cache_stored ON series_cache(stored_at)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key Key) (model.Series, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		payload  []byte
		storedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM series_cache WHERE cache_key = ?`, key.String(),
	).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query series cache: %w", err)
	}
	if c.expired(storedAt) {
		return nil, false, nil
	}

	series, err := decodeSeries(payload)
	if err != nil {
		return nil, false, err
	}
	return series, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key Key, series model.Series) error {
	payload, err := encodeSeries(series)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.ExecContext(ctx, `INSERT INTO series_cache
		(cache_key, symbol, timeframe, bar_limit, bars, payload, stored_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(cache_key) DO UPDATE SET
			bars = excluded.bars,
			payload = excluded.payload,
			stored_at = excluded.stored_at`,
		key.String(), key.Symbol, string(key.Timeframe), key.Limit, len(series), payload, c.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store series: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries older than the TTL and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl).UnixMilli()
	res, err := c.db.ExecContext(ctx, `DELETE FROM series_cache WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge series cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *SQLiteCache) expired(storedAt int64) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(time.UnixMilli(storedAt)) > c.ttl
}

func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteCache) Close() error {
	c.logger.Info("closing sqlite cache")
	return c.db.Close()
}
