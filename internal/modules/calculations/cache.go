// Package calculations caches tail fits so repeated requests for unchanged series skip
// the Hill curve and threshold search.
package calculations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// FitCache stores msgpack-encoded fits in the fit_cache table with an expiry.
type FitCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewFitCache creates a cache over a migrated "cache" database.
func NewFitCache(db *sql.DB, ttl time.Duration) *FitCache {
	return &FitCache{db: db, ttl: ttl, now: time.Now}
}

// FitKey derives a deterministic key from the series contents and the engine fingerprint.
// Any change to an observation or to a fit-relevant setting yields a different key.
func FitKey(series tailrisk.ReturnSeries, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(series.Instrument))
	h.Write([]byte{0})

	var buf [16]byte
	for _, obs := range series.Observations {
		binary.LittleEndian.PutUint64(buf[:8], uint64(obs.Timestamp.UnixNano()))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(obs.Return))
		h.Write(buf[:])
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]) // first 16 bytes (32 hex chars)
}

// Get returns the cached fit for key. Missing and expired entries report ok=false.
func (c *FitCache) Get(ctx context.Context, key string) (*tailrisk.Fit, bool, error) {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM fit_cache WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fit cache: %w", err)
	}

	if c.now().Unix() >= expiresAt {
		return nil, false, nil
	}

	var fit tailrisk.Fit
	if err := msgpack.Unmarshal(value, &fit); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached fit: %w", err)
	}
	return &fit, true, nil
}

// Put stores fit under key, replacing any previous entry.
func (c *FitCache) Put(ctx context.Context, key string, fit *tailrisk.Fit) error {
	value, err := msgpack.Marshal(fit)
	if err != nil {
		return fmt.Errorf("failed to encode fit: %w", err)
	}

	now := c.now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO fit_cache (key, instrument, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			instrument = excluded.instrument,
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, fit.Instrument, value, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to write fit cache: %w", err)
	}
	return nil
}

// DeleteInstrument removes every cached fit for an instrument.
func (c *FitCache) DeleteInstrument(ctx context.Context, instrument string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM fit_cache WHERE instrument = ?", instrument)
	if err != nil {
		return fmt.Errorf("failed to delete cached fits for %s: %w", instrument, err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *FitCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM fit_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge fit cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged fits: %w", err)
	}
	return n, nil
}
