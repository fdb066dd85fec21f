package database

// schemas maps database names to the DDL applied by Migrate. Statements are idempotent.
var schemas = map[string]string{
	"cache": cacheSchema,
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS fit_cache (
	key        TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	value      BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fit_cache_expires ON fit_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_fit_cache_instrument ON fit_cache(instrument);
`
