package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id        TEXT PRIMARY KEY,
	email     TEXT NOT NULL,
	name      TEXT NOT NULL DEFAULT '',
	role      TEXT NOT NULL DEFAULT 'renter',
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_profiles_cached_at ON profiles(cached_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
