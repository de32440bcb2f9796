package sqldb

import (
	"context"
	"database/sql"
)

// Dialect abstracts the store backend. The repository writes portable SQL
// ($n placeholders, ON CONFLICT upserts, COALESCE merges); the dialect owns
// schema management, which differs fundamentally between the backends: the
// sqlite dialect inspects and migrates long-lived local files in place, the
// postgres dialect runs versioned migrations.
type Dialect interface {
	Name() string
	// Migrate brings the schema up to date. It is idempotent and must be
	// called before any repository operation; a failure here is fatal for
	// the run.
	Migrate(ctx context.Context, db *sql.DB) error
}
