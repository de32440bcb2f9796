package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmliu/cb-tracker/internal/infrastructure/persistence/sqldb/migrations"
	"github.com/pressly/goose/v3"
)

// PostgresDialect backs the store with a server database. Unlike the sqlite
// file store there are no pre-versioning legacy schemas to inspect, so
// migrations are plain goose scripts embedded in the binary.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.PostgresFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
