package sqldb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmliu/cb-tracker/internal/domain"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	rawDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "bonds.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = rawDB.Close()
	})
	return rawDB
}

func TestSQLiteDialect_Migrate_Fresh(t *testing.T) {
	rawDB := openSQLite(t)
	d := &SQLiteDialect{}
	ctx := context.Background()

	require.NoError(t, d.Migrate(ctx, rawDB))

	// Re-running against an up-to-date schema must be a no-op.
	require.NoError(t, d.Migrate(ctx, rawDB))

	tx, err := rawDB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	cols, pk, err := tableInfo(ctx, tx, "bonds")
	require.NoError(t, err)

	assert.True(t, pk["stock_id"])
	assert.True(t, pk["bond_id"])
	assert.Equal(t, 2, len(pk))
	for _, col := range domain.BondColumns {
		assert.True(t, cols[col], "missing column %s", col)
	}
}

func TestSQLiteDialect_Migrate_AddsMissingColumns(t *testing.T) {
	rawDB := openSQLite(t)
	ctx := context.Background()

	// A partial schema from an older build: composite key already in place
	// but several columns absent.
	_, err := rawDB.ExecContext(ctx, `CREATE TABLE bonds (
		stock_id TEXT NOT NULL,
		bond_id TEXT NOT NULL DEFAULT '',
		bond_nm TEXT,
		progress_nm TEXT,
		PRIMARY KEY (stock_id, bond_id)
	)`)
	require.NoError(t, err)
	_, err = rawDB.ExecContext(ctx,
		"INSERT INTO bonds (stock_id, bond_id, bond_nm) VALUES ('600000', '110001', '浦发转债')")
	require.NoError(t, err)

	d := &SQLiteDialect{}
	require.NoError(t, d.Migrate(ctx, rawDB))

	var delist sql.NullString
	err = rawDB.QueryRowContext(ctx,
		"SELECT delist_dt FROM bonds WHERE stock_id = '600000'").Scan(&delist)
	require.NoError(t, err)
	assert.False(t, delist.Valid)
}

func TestSQLiteDialect_Migrate_RebuildsLegacyKey(t *testing.T) {
	rawDB := openSQLite(t)
	ctx := context.Background()

	// The original schema: stock_id alone as primary key and the old
	// apply_dt column name.
	_, err := rawDB.ExecContext(ctx, `CREATE TABLE bonds (
		stock_id TEXT PRIMARY KEY,
		bond_nm TEXT,
		stock_nm TEXT,
		apply_dt TEXT
	)`)
	require.NoError(t, err)
	_, err = rawDB.ExecContext(ctx,
		"INSERT INTO bonds (stock_id, bond_nm, stock_nm, apply_dt) VALUES ('600000', '浦发转债', '浦发银行', '2025-03-01')")
	require.NoError(t, err)
	_, err = rawDB.ExecContext(ctx,
		"INSERT INTO bonds (stock_id, bond_nm) VALUES ('000001', '平安转债')")
	require.NoError(t, err)

	d := &SQLiteDialect{}
	require.NoError(t, d.Migrate(ctx, rawDB))

	tx, err := rawDB.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, pk, err := tableInfo(ctx, tx, "bonds")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.True(t, pk["stock_id"])
	assert.True(t, pk["bond_id"])

	var count int
	require.NoError(t, rawDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bonds").Scan(&count))
	assert.Equal(t, 2, count)

	var bondID string
	var applyDate sql.NullString
	err = rawDB.QueryRowContext(ctx,
		"SELECT bond_id, apply_date FROM bonds WHERE stock_id = '600000'").Scan(&bondID, &applyDate)
	require.NoError(t, err)
	assert.Equal(t, "", bondID)
	assert.Equal(t, "2025-03-01", applyDate.String)

	// The rebuilt schema must survive a second migration untouched.
	require.NoError(t, d.Migrate(ctx, rawDB))
	require.NoError(t, rawDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bonds").Scan(&count))
	assert.Equal(t, 2, count)
}
