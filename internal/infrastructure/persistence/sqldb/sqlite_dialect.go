package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmliu/cb-tracker/internal/domain"
)

// SQLiteDialect is the default backend: a single long-lived database file.
// Its Migrate handles stores created by much older versions of the tool,
// which used a single-column primary key and some legacy column names, by
// inspecting the live schema and rebuilding in place when needed.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func bondsTableDDL(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
	b.WriteString("\tstock_id TEXT NOT NULL,\n")
	b.WriteString("\tbond_id TEXT NOT NULL DEFAULT '',\n")
	for _, col := range domain.BondColumns {
		fmt.Fprintf(&b, "\t%s TEXT,\n", col)
	}
	b.WriteString("\tPRIMARY KEY (stock_id, bond_id)\n)")
	return b.String()
}

const metaTableDDL = `CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
)`

// Migrate ensures the bonds and meta tables exist with the canonical columns
// and the composite (stock_id, bond_id) key. Missing columns are added in
// place; a table with any other primary key is rebuilt through a shadow
// table, carrying every row across with bond_id defaulted to '' and the
// legacy apply_dt column mapped onto apply_date. Re-running is a no-op.
func (d *SQLiteDialect) Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, bondsTableDDL("bonds")); err != nil {
		return fmt.Errorf("create bonds table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, metaTableDDL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	cols, pk, err := tableInfo(ctx, tx, "bonds")
	if err != nil {
		return fmt.Errorf("inspect bonds table: %w", err)
	}

	if !cols["bond_id"] {
		if _, err := tx.ExecContext(ctx, "ALTER TABLE bonds ADD COLUMN bond_id TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("add column bond_id: %w", err)
		}
	}
	for _, col := range domain.BondColumns {
		if cols[col] {
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE bonds ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}

	if !pk["stock_id"] || !pk["bond_id"] || len(pk) != 2 {
		if err := d.rebuild(ctx, tx, cols); err != nil {
			return fmt.Errorf("rebuild bonds table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema migration: %w", err)
	}
	return nil
}

// rebuild migrates a legacy-keyed table onto the composite-key schema via a
// shadow table. cols is the column set before the additive migration above,
// used to detect legacy column names worth carrying over.
func (d *SQLiteDialect) rebuild(ctx context.Context, tx *sql.Tx, cols map[string]bool) error {
	if _, err := tx.ExecContext(ctx, bondsTableDDL("bonds_new")); err != nil {
		return fmt.Errorf("create shadow table: %w", err)
	}

	insertCols := append([]string{"stock_id", "bond_id"}, domain.BondColumns...)
	selectCols := make([]string, len(insertCols))
	for i, col := range insertCols {
		switch {
		case col == "bond_id":
			selectCols[i] = "COALESCE(bond_id, '')"
		case col == "apply_date" && cols["apply_dt"]:
			selectCols[i] = "COALESCE(apply_date, apply_dt)"
		default:
			selectCols[i] = col
		}
	}

	copySQL := fmt.Sprintf(
		"INSERT INTO bonds_new (%s) SELECT %s FROM bonds",
		strings.Join(insertCols, ", "), strings.Join(selectCols, ", "),
	)
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE bonds"); err != nil {
		return fmt.Errorf("drop old table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE bonds_new RENAME TO bonds"); err != nil {
		return fmt.Errorf("rename shadow table: %w", err)
	}
	return nil
}

// tableInfo returns the table's column set and primary-key column set.
func tableInfo(ctx context.Context, tx *sql.Tx, table string) (cols, pk map[string]bool, err error) {
	rows, err := tx.QueryContext(ctx, "SELECT name, pk FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	cols = make(map[string]bool)
	pk = make(map[string]bool)
	for rows.Next() {
		var name string
		var pkIdx int
		if err := rows.Scan(&name, &pkIdx); err != nil {
			return nil, nil, err
		}
		cols[name] = true
		if pkIdx > 0 {
			pk[name] = true
		}
	}
	return cols, pk, rows.Err()
}
