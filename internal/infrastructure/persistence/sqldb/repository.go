package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmliu/cb-tracker/internal/domain"
)

// Repository implements domain.BondRepository. All SQL is written with $n
// placeholders and rebound per dialect; the merge semantics come from the
// declared policy table, not from per-statement conditionals.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// milestoneColumns are compared during key promotion: agreement between an
// empty-key row and a full-key row is the signal that both sightings are the
// same instrument.
var milestoneColumns = []string{"board_dt", "shareholder_dt", "accept_dt", "committee_dt", "register_dt"}

// promotionCarryColumns are copied from a stale empty-key row into the
// confirmed full-key row (only where the target is still null) before the
// stale row is deleted.
var promotionCarryColumns = []string{
	"stock_nm", "amount", "rating_cd", "progress_dt", "progress_nm",
	"board_dt", "shareholder_dt", "accept_dt", "committee_dt", "register_dt",
	"apply_date", "apply_cd", "list_date",
}

// ApplyFeed merges one feed's normalized batch in a single transaction.
// Records carrying a bond id go through key promotion first, then through the
// policy-driven upsert; the delisted feed only enriches existing rows by bond
// id. A failed batch rolls back as a whole and counts as a stage failure.
func (r *Repository) ApplyFeed(ctx context.Context, feed domain.Feed, recs []domain.BondRecord) (*domain.StageStats, error) {
	stats := &domain.StageStats{}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range recs {
			rec := &recs[i]

			if feed == domain.FeedDelisted {
				if err := r.enrichByBondID(ctx, tx, feed, rec); err != nil {
					return fmt.Errorf("enrich bond %s: %w", rec.BondID, err)
				}
				stats.Rows++
				continue
			}

			if rec.BondID != "" {
				outcome, err := r.promote(ctx, tx, rec)
				if err != nil {
					return fmt.Errorf("promote bond %s/%s: %w", rec.StockID, rec.BondID, err)
				}
				switch outcome {
				case domain.PromotionRenamed, domain.PromotionMerged:
					stats.Promoted++
				case domain.PromotionAmbiguous:
					stats.Ambiguous++
					slog.Warn("promotion ambiguous, keeping both rows",
						"stock_id", rec.StockID, "bond_id", rec.BondID)
				}
			}

			if err := r.upsert(ctx, tx, feed, rec); err != nil {
				return fmt.Errorf("upsert bond %s/%s: %w", rec.StockID, rec.BondID, err)
			}
			stats.Rows++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// upsert applies the feed's merge policy as a single
// INSERT ... ON CONFLICT DO UPDATE statement.
func (r *Repository) upsert(ctx context.Context, tx *sql.Tx, feed domain.Feed, rec *domain.BondRecord) error {
	cols := domain.PolicyColumns(feed)

	args := make([]any, 0, len(cols)+2)
	args = append(args, rec.StockID, rec.BondID)
	for _, col := range cols {
		args = append(args, rec.ColumnValue(col))
	}

	_, err := tx.ExecContext(ctx, r.rebind(upsertSQL(feed)), args...)
	return err
}

// upsertSQL renders the feed's policy table into an upsert statement.
func upsertSQL(feed domain.Feed) string {
	pol := domain.MergePolicy[feed]
	cols := domain.PolicyColumns(feed)

	insertCols := append([]string{"stock_id", "bond_id"}, cols...)
	placeholders := make([]string, len(insertCols))
	for i := range insertCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		switch pol[col] {
		case domain.Overwrite:
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		case domain.FillFromIncoming:
			sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, %s)", col, col, col))
		case domain.FillIfAbsent:
			sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, excluded.%s)", col, col, col))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO bonds (%s) VALUES (%s) ON CONFLICT (stock_id, bond_id) DO UPDATE SET %s",
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)
}

// promote resolves the case where a feed supplies a bond id for a stock that
// so far only has a row keyed (stock_id, ''). When the full key is free the
// stale row is rewritten onto it in place, keeping its fields for the
// following upsert to merge into. When a full-key row already exists, the two
// rows are merged and the stale one deleted only if their milestone dates
// agree field for field; disagreement leaves both rows untouched.
func (r *Repository) promote(ctx context.Context, tx *sql.Tx, rec *domain.BondRecord) (domain.PromotionOutcome, error) {
	stale, err := r.fetchBond(ctx, tx, rec.StockID, "")
	if err != nil {
		if errors.Is(err, domain.ErrBondNotFound) {
			return domain.PromotionNone, nil
		}
		return domain.PromotionNone, err
	}

	target, err := r.fetchBond(ctx, tx, rec.StockID, rec.BondID)
	if err != nil {
		if !errors.Is(err, domain.ErrBondNotFound) {
			return domain.PromotionNone, err
		}
		// Full key free: take it over in place.
		_, err := tx.ExecContext(ctx,
			r.rebind("UPDATE bonds SET bond_id = $1 WHERE stock_id = $2 AND bond_id = ''"),
			rec.BondID, rec.StockID)
		if err != nil {
			return domain.PromotionNone, err
		}
		return domain.PromotionRenamed, nil
	}

	if !milestonesMatch(stale, target) {
		return domain.PromotionAmbiguous, nil
	}

	// Confirmed duplicate: carry the stale row's values into null fields of
	// the target, then drop the stale row.
	sets := make([]string, len(promotionCarryColumns))
	args := make([]any, 0, len(promotionCarryColumns)+2)
	for i, col := range promotionCarryColumns {
		sets[i] = fmt.Sprintf("%s = COALESCE(%s, $%d)", col, col, i+1)
		args = append(args, stale.ColumnValue(col))
	}
	args = append(args, rec.StockID, rec.BondID)

	mergeSQL := fmt.Sprintf("UPDATE bonds SET %s WHERE stock_id = $%d AND bond_id = $%d",
		strings.Join(sets, ", "), len(promotionCarryColumns)+1, len(promotionCarryColumns)+2)
	if _, err := tx.ExecContext(ctx, r.rebind(mergeSQL), args...); err != nil {
		return domain.PromotionNone, err
	}

	if _, err := tx.ExecContext(ctx,
		r.rebind("DELETE FROM bonds WHERE stock_id = $1 AND bond_id = ''"),
		rec.StockID); err != nil {
		return domain.PromotionNone, err
	}
	return domain.PromotionMerged, nil
}

// milestonesMatch compares the five derived dates, treating NULL and ''
// as the same absent value.
func milestonesMatch(a, b *domain.BondRecord) bool {
	for _, col := range milestoneColumns {
		if strOrEmpty(a.ColumnValue(col)) != strOrEmpty(b.ColumnValue(col)) {
			return false
		}
	}
	return true
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// enrichByBondID applies a delisted-feed record to whatever row carries the
// bond id, under the feed's fill-if-absent policy. Unknown bond ids are a
// no-op: the delisted feed never creates rows.
func (r *Repository) enrichByBondID(ctx context.Context, tx *sql.Tx, feed domain.Feed, rec *domain.BondRecord) error {
	cols := domain.PolicyColumns(feed)
	pol := domain.MergePolicy[feed]

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if pol[col] == domain.FillFromIncoming {
			sets[i] = fmt.Sprintf("%s = COALESCE($%d, %s)", col, i+1, col)
		} else {
			sets[i] = fmt.Sprintf("%s = COALESCE(%s, $%d)", col, col, i+1)
		}
		args = append(args, rec.ColumnValue(col))
	}
	args = append(args, rec.BondID)

	query := fmt.Sprintf("UPDATE bonds SET %s WHERE bond_id = $%d",
		strings.Join(sets, ", "), len(cols)+1)
	_, err := tx.ExecContext(ctx, r.rebind(query), args...)
	return err
}

// ApplyCorrection directly overwrites the given columns of one row. This is
// the manual escape hatch and deliberately bypasses the merge policy; column
// names are still validated against the canonical set.
func (r *Repository) ApplyCorrection(ctx context.Context, stockID, bondID string, fields map[string]string) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to correct")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !domain.IsBondColumn(col) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownColumn, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}
	args = append(args, stockID, bondID)

	query := fmt.Sprintf("UPDATE bonds SET %s WHERE stock_id = $%d AND bond_id = $%d",
		strings.Join(sets, ", "), len(cols)+1, len(cols)+2)

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(query), args...)
		if err != nil {
			return fmt.Errorf("apply correction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s/%s", domain.ErrBondNotFound, stockID, bondID)
		}
		return nil
	})
}

func bondSelectColumns() string {
	return "stock_id, bond_id, " + strings.Join(domain.BondColumns, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBond(row rowScanner) (domain.BondRecord, error) {
	var rec domain.BondRecord
	vals := make([]sql.NullString, len(domain.BondColumns))

	dest := make([]any, 0, len(vals)+2)
	dest = append(dest, &rec.StockID, &rec.BondID)
	for i := range vals {
		dest = append(dest, &vals[i])
	}

	if err := row.Scan(dest...); err != nil {
		return rec, err
	}
	for i, col := range domain.BondColumns {
		if vals[i].Valid {
			v := vals[i].String
			rec.SetColumnValue(col, &v)
		}
	}
	return rec, nil
}

func (r *Repository) fetchBond(ctx context.Context, tx *sql.Tx, stockID, bondID string) (*domain.BondRecord, error) {
	query := r.rebind(fmt.Sprintf(
		"SELECT %s FROM bonds WHERE stock_id = $1 AND bond_id = $2", bondSelectColumns()))

	rec, err := scanBond(tx.QueryRowContext(ctx, query, stockID, bondID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrBondNotFound, stockID, bondID)
		}
		return nil, fmt.Errorf("querying bond: %w", err)
	}
	return &rec, nil
}

func (r *Repository) GetBond(ctx context.Context, stockID, bondID string) (*domain.BondRecord, error) {
	query := r.rebind(fmt.Sprintf(
		"SELECT %s FROM bonds WHERE stock_id = $1 AND bond_id = $2", bondSelectColumns()))

	rec, err := scanBond(r.db.QueryRowContext(ctx, query, stockID, bondID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrBondNotFound, stockID, bondID)
		}
		return nil, fmt.Errorf("querying bond: %w", err)
	}
	return &rec, nil
}

func (r *Repository) ListBonds(ctx context.Context) ([]domain.BondRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM bonds ORDER BY stock_id, bond_id", bondSelectColumns())

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying bonds: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}()

	var recs []domain.BondRecord
	for rows.Next() {
		rec, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LastUpdate returns the stored last-reconciliation timestamp, or "" when no
// run has completed yet.
func (r *Repository) LastUpdate(ctx context.Context) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT value FROM meta WHERE key = $1"), "last_update").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying last update: %w", err)
	}
	return value.String, nil
}

func (r *Repository) SetLastUpdate(ctx context.Context, ts string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.rebind(
			"INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value"),
			"last_update", ts)
		return err
	})
}

// rebind converts $n placeholders to the sqlite driver's positional form.
// Replacement runs high to low so $1 never eats the prefix of $10.
func (r *Repository) rebind(query string) string {
	if r.db.Dialect.Name() == "sqlite" {
		for i := 40; i >= 1; i-- {
			query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
		}
	}
	return query
}
