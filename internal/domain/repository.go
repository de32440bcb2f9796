package domain

import (
	"context"
	"errors"
)

// ErrUnknownColumn is returned when a manual correction names a column that is
// not part of the canonical set.
var ErrUnknownColumn = errors.New("unknown column")

// ErrBondNotFound is returned when no row matches the requested composite key.
var ErrBondNotFound = errors.New("bond not found")

// PromotionOutcome reports what the key-promotion step did for one record.
type PromotionOutcome int

const (
	// PromotionNone: the record carried no new bond id, or no stale
	// empty-key row existed.
	PromotionNone PromotionOutcome = iota
	// PromotionRenamed: the empty-key row was rewritten in place to the full
	// composite key.
	PromotionRenamed
	// PromotionMerged: a row already existed at the full key; the stale
	// empty-key row's fields were merged into it and the stale row deleted.
	PromotionMerged
	// PromotionAmbiguous: rows exist at both keys but their milestone dates
	// disagree, so neither was touched.
	PromotionAmbiguous
)

// StageStats summarizes one feed's pass over the store.
type StageStats struct {
	Rows      int `json:"rows"`
	Promoted  int `json:"promoted"`
	Ambiguous int `json:"ambiguous"`
}

// BondRepository is the persistence contract for reconciled bond records.
// All writes of one ApplyFeed call happen in a single transaction.
type BondRepository interface {
	// ApplyFeed merges a batch of normalized records from one feed into the
	// store under the feed's merge policy, promoting incomplete keys where
	// the feed supplies a previously-unknown bond id.
	ApplyFeed(ctx context.Context, feed Feed, recs []BondRecord) (*StageStats, error)
	// ApplyCorrection overwrites the given columns of one row directly,
	// bypassing the merge policy. Manual escape hatch.
	ApplyCorrection(ctx context.Context, stockID, bondID string, fields map[string]string) error
	GetBond(ctx context.Context, stockID, bondID string) (*BondRecord, error)
	ListBonds(ctx context.Context) ([]BondRecord, error)
	// LastUpdate returns the timestamp of the last successful reconciliation
	// run, or "" when no run has completed yet.
	LastUpdate(ctx context.Context) (string, error)
	SetLastUpdate(ctx context.Context, ts string) error
}
