package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmliu/cb-tracker/internal/domain"
	"github.com/jmliu/cb-tracker/internal/infrastructure/feeds"
)

// timestampLayout is the stored form of the last-update marker.
const timestampLayout = "2006-01-02 15:04:05"

// StageResult is the outcome of one feed's pass within a run.
type StageResult struct {
	Feed      domain.Feed `json:"feed"`
	Rows      int         `json:"rows"`
	Promoted  int         `json:"promoted"`
	Ambiguous int         `json:"ambiguous"`
	Error     string      `json:"error,omitempty"`
}

// RunSummary reports one reconciliation run across all three feeds.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Stages     []StageResult `json:"stages"`
	LastUpdate string        `json:"last_update,omitempty"`
}

// PendingBond is the live view of one bond awaiting subscription, enriched
// with the placement cost estimate.
type PendingBond struct {
	StockID    string            `json:"stock_id"`
	StockName  string            `json:"stock_nm,omitempty"`
	BondName   string            `json:"bond_nm,omitempty"`
	MarketType string            `json:"market_type"`
	ProgressDt string            `json:"progress_dt,omitempty"`
	ProgressNm string            `json:"progress_nm,omitempty"`
	ApplyDate  string            `json:"apply_date,omitempty"`
	Allocation domain.Allocation `json:"allocation"`
}

// ReconcileService orchestrates the feed fetches and their merge into the
// store. Runs are serialized: a second Run blocks until the first finishes.
type ReconcileService struct {
	repo     domain.BondRepository
	provider feeds.Provider
	mu       sync.Mutex
	now      func() time.Time
}

func NewReconcileService(repo domain.BondRepository, provider feeds.Provider) *ReconcileService {
	return &ReconcileService{
		repo:     repo,
		provider: provider,
		now:      time.Now,
	}
}

// Run executes one full reconciliation: pre-issuance, listed, delisted, in
// that order. Each stage fetches, normalizes and merges in isolation, so a
// failing feed never blocks the others. The last-update marker is advanced
// only when the pre-issuance stage succeeded, and a failed pre-issuance stage
// also surfaces as the run's error; the other stages only degrade the
// summary.
func (s *ReconcileService) Run(ctx context.Context) (*RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	slog.Info("Reconciliation run started", "run_id", summary.RunID)

	pre := s.runStage(ctx, domain.FeedPreIssuance, s.provider.PreIssuance, feeds.NormalizePreIssuance)
	summary.Stages = append(summary.Stages, pre)

	summary.Stages = append(summary.Stages,
		s.runStage(ctx, domain.FeedListed, s.provider.Listed, feeds.NormalizeListed))
	summary.Stages = append(summary.Stages,
		s.runStage(ctx, domain.FeedDelisted, s.provider.Delisted, feeds.NormalizeDelisted))

	if pre.Error != "" {
		slog.Error("Reconciliation run failed", "run_id", summary.RunID, "error", pre.Error)
		return summary, fmt.Errorf("pre-issuance stage: %s", pre.Error)
	}

	ts := s.now().Format(timestampLayout)
	if err := s.repo.SetLastUpdate(ctx, ts); err != nil {
		return summary, fmt.Errorf("recording last update: %w", err)
	}
	summary.LastUpdate = ts

	slog.Info("Reconciliation run finished", "run_id", summary.RunID, "last_update", ts)
	return summary, nil
}

func (s *ReconcileService) runStage(ctx context.Context, feed domain.Feed,
	fetch func(ctx context.Context) ([]feeds.Row, error),
	normalize func(feeds.Row) (domain.BondRecord, bool),
) StageResult {
	result := StageResult{Feed: feed}

	rows, err := fetch(ctx)
	if err != nil {
		slog.Error("Feed fetch failed", "feed", feed, "error", err)
		result.Error = err.Error()
		return result
	}

	recs := make([]domain.BondRecord, 0, len(rows))
	for _, row := range rows {
		rec, ok := normalize(row)
		if !ok {
			slog.Warn("Skipping malformed feed row", "feed", feed, "id", string(row.ID))
			continue
		}
		recs = append(recs, rec)
	}

	stats, err := s.repo.ApplyFeed(ctx, feed, recs)
	if err != nil {
		slog.Error("Feed merge failed", "feed", feed, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Rows = stats.Rows
	result.Promoted = stats.Promoted
	result.Ambiguous = stats.Ambiguous
	slog.Info("Feed merged", "feed", feed,
		"rows", stats.Rows, "promoted", stats.Promoted, "ambiguous", stats.Ambiguous)
	return result
}

// HasUpdatedToday reports whether a successful run already completed on the
// current calendar day.
func (s *ReconcileService) HasUpdatedToday(ctx context.Context) (bool, error) {
	ts, err := s.repo.LastUpdate(ctx)
	if err != nil {
		return false, err
	}
	today := s.now().Format("2006-01-02")
	return strings.HasPrefix(ts, today), nil
}

// LastUpdate exposes the stored last-run timestamp, "" when none.
func (s *ReconcileService) LastUpdate(ctx context.Context) (string, error) {
	return s.repo.LastUpdate(ctx)
}

// Correct overwrites fields of one stored record, bypassing the merge policy.
func (s *ReconcileService) Correct(ctx context.Context, stockID, bondID string, fields map[string]string) error {
	if err := s.repo.ApplyCorrection(ctx, stockID, bondID, fields); err != nil {
		return err
	}
	slog.Info("Manual correction applied", "stock_id", stockID, "bond_id", bondID, "fields", len(fields))
	return nil
}

// ListBonds returns every reconciled record.
func (s *ReconcileService) ListBonds(ctx context.Context) ([]domain.BondRecord, error) {
	return s.repo.ListBonds(ctx)
}

// ListPending fetches the live pre-issuance feed and returns the bonds still
// in the pipeline with their placement cost estimates. This reads the feed
// directly and does not touch the store.
func (s *ReconcileService) ListPending(ctx context.Context) ([]PendingBond, error) {
	rows, err := s.provider.PreIssuance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching pre-issuance feed: %w", err)
	}

	pending := make([]PendingBond, 0, len(rows))
	for _, row := range rows {
		rec, ok := feeds.NormalizePreIssuance(row)
		if !ok {
			continue
		}
		price, apply10 := feeds.AllocationInput(row)

		pending = append(pending, PendingBond{
			StockID:    rec.StockID,
			StockName:  strOrEmpty(rec.StockName),
			BondName:   strOrEmpty(rec.BondName),
			MarketType: marketType(rec.StockID),
			ProgressDt: strOrEmpty(rec.ProgressDt),
			ProgressNm: strOrEmpty(rec.ProgressNm),
			ApplyDate:  strOrEmpty(rec.ApplyDate),
			Allocation: domain.CalcAllocation(apply10, price),
		})
	}
	return pending, nil
}

// marketType distinguishes the Shanghai board ("sh", codes starting with 6)
// from the Shenzhen board ("sz").
func marketType(stockID string) string {
	if strings.HasPrefix(stockID, "6") {
		return "sh"
	}
	return "sz"
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
