package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmliu/cb-tracker/internal/domain"
	"github.com/jmliu/cb-tracker/internal/infrastructure/feeds"
)

// --- Mocks ---

type mockBondRepo struct {
	applied    map[domain.Feed][]domain.BondRecord
	applyErr   map[domain.Feed]error
	lastUpdate string
	setCalls   int
	corrected  map[string]string
}

func newMockBondRepo() *mockBondRepo {
	return &mockBondRepo{
		applied:  make(map[domain.Feed][]domain.BondRecord),
		applyErr: make(map[domain.Feed]error),
	}
}

func (m *mockBondRepo) ApplyFeed(_ context.Context, feed domain.Feed, recs []domain.BondRecord) (*domain.StageStats, error) {
	if err := m.applyErr[feed]; err != nil {
		return nil, err
	}
	m.applied[feed] = recs
	return &domain.StageStats{Rows: len(recs)}, nil
}

func (m *mockBondRepo) ApplyCorrection(_ context.Context, stockID, bondID string, fields map[string]string) error {
	m.corrected = fields
	return nil
}

func (m *mockBondRepo) GetBond(context.Context, string, string) (*domain.BondRecord, error) {
	return nil, domain.ErrBondNotFound
}

func (m *mockBondRepo) ListBonds(context.Context) ([]domain.BondRecord, error) {
	return nil, nil
}

func (m *mockBondRepo) LastUpdate(context.Context) (string, error) {
	return m.lastUpdate, nil
}

func (m *mockBondRepo) SetLastUpdate(_ context.Context, ts string) error {
	m.lastUpdate = ts
	m.setCalls++
	return nil
}

type mockProvider struct {
	pre      []feeds.Row
	listed   []feeds.Row
	delisted []feeds.Row
	preErr   error
	listErr  error
	delErr   error
}

func (m *mockProvider) PreIssuance(context.Context) ([]feeds.Row, error) {
	return m.pre, m.preErr
}

func (m *mockProvider) Listed(context.Context) ([]feeds.Row, error) {
	return m.listed, m.listErr
}

func (m *mockProvider) Delisted(context.Context) ([]feeds.Row, error) {
	return m.delisted, m.delErr
}

func preRow(stockID, bondNm string) feeds.Row {
	return feeds.Row{ID: feeds.String(stockID), Cell: feeds.Cell{
		StockID: feeds.String(stockID),
		BondNm:  feeds.String(bondNm),
	}}
}

// --- Tests ---

func TestRun_AllStagesSucceed(t *testing.T) {
	repo := newMockBondRepo()
	provider := &mockProvider{
		pre: []feeds.Row{preRow("600000", "浦发转债")},
		listed: []feeds.Row{{Cell: feeds.Cell{
			StockID: "600519", BondID: "110100", ListDt: "2025-06-15",
		}}},
		delisted: []feeds.Row{{Cell: feeds.Cell{
			BondID: "113001", DelistDt: "2025-07-01",
		}}},
	}

	svc := NewReconcileService(repo, provider)
	fixed := time.Date(2025, 8, 31, 9, 30, 0, 0, time.Local)
	svc.now = func() time.Time { return fixed }

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, len(summary.Stages))
	assert.Equal(t, domain.FeedPreIssuance, summary.Stages[0].Feed)
	assert.Equal(t, 1, summary.Stages[0].Rows)
	assert.Equal(t, "", summary.Stages[0].Error)
	assert.NotEmpty(t, summary.RunID)

	assert.Equal(t, "2025-08-31 09:30:00", summary.LastUpdate)
	assert.Equal(t, "2025-08-31 09:30:00", repo.lastUpdate)
	assert.Equal(t, 1, len(repo.applied[domain.FeedListed]))
	assert.Equal(t, 1, len(repo.applied[domain.FeedDelisted]))
}

func TestRun_PreIssuanceFailureIsFatal(t *testing.T) {
	repo := newMockBondRepo()
	provider := &mockProvider{
		preErr:   errors.New("upstream 403"),
		listed:   []feeds.Row{{Cell: feeds.Cell{StockID: "600519", BondID: "110100"}}},
		delisted: []feeds.Row{{Cell: feeds.Cell{BondID: "113001"}}},
	}

	svc := NewReconcileService(repo, provider)
	summary, err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, summary.Stages[0].Error, "upstream 403")

	// The marker must not advance, but the other feeds still ran.
	assert.Equal(t, 0, repo.setCalls)
	assert.Equal(t, "", summary.LastUpdate)
	assert.Equal(t, 1, len(repo.applied[domain.FeedListed]))
	assert.Equal(t, 1, len(repo.applied[domain.FeedDelisted]))
}

func TestRun_SecondaryFailureIsNonFatal(t *testing.T) {
	repo := newMockBondRepo()
	repo.applyErr[domain.FeedListed] = errors.New("constraint violation")
	provider := &mockProvider{
		pre:    []feeds.Row{preRow("600000", "浦发转债")},
		listed: []feeds.Row{{Cell: feeds.Cell{StockID: "600519", BondID: "110100"}}},
	}

	svc := NewReconcileService(repo, provider)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "", summary.Stages[0].Error)
	assert.Contains(t, summary.Stages[1].Error, "constraint violation")
	assert.Equal(t, 1, repo.setCalls)
}

func TestRun_SkipsMalformedRows(t *testing.T) {
	repo := newMockBondRepo()
	provider := &mockProvider{
		pre: []feeds.Row{
			preRow("600000", "浦发转债"),
			{Cell: feeds.Cell{BondNm: "无主转债"}},
		},
	}

	svc := NewReconcileService(repo, provider)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stages[0].Rows)
	assert.Equal(t, 1, len(repo.applied[domain.FeedPreIssuance]))
}

func TestHasUpdatedToday(t *testing.T) {
	repo := newMockBondRepo()
	svc := NewReconcileService(repo, &mockProvider{})
	svc.now = func() time.Time {
		return time.Date(2025, 8, 31, 10, 0, 0, 0, time.Local)
	}
	ctx := context.Background()

	done, err := svc.HasUpdatedToday(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	repo.lastUpdate = "2025-08-30 18:00:00"
	done, err = svc.HasUpdatedToday(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	repo.lastUpdate = "2025-08-31 09:00:00"
	done, err = svc.HasUpdatedToday(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestListPending(t *testing.T) {
	provider := &mockProvider{
		pre: []feeds.Row{
			{Cell: feeds.Cell{
				StockID:    "600000",
				StockNm:    "浦发银行",
				BondNm:     "浦发转债",
				ProgressNm: "同意注册",
				Price:      "10.5",
				Apply10:    "1234.5",
			}},
			{Cell: feeds.Cell{
				StockID: "000001",
				BondNm:  "平安转债",
			}},
		},
	}

	svc := NewReconcileService(newMockBondRepo(), provider)
	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, len(pending))

	assert.Equal(t, "sh", pending[0].MarketType)
	assert.Equal(t, int64(1235), pending[0].Allocation.BaseShares)
	assert.Equal(t, "12967.50元", pending[0].Allocation.BaseCost)
	assert.Equal(t, int64(700), pending[0].Allocation.OneHandShares)

	assert.Equal(t, "sz", pending[1].MarketType)
	assert.Equal(t, "需补充股价", pending[1].Allocation.BaseCost)
}

func TestListPending_FeedError(t *testing.T) {
	provider := &mockProvider{preErr: errors.New("timeout")}
	svc := NewReconcileService(newMockBondRepo(), provider)

	_, err := svc.ListPending(context.Background())
	assert.Error(t, err)
}

func TestCorrect_DelegatesToRepo(t *testing.T) {
	repo := newMockBondRepo()
	svc := NewReconcileService(repo, &mockProvider{})

	err := svc.Correct(context.Background(), "600000", "110099", map[string]string{"board_dt": "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", repo.corrected["board_dt"])
}
