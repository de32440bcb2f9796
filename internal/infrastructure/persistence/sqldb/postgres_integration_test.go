package sqldb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jmliu/cb-tracker/internal/domain"
)

func setupPostgresRepo(t *testing.T) *Repository {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	rawDB, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}
	t.Cleanup(func() {
		_ = rawDB.Close()
	})

	db := New(rawDB, &PostgresDialect{})
	if err := db.Dialect.Migrate(ctx, rawDB); err != nil {
		t.Fatalf("failed to migrate: %s", err)
	}

	return NewRepository(db)
}

// The merge and promotion paths run the same statements on both backends, so
// one end-to-end pass over a real postgres is enough to catch placeholder and
// upsert-syntax drift.
func TestPostgres_FeedLifecycle(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()

	pre := domain.BondRecord{
		StockID:    "600000",
		BondName:   str("浦发转债"),
		RatingCd:   str("AAA"),
		ProgressNm: str("董事会预案"),
		BoardDt:    str("2025-01-10"),
	}
	stats, err := repo.ApplyFeed(ctx, domain.FeedPreIssuance, []domain.BondRecord{pre})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rows)

	withID := domain.BondRecord{
		StockID:    "600000",
		BondID:     "110099",
		BondName:   str("浦发转债"),
		ProgressNm: str("同意注册"),
	}
	stats, err = repo.ApplyFeed(ctx, domain.FeedPreIssuance, []domain.BondRecord{withID})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Promoted)

	listed := domain.BondRecord{
		StockID:  "600000",
		BondID:   "110099",
		ListDate: str("2025-06-15"),
	}
	_, err = repo.ApplyFeed(ctx, domain.FeedListed, []domain.BondRecord{listed})
	require.NoError(t, err)

	delisted := domain.BondRecord{
		BondID:   "110099",
		DelistDt: str("2031-06-15"),
	}
	_, err = repo.ApplyFeed(ctx, domain.FeedDelisted, []domain.BondRecord{delisted})
	require.NoError(t, err)

	got, err := repo.GetBond(ctx, "600000", "110099")
	require.NoError(t, err)
	assert.Equal(t, "同意注册", *got.ProgressNm)
	assert.Equal(t, "AAA", *got.RatingCd)
	assert.Equal(t, "2025-06-15", *got.ListDate)
	assert.Equal(t, "2031-06-15", *got.DelistDt)

	require.NoError(t, repo.SetLastUpdate(ctx, "2025-08-31 09:00:00"))
	ts, err := repo.LastUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-31 09:00:00", ts)
}
