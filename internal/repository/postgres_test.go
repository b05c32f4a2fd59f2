package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// setupTestDatabase starts a PostgreSQL testcontainer and applies the schema.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("hunthawk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	return repo
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "0001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func testAnalytic(name string) *models.Analytic {
	return &models.Analytic{
		Name:                      name,
		Status:                    models.StatusDraft,
		Confidence:                2,
		Relevance:                 3,
		Connector:                 "opensearch",
		Query:                     `EventType = "Process Creation"`,
		RunDaily:                  true,
		AnomalyThresholdCount:     2,
		AnomalyThresholdEndpoints: 2,
	}
}

func TestAnalyticCRUD(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	a := testAnalytic("susp-powershell")
	require.NoError(t, repo.CreateAnalytic(ctx, a))
	assert.NotZero(t, a.ID)

	dup := testAnalytic("susp-powershell")
	assert.ErrorIs(t, repo.CreateAnalytic(ctx, dup), ErrAnalyticExists)

	got, err := repo.GetAnalytic(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "susp-powershell", got.Name)
	assert.Equal(t, 3, got.Relevance)

	byName, err := repo.GetAnalyticByName(ctx, "susp-powershell")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	got.Query = `EventType = "DNS Request"`
	got.MaxHostsCount = 2
	now := time.Now().UTC().Truncate(time.Second)
	got.QueryError = true
	got.QueryErrorMessage = "timeout"
	got.QueryErrorDate = &now
	require.NoError(t, repo.UpdateAnalytic(ctx, got))

	updated, err := repo.GetAnalytic(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, `EventType = "DNS Request"`, updated.Query)
	assert.Equal(t, 2, updated.MaxHostsCount)
	assert.True(t, updated.QueryError)
	require.NotNil(t, updated.QueryErrorDate)
	assert.WithinDuration(t, now, *updated.QueryErrorDate, time.Second)

	require.NoError(t, repo.DeleteAnalytic(ctx, a.ID))
	_, err = repo.GetAnalytic(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAnalyticNotFound)
	assert.ErrorIs(t, repo.DeleteAnalytic(ctx, a.ID), ErrAnalyticNotFound)
}

func TestEligibilityQueries(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	daily := testAnalytic("daily")
	require.NoError(t, repo.CreateAnalytic(ctx, daily))

	disabled := testAnalytic("disabled")
	disabled.RunDaily = false
	require.NoError(t, repo.CreateAnalytic(ctx, disabled))

	archived := testAnalytic("archived")
	archived.Status = models.StatusArchived
	archived.RunDaily = false
	require.NoError(t, repo.CreateAnalytic(ctx, archived))

	eligible, err := repo.ListEligibleAnalytics(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "daily", eligible[0].Name)

	nEligible, err := repo.CountEligibleAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nEligible)

	nActive, err := repo.CountActiveAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nActive, "archived analytics are not active")
}

func TestReviewQueue(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := testAnalytic("due")
	due.Status = models.StatusPublished
	past := now.Add(-24 * time.Hour)
	due.NextReviewDate = &past
	require.NoError(t, repo.CreateAnalytic(ctx, due))

	fresh := testAnalytic("fresh")
	fresh.Status = models.StatusPublished
	future := now.Add(24 * time.Hour)
	fresh.NextReviewDate = &future
	require.NoError(t, repo.CreateAnalytic(ctx, fresh))

	locked := testAnalytic("locked")
	locked.Status = models.StatusPublished
	locked.RunDailyLock = true
	locked.NextReviewDate = &past
	require.NoError(t, repo.CreateAnalytic(ctx, locked))

	dueList, err := repo.ListAnalyticsDueForReview(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueList, 1)
	assert.Equal(t, "due", dueList[0].Name)
}

func TestCampaignAndSnapshotLifecycle(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	a := testAnalytic("lifecycle")
	require.NoError(t, repo.CreateAnalytic(ctx, a))

	camp := &models.Campaign{
		Name:      "daily_cron_2026-08-28",
		DateStart: time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateCampaign(ctx, camp))
	require.NotZero(t, camp.ID)

	snapDate := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	for i, hits := range []int64{10, 12, 50} {
		s := &models.Snapshot{
			CampaignID:    camp.ID,
			AnalyticID:    a.ID,
			Date:          snapDate.AddDate(0, 0, i),
			HitsCount:     hits,
			HitsEndpoints: 1,
		}
		require.NoError(t, repo.CreateSnapshot(ctx, s))
		require.NotZero(t, s.ID)

		require.NoError(t, repo.CreateEndpoints(ctx, []*models.Endpoint{
			{SnapshotID: s.ID, Hostname: "host-a", Site: "hq"},
			{SnapshotID: s.ID, Hostname: fmt.Sprintf("host-%d", i)},
		}))

		s.ZscoreCount = 1.5
		s.AnomalyAlertCount = hits == 50
		require.NoError(t, repo.UpdateSnapshotStats(ctx, s))
	}

	counts, endpoints, err := repo.SnapshotSeries(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 50}, counts)
	assert.Equal(t, []float64{1, 1, 1}, endpoints)

	n, err := repo.CountDistinctEndpoints(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "host-a is counted once")

	end := time.Date(2026, 8, 28, 2, 30, 0, 0, time.UTC)
	camp.DateEnd = &end
	camp.NbQueries = 1
	camp.NbAnalytics = 1
	camp.NbEndpoints = n
	require.NoError(t, repo.CloseCampaign(ctx, camp))

	// Deleting snapshots cascades to endpoints.
	deleted, err := repo.DeleteSnapshotsForAnalytic(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	n, err = repo.CountDistinctEndpoints(ctx, camp.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateSnapshotStatsMissingRow(t *testing.T) {
	repo := setupTestDatabase(t)

	s := &models.Snapshot{ID: 9999, HitsCount: 5}
	assert.NoError(t, repo.UpdateSnapshotStats(context.Background(), s))
}

func TestRetentionPurge(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	a := testAnalytic("purge")
	require.NoError(t, repo.CreateAnalytic(ctx, a))

	old := &models.Campaign{Name: "daily_cron_2026-01-01", DateStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	recent := &models.Campaign{Name: "daily_cron_2026-08-27", DateStart: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateCampaign(ctx, old))
	require.NoError(t, repo.CreateCampaign(ctx, recent))

	require.NoError(t, repo.CreateSnapshot(ctx, &models.Snapshot{
		CampaignID: old.ID, AnalyticID: a.ID,
		Date: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.CreateSnapshot(ctx, &models.Snapshot{
		CampaignID: recent.ID, AnalyticID: a.ID,
		Date: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
	}))

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	nSnap, err := repo.DeleteSnapshotsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nSnap)

	nCamp, err := repo.DeleteCampaignsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nCamp)

	counts, _, err := repo.SnapshotSeries(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}
