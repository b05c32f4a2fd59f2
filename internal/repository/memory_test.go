package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

func TestMemoryAnalyticUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateAnalytic(ctx, testAnalytic("dup")))
	assert.ErrorIs(t, repo.CreateAnalytic(ctx, testAnalytic("dup")), ErrAnalyticExists)
}

func TestMemoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := testAnalytic("copy")
	require.NoError(t, repo.CreateAnalytic(ctx, a))

	got, err := repo.GetAnalytic(ctx, a.ID)
	require.NoError(t, err)
	got.Query = "mutated"

	again, err := repo.GetAnalytic(ctx, a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Query, "callers must not share stored state")
}

func TestMemorySnapshotSeriesOrdering(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := testAnalytic("series")
	require.NoError(t, repo.CreateAnalytic(ctx, a))
	camp := &models.Campaign{Name: "daily_cron_2026-08-28", DateStart: time.Now()}
	require.NoError(t, repo.CreateCampaign(ctx, camp))

	for i, hits := range []int64{3, 7, 11} {
		require.NoError(t, repo.CreateSnapshot(ctx, &models.Snapshot{
			CampaignID: camp.ID, AnalyticID: a.ID,
			Date:          time.Date(2026, 8, 25+i, 0, 0, 0, 0, time.UTC),
			HitsCount:     hits,
			HitsEndpoints: i + 1,
		}))
	}

	counts, endpoints, err := repo.SnapshotSeries(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7, 11}, counts, "series keeps insertion order")
	assert.Equal(t, []float64{1, 2, 3}, endpoints)
}

func TestMemoryCascadeDelete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := testAnalytic("cascade")
	require.NoError(t, repo.CreateAnalytic(ctx, a))
	camp := &models.Campaign{Name: "daily_cron_2026-08-28", DateStart: time.Now()}
	require.NoError(t, repo.CreateCampaign(ctx, camp))

	s := &models.Snapshot{CampaignID: camp.ID, AnalyticID: a.ID, Date: time.Now()}
	require.NoError(t, repo.CreateSnapshot(ctx, s))
	require.NoError(t, repo.CreateEndpoints(ctx, []*models.Endpoint{
		{SnapshotID: s.ID, Hostname: "host-a"},
		{SnapshotID: s.ID, Hostname: "host-b"},
	}))

	deleted, err := repo.DeleteSnapshotsForAnalytic(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Empty(t, repo.Endpoints(s.ID), "endpoints follow their snapshot")

	n, err := repo.CountDistinctEndpoints(ctx, camp.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryUpdateSnapshotStatsMissingRow(t *testing.T) {
	repo := NewMemoryRepository()
	s := &models.Snapshot{ID: 404, HitsCount: 1}
	assert.NoError(t, repo.UpdateSnapshotStats(context.Background(), s))
}
