// Package repository persists analytics, campaigns, snapshots and endpoints.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

var (
	ErrAnalyticNotFound = errors.New("analytic not found")
	ErrAnalyticExists   = errors.New("analytic already exists")
	ErrCampaignNotFound = errors.New("campaign not found")
)

// Repository is the persistence contract of the hunt engine. Snapshots and
// endpoints are append-only during a run except for the guard-triggered bulk
// delete and the full-history delete at regeneration start, both scoped to a
// single analytic.
type Repository interface {
	CreateAnalytic(ctx context.Context, a *models.Analytic) error
	GetAnalytic(ctx context.Context, id int64) (*models.Analytic, error)
	GetAnalyticByName(ctx context.Context, name string) (*models.Analytic, error)
	UpdateAnalytic(ctx context.Context, a *models.Analytic) error
	DeleteAnalytic(ctx context.Context, id int64) error

	// ListEligibleAnalytics returns analytics with run_daily set and not
	// archived, the daily campaign's target set.
	ListEligibleAnalytics(ctx context.Context) ([]*models.Analytic, error)
	CountEligibleAnalytics(ctx context.Context) (int, error)
	// CountActiveAnalytics counts all non-archived analytics.
	CountActiveAnalytics(ctx context.Context) (int, error)
	// ListAnalyticsDueForReview returns published, unlocked analytics whose
	// next review date has passed.
	ListAnalyticsDueForReview(ctx context.Context, asOf time.Time) ([]*models.Analytic, error)

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	CloseCampaign(ctx context.Context, c *models.Campaign) error
	// DeleteCampaignsBefore removes campaigns started before the cutoff;
	// snapshots and endpoints cascade.
	DeleteCampaignsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateSnapshot(ctx context.Context, s *models.Snapshot) error
	UpdateSnapshotStats(ctx context.Context, s *models.Snapshot) error
	// SnapshotSeries returns the hits_count and hits_endpoints series for an
	// analytic in insertion order, the newest observation last.
	SnapshotSeries(ctx context.Context, analyticID int64) (counts, endpoints []float64, err error)
	DeleteSnapshotsForAnalytic(ctx context.Context, analyticID int64) (int64, error)
	// DeleteSnapshotsBefore removes snapshots whose detection date is before
	// the cutoff, regardless of owning campaign.
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateEndpoints(ctx context.Context, endpoints []*models.Endpoint) error
	CountDistinctEndpoints(ctx context.Context, campaignID int64) (int, error)

	Close()
}
