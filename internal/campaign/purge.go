package campaign

import (
	"context"
	"fmt"

	"github.com/hunthawk-systems/hunthawk/internal/metrics"
)

// Purge removes campaigns and snapshots older than the retention window.
// It only touches data outside any live detection window, so it is safe to
// run while a campaign is in flight.
func (e *Engine) Purge(ctx context.Context) error {
	cutoff := midnight(e.now()).AddDate(0, 0, -e.cfg.DataRetentionDays)

	campaigns, err := e.repo.DeleteCampaignsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge campaigns: %w", err)
	}
	metrics.PurgeDeleted.WithLabelValues("campaigns").Add(float64(campaigns))

	snapshots, err := e.repo.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge snapshots: %w", err)
	}
	metrics.PurgeDeleted.WithLabelValues("snapshots").Add(float64(snapshots))

	if campaigns > 0 || snapshots > 0 {
		e.log.InfoContext(ctx, "retention purge completed",
			"cutoff", cutoff.Format("2006-01-02"), "campaigns", campaigns, "snapshots", snapshots)
	}
	return nil
}
