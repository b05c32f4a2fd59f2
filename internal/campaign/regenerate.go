package campaign

import (
	"context"
	"fmt"

	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/metrics"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// Regenerate rebuilds an analytic's whole snapshot history over the retention
// window, oldest day first. Existing snapshots are deleted up front so the
// rebuilt series never mixes with stale observations. If the analytic reaches
// the max-hosts breach ceiling mid-way the remaining days are skipped; they
// would be deleted again immediately.
func (e *Engine) Regenerate(ctx context.Context, analyticID int64, taskID string) error {
	a, err := e.repo.GetAnalytic(ctx, analyticID)
	if err != nil {
		return err
	}

	a.QueryError = false
	a.QueryErrorMessage = ""
	a.QueryErrorDate = nil
	a.MaxHostsCount = 0
	if err := e.repo.UpdateAnalytic(ctx, a); err != nil {
		return fmt.Errorf("failed to reset analytic state: %w", err)
	}

	if _, err := e.repo.DeleteSnapshotsForAnalytic(ctx, a.ID); err != nil {
		return fmt.Errorf("failed to delete snapshot history: %w", err)
	}

	camp := &models.Campaign{
		Name:        models.RegenCampaignName(a.Name, e.now()),
		DateStart:   e.now().UTC(),
		NbQueries:   1,
		NbAnalytics: 1,
	}
	if err := e.repo.CreateCampaign(ctx, camp); err != nil {
		return fmt.Errorf("failed to create regeneration campaign: %w", err)
	}
	e.publisher.CampaignStarted(ctx, events.CampaignEvent{
		Name: camp.Name,
		Date: midnight(e.now()),
		At:   e.now().UTC(),
	})
	e.log.InfoContext(ctx, "stats regeneration started", "analytic", a.Name, "campaign", camp.Name, "days", e.cfg.DataRetentionDays)

	retention := e.cfg.DataRetentionDays
	today := midnight(e.now())
	started := e.now()
	processed := 0
	var totalHits int64
	for offset := retention - 1; offset >= 0; offset-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		date := today.AddDate(0, 0, -offset)
		detection := date.AddDate(0, 0, -1)
		hits, err := e.runAnalytic(ctx, camp, a, detection, detection, date)
		if err != nil {
			metrics.CampaignsTotal.WithLabelValues("regen", "failed").Inc()
			e.publisher.CampaignFailed(ctx, events.CampaignEvent{
				Name:  camp.Name,
				Error: err.Error(),
				At:    e.now().UTC(),
			})
			// The aborted campaign is still closed so it never lingers as
			// an open run with no end timestamp.
			if cerr := e.closeAdHocCampaign(ctx, camp); cerr != nil {
				e.log.ErrorContext(ctx, "failed to close aborted campaign", "campaign", camp.Name, "error", cerr)
			}
			return fmt.Errorf("regeneration of %s aborted: %w", a.Name, err)
		}
		totalHits += hits
		processed++
		e.reportProgress(ctx, taskID, float64(processed)/float64(retention)*100)

		if e.guard.BreachCeiling(a) {
			e.log.WarnContext(ctx, "regeneration stopped at max-hosts ceiling",
				"analytic", a.Name, "days_processed", processed)
			break
		}
	}

	if err := e.closeAdHocCampaign(ctx, camp); err != nil {
		return err
	}
	metrics.CampaignsTotal.WithLabelValues("regen", "completed").Inc()
	metrics.CampaignDuration.Observe(e.now().Sub(started).Seconds())
	e.publisher.CampaignCompleted(ctx, events.CampaignEvent{
		Name:        camp.Name,
		NbQueries:   camp.NbQueries,
		NbHits:      totalHits,
		NbEndpoints: camp.NbEndpoints,
		At:          e.now().UTC(),
	})
	e.log.InfoContext(ctx, "stats regeneration completed", "analytic", a.Name, "days_processed", processed)
	return nil
}

// closeAdHocCampaign closes a single-analytic campaign. The query counters
// were fixed at creation, only the endpoint count depends on the run.
func (e *Engine) closeAdHocCampaign(ctx context.Context, camp *models.Campaign) error {
	nbEndpoints, err := e.repo.CountDistinctEndpoints(ctx, camp.ID)
	if err != nil {
		return fmt.Errorf("failed to count campaign endpoints: %w", err)
	}
	end := e.now().UTC()
	camp.DateEnd = &end
	camp.NbEndpoints = nbEndpoints
	if err := e.repo.CloseCampaign(ctx, camp); err != nil {
		return fmt.Errorf("failed to close campaign: %w", err)
	}
	return nil
}
