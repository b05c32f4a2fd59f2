// Package campaign runs the recurring hunt campaigns: it executes every
// eligible analytic against its connector, persists per-day snapshots, scores
// them for anomalies and enforces the max-hosts guard.
package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/anomaly"
	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/connector"
	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/guard"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/metrics"
	"github.com/hunthawk-systems/hunthawk/internal/models"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
	"github.com/hunthawk-systems/hunthawk/internal/tasks"
)

// Engine drives campaign execution and stats regeneration.
type Engine struct {
	repo      repository.Repository
	registry  *connector.Registry
	guard     *guard.Guard
	publisher events.Publisher
	tracker   tasks.Tracker
	cfg       config.CampaignConfig
	log       *logging.Logger

	// now is swapped in tests.
	now func() time.Time
}

func NewEngine(
	repo repository.Repository,
	registry *connector.Registry,
	g *guard.Guard,
	publisher events.Publisher,
	tracker tasks.Tracker,
	cfg config.CampaignConfig,
	log *logging.Logger,
) *Engine {
	return &Engine{
		repo:      repo,
		registry:  registry,
		guard:     g,
		publisher: publisher,
		tracker:   tracker,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// midnight truncates t to the start of its UTC day.
func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Run executes the daily campaign for the given nominal date. The detection
// window is the full previous day; the snapshot date is the detection day.
// A hard connector failure aborts the remaining analytics: a connector outage
// must not produce a campaign of silently partial data.
func (e *Engine) Run(ctx context.Context, campaignDate time.Time, taskID string) error {
	date := midnight(campaignDate)
	from := date.AddDate(0, 0, -1)
	to := date
	detectionDate := from

	camp := &models.Campaign{
		Name:      models.DailyCampaignName(date),
		DateStart: e.now().UTC(),
	}
	if err := e.repo.CreateCampaign(ctx, camp); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	e.publisher.CampaignStarted(ctx, events.CampaignEvent{
		Name: camp.Name,
		Date: date,
		At:   e.now().UTC(),
	})
	e.log.InfoContext(ctx, "campaign started", "campaign", camp.Name, "detection_date", detectionDate.Format("2006-01-02"))

	analytics, err := e.repo.ListEligibleAnalytics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list eligible analytics: %w", err)
	}

	started := e.now()
	var totalHits int64
	for i, a := range analytics {
		if err := ctx.Err(); err != nil {
			return err
		}
		hits, err := e.runAnalytic(ctx, camp, a, detectionDate, from, to)
		if err != nil {
			metrics.CampaignsTotal.WithLabelValues("daily", "failed").Inc()
			e.publisher.CampaignFailed(ctx, events.CampaignEvent{
				Name:  camp.Name,
				Date:  date,
				Error: err.Error(),
				At:    e.now().UTC(),
			})
			// The aborted campaign is still closed so it never lingers as
			// an open run with no end timestamp.
			if cerr := e.closeCampaign(ctx, camp); cerr != nil {
				e.log.ErrorContext(ctx, "failed to close aborted campaign", "campaign", camp.Name, "error", cerr)
			}
			return fmt.Errorf("campaign %s aborted at analytic %s: %w", camp.Name, a.Name, err)
		}
		totalHits += hits
		e.reportProgress(ctx, taskID, float64(i+1)/float64(len(analytics))*100)
	}

	if err := e.closeCampaign(ctx, camp); err != nil {
		return err
	}
	metrics.CampaignsTotal.WithLabelValues("daily", "completed").Inc()
	metrics.CampaignDuration.Observe(e.now().Sub(started).Seconds())
	e.publisher.CampaignCompleted(ctx, events.CampaignEvent{
		Name:        camp.Name,
		Date:        date,
		NbQueries:   camp.NbQueries,
		NbHits:      totalHits,
		NbEndpoints: camp.NbEndpoints,
		At:          e.now().UTC(),
	})
	e.log.InfoContext(ctx, "campaign completed", "campaign", camp.Name,
		"nb_queries", camp.NbQueries, "nb_analytics", camp.NbAnalytics, "nb_endpoints", camp.NbEndpoints)
	return nil
}

// runAnalytic is the shared per-analytic, per-day inner loop used by both the
// daily run and stats regeneration. It returns the day's hit count.
func (e *Engine) runAnalytic(ctx context.Context, camp *models.Campaign, a *models.Analytic, detectionDate, from, to time.Time) (int64, error) {
	// The run assumes success until proven otherwise.
	a.QueryError = false
	a.QueryErrorMessage = ""
	a.QueryErrorDate = nil
	if err := e.repo.UpdateAnalytic(ctx, a); err != nil {
		return 0, fmt.Errorf("failed to reset error state: %w", err)
	}

	conn, err := e.registry.Get(a.Connector)
	if err != nil {
		return 0, err
	}

	qctx := ctx
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	queryStart := e.now()
	rows, err := conn.Query(qctx, a, from, to)
	runtime := e.now().Sub(queryStart).Seconds()
	if err != nil {
		e.recordHardFailure(ctx, a, err.Error())
		return 0, fmt.Errorf("connector %s hard failure: %w", a.Connector, err)
	}

	snap := &models.Snapshot{
		CampaignID: camp.ID,
		AnalyticID: a.ID,
		Date:       detectionDate,
		Runtime:    runtime,
	}
	for _, row := range rows {
		snap.HitsCount += row.EventCount
	}
	snap.HitsEndpoints = len(rows)
	if err := e.repo.CreateSnapshot(ctx, snap); err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	metrics.SnapshotsCreated.Inc()

	if len(rows) > 0 {
		endpoints := make([]*models.Endpoint, 0, len(rows))
		for _, row := range rows {
			endpoints = append(endpoints, &models.Endpoint{
				SnapshotID: snap.ID,
				Hostname:   row.Hostname,
				Site:       row.Site,
				Storyline:  models.TrimStoryline(row.StorylineIDs),
			})
		}
		if err := e.repo.CreateEndpoints(ctx, endpoints); err != nil {
			return 0, fmt.Errorf("failed to create endpoints: %w", err)
		}
		seen := detectionDate
		a.LastTimeSeen = &seen
		if err := e.repo.UpdateAnalytic(ctx, a); err != nil {
			return 0, fmt.Errorf("failed to update last_time_seen: %w", err)
		}
	}

	if _, err := e.guard.Apply(ctx, a, snap.HitsEndpoints); err != nil {
		return 0, err
	}

	counts, endpointSeries, err := e.repo.SnapshotSeries(ctx, a.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot series: %w", err)
	}
	snap.ZscoreCount, snap.AnomalyAlertCount = anomaly.Evaluate(counts, a.AnomalyThresholdCount)
	snap.ZscoreEndpoints, snap.AnomalyAlertEndpoints = anomaly.Evaluate(endpointSeries, a.AnomalyThresholdEndpoints)
	if err := e.repo.UpdateSnapshotStats(ctx, snap); err != nil {
		return 0, fmt.Errorf("failed to store anomaly stats: %w", err)
	}

	if snap.AnomalyAlertCount {
		e.recordAnomaly(ctx, camp, a, "hits", snap.ZscoreCount, a.AnomalyThresholdCount)
	}
	if snap.AnomalyAlertEndpoints {
		e.recordAnomaly(ctx, camp, a, "endpoints", snap.ZscoreEndpoints, a.AnomalyThresholdEndpoints)
	}
	return snap.HitsCount, nil
}

func (e *Engine) recordAnomaly(ctx context.Context, camp *models.Campaign, a *models.Analytic, channel string, score float64, threshold int) {
	metrics.AnomalyAlerts.WithLabelValues(channel).Inc()
	e.publisher.AnomalyDetected(ctx, events.AnomalyEvent{
		AnalyticName: a.Name,
		Campaign:     camp.Name,
		Channel:      channel,
		Score:        score,
		Threshold:    threshold,
		At:           e.now().UTC(),
	})
	e.log.WarnContext(ctx, "anomaly detected", "analytic", a.Name, "channel", channel, "zscore", score)
}

// recordHardFailure stamps the error fields on the analytic before the run
// aborts, so operators see the failure even though the campaign stops here.
func (e *Engine) recordHardFailure(ctx context.Context, a *models.Analytic, message string) {
	now := e.now().UTC()
	a.QueryError = true
	a.QueryErrorMessage = message
	a.QueryErrorDate = &now
	if e.cfg.DisableRunDailyOnError && !a.RunDailyLock {
		a.RunDaily = false
	}
	if err := e.repo.UpdateAnalytic(ctx, a); err != nil {
		e.log.WarnContext(ctx, "failed to persist query error", "analytic", a.Name, "error", err)
	}
	metrics.QueryErrors.WithLabelValues(a.Connector).Inc()
	e.publisher.QueryError(ctx, events.QueryErrorEvent{
		AnalyticName: a.Name,
		Message:      message,
		At:           now,
	})
}

// closeCampaign recomputes the aggregate counters at close time so concurrent
// analytic edits during the run are reflected.
func (e *Engine) closeCampaign(ctx context.Context, camp *models.Campaign) error {
	nbQueries, err := e.repo.CountEligibleAnalytics(ctx)
	if err != nil {
		return fmt.Errorf("failed to count eligible analytics: %w", err)
	}
	nbAnalytics, err := e.repo.CountActiveAnalytics(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active analytics: %w", err)
	}
	nbEndpoints, err := e.repo.CountDistinctEndpoints(ctx, camp.ID)
	if err != nil {
		return fmt.Errorf("failed to count campaign endpoints: %w", err)
	}

	end := e.now().UTC()
	camp.DateEnd = &end
	camp.NbQueries = nbQueries
	camp.NbAnalytics = nbAnalytics
	camp.NbEndpoints = nbEndpoints
	if err := e.repo.CloseCampaign(ctx, camp); err != nil {
		return fmt.Errorf("failed to close campaign: %w", err)
	}
	return nil
}

func (e *Engine) reportProgress(ctx context.Context, taskID string, progress float64) {
	if e.tracker == nil || taskID == "" {
		return
	}
	if err := e.tracker.SetProgress(ctx, taskID, progress); err != nil {
		e.log.WarnContext(ctx, "failed to report progress", "task_id", taskID, "error", err)
	}
}
