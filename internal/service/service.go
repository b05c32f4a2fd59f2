// Package service implements the analytic lifecycle operations and the async
// job surface the HTTP API exposes: workflow transitions, query edits with
// their side effects, rule synchronization hooks and campaign/regeneration
// launches.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/campaign"
	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/connector"
	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/metrics"
	"github.com/hunthawk-systems/hunthawk/internal/models"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
	"github.com/hunthawk-systems/hunthawk/internal/tasks"
)

// Service wires the repository, the campaign engine and the task runner
// behind the operations callers are allowed to perform.
type Service struct {
	repo      repository.Repository
	registry  *connector.Registry
	engine    *campaign.Engine
	runner    *tasks.Runner
	tracker   tasks.Tracker
	publisher events.Publisher
	cfg       config.CampaignConfig
	workflow  config.WorkflowConfig
	log       *logging.Logger

	now func() time.Time
}

func New(
	repo repository.Repository,
	registry *connector.Registry,
	engine *campaign.Engine,
	runner *tasks.Runner,
	tracker tasks.Tracker,
	publisher events.Publisher,
	cfg config.CampaignConfig,
	workflow config.WorkflowConfig,
	log *logging.Logger,
) *Service {
	return &Service{
		repo:      repo,
		registry:  registry,
		engine:    engine,
		runner:    runner,
		tracker:   tracker,
		publisher: publisher,
		cfg:       cfg,
		workflow:  workflow,
		log:       log,
		now:       time.Now,
	}
}

// CreateAnalytic validates and persists a new analytic and mirrors it as a
// remote rule when the connector supports that and the flag is set.
func (s *Service) CreateAnalytic(ctx context.Context, a *models.Analytic) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := s.registry.Get(a.Connector); err != nil {
		return err
	}
	a.PubDate = s.now().UTC()
	if err := s.repo.CreateAnalytic(ctx, a); err != nil {
		return err
	}
	if a.CreateRule {
		if syncer, ok := s.registry.SyncerFor(a.Connector); ok {
			if err := syncer.CreateRule(ctx, a); err != nil {
				s.log.ErrorContext(ctx, "rule creation failed", "analytic", a.Name, "error", err)
			}
		}
	}
	return nil
}

func (s *Service) GetAnalytic(ctx context.Context, id int64) (*models.Analytic, error) {
	return s.repo.GetAnalytic(ctx, id)
}

// UpdateQuery changes an analytic's query text. A changed query invalidates
// everything derived from the old one: the breach counter, the error flags and
// (when auto-regeneration is on) the whole snapshot history.
func (s *Service) UpdateQuery(ctx context.Context, id int64, query string) (*models.Analytic, error) {
	a, err := s.repo.GetAnalytic(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Query == query {
		return a, nil
	}

	a.Query = query
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.MaxHostsCount = 0
	a.QueryError = false
	a.QueryErrorMessage = ""
	a.QueryErrorDate = nil
	if err := s.repo.UpdateAnalytic(ctx, a); err != nil {
		return nil, err
	}

	if a.CreateRule {
		if syncer, ok := s.registry.SyncerFor(a.Connector); ok {
			if err := syncer.UpdateRule(ctx, a); err != nil {
				s.log.ErrorContext(ctx, "rule update failed", "analytic", a.Name, "error", err)
			}
		}
	}

	if s.cfg.AutoStatsRegeneration {
		if _, err := s.RegenerateAsync(ctx, a.ID); err != nil {
			s.log.WarnContext(ctx, "auto regeneration not started", "analytic", a.Name, "error", err)
		}
	}
	return a, nil
}

// Publish moves an analytic to PUB and schedules its next review. Locked
// analytics are exempt from the review cycle.
func (s *Service) Publish(ctx context.Context, id int64) (*models.Analytic, error) {
	a, err := s.repo.GetAnalytic(ctx, id)
	if err != nil {
		return nil, err
	}
	a.SetStatus(models.StatusPublished)
	if a.RunDailyLock {
		a.NextReviewDate = nil
	} else {
		next := s.now().UTC().AddDate(0, 0, s.workflow.DaysBeforeReview)
		a.NextReviewDate = &next
	}
	if err := s.repo.UpdateAnalytic(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Archive moves an analytic to ARCH and removes its mirrored rule.
func (s *Service) Archive(ctx context.Context, id int64) (*models.Analytic, error) {
	return s.transition(ctx, id, models.StatusArchived, true)
}

// MarkPending moves an analytic to PENDING; run_daily clears as a side effect.
func (s *Service) MarkPending(ctx context.Context, id int64) (*models.Analytic, error) {
	return s.transition(ctx, id, models.StatusPending, false)
}

func (s *Service) transition(ctx context.Context, id int64, status models.AnalyticStatus, dropRule bool) (*models.Analytic, error) {
	a, err := s.repo.GetAnalytic(ctx, id)
	if err != nil {
		return nil, err
	}
	a.SetStatus(status)
	if err := s.repo.UpdateAnalytic(ctx, a); err != nil {
		return nil, err
	}
	if dropRule && a.CreateRule {
		if syncer, ok := s.registry.SyncerFor(a.Connector); ok {
			if err := syncer.DeleteRule(ctx, a); err != nil {
				s.log.ErrorContext(ctx, "rule deletion failed", "analytic", a.Name, "error", err)
			}
		}
	}
	return a, nil
}

// ReviewSweep moves published, unlocked analytics whose review date has passed
// to REVIEW. Run daily by the scheduler before the campaign.
func (s *Service) ReviewSweep(ctx context.Context) (int, error) {
	due, err := s.repo.ListAnalyticsDueForReview(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, a := range due {
		a.SetStatus(models.StatusReview)
		if s.workflow.DisableAnalyticOnReview {
			a.RunDaily = false
		}
		if err := s.repo.UpdateAnalytic(ctx, a); err != nil {
			return 0, fmt.Errorf("failed to move %s to review: %w", a.Name, err)
		}
		s.log.InfoContext(ctx, "analytic due for review", "analytic", a.Name)
	}
	return len(due), nil
}

// RecordQueryError is the connector soft-failure path: it stamps the error
// fields on the analytic and optionally pulls it out of the daily rotation.
// Satisfies connector.ErrorRecorder.
func (s *Service) RecordQueryError(ctx context.Context, a *models.Analytic, message string) error {
	now := s.now().UTC()
	a.QueryError = true
	a.QueryErrorMessage = message
	a.QueryErrorDate = &now
	if s.cfg.DisableRunDailyOnError && !a.RunDailyLock {
		a.RunDaily = false
	}
	if err := s.repo.UpdateAnalytic(ctx, a); err != nil {
		return err
	}
	metrics.QueryErrors.WithLabelValues(a.Connector).Inc()
	s.publisher.QueryError(ctx, events.QueryErrorEvent{
		AnalyticName: a.Name,
		Message:      message,
		At:           now,
	})
	return nil
}

// RunCampaignAsync launches the daily campaign for the given date as a
// cancellable background job and returns its task id.
func (s *Service) RunCampaignAsync(ctx context.Context, date time.Time) (string, error) {
	name := models.DailyCampaignName(date)
	return s.runner.Launch(ctx, name, func(jobCtx context.Context, taskID string) error {
		return s.engine.Run(jobCtx, date, taskID)
	})
}

// RegenerateAsync launches a stats regeneration for one analytic.
func (s *Service) RegenerateAsync(ctx context.Context, analyticID int64) (string, error) {
	a, err := s.repo.GetAnalytic(ctx, analyticID)
	if err != nil {
		return "", err
	}
	name := models.RegenCampaignName(a.Name, s.now())
	return s.runner.Launch(ctx, name, func(jobCtx context.Context, taskID string) error {
		return s.engine.Regenerate(jobCtx, analyticID, taskID)
	})
}

// Purge runs the retention sweep synchronously; it is cheap and idempotent.
func (s *Service) Purge(ctx context.Context) error {
	return s.engine.Purge(ctx)
}

// ListTasks returns the live task records, oldest first.
func (s *Service) ListTasks(ctx context.Context) ([]models.TaskStatus, error) {
	return s.tracker.List(ctx)
}

func (s *Service) GetTask(ctx context.Context, taskID string) (models.TaskStatus, error) {
	return s.tracker.Get(ctx, taskID)
}

// CancelTask hard-kills a running job and clears its record.
func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	return s.runner.Cancel(ctx, taskID)
}
