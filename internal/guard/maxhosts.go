// Package guard enforces the max-hosts ceiling: an analytic that keeps
// matching an excessive share of the fleet is noisy by definition and gets
// progressively contained.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/metrics"
	"github.com/hunthawk-systems/hunthawk/internal/models"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
)

// Guard applies the max-hosts policy after each snapshot is written.
type Guard struct {
	repo      repository.Repository
	threshold int
	policy    config.MaxHostsPolicy
	publisher events.Publisher
	log       *logging.Logger
}

func New(repo repository.Repository, cfg config.CampaignConfig, publisher events.Publisher, log *logging.Logger) *Guard {
	return &Guard{
		repo:      repo,
		threshold: cfg.MaxHostsThreshold,
		policy:    cfg.OnMaxHostsReached,
		publisher: publisher,
		log:       log,
	}
}

// Apply checks one run's endpoint count against the ceiling. On a breach the
// analytic's counter always advances, locked or not; corrective actions only
// apply to unlocked analytics once the counter reaches the policy threshold.
// The passed analytic is mutated to reflect the persisted state.
func (g *Guard) Apply(ctx context.Context, a *models.Analytic, hitsEndpoints int) (bool, error) {
	if g.threshold <= 0 || hitsEndpoints < g.threshold {
		return false, nil
	}

	a.MaxHostsCount++
	metrics.MaxHostsBreaches.Inc()

	disabled := false
	if a.MaxHostsCount >= g.policy.Threshold && !a.RunDailyLock {
		if g.policy.DisableRunDaily && a.RunDaily {
			a.SetStatus(models.StatusPending)
			disabled = true
			g.log.WarnContext(ctx, "analytic disabled after repeated max-hosts breaches",
				"analytic", a.Name, "breach_count", a.MaxHostsCount)
		}
		if g.policy.DeleteStats {
			if _, err := g.repo.DeleteSnapshotsForAnalytic(ctx, a.ID); err != nil {
				return true, fmt.Errorf("failed to delete snapshots for %s: %w", a.Name, err)
			}
		}
	}

	if err := g.repo.UpdateAnalytic(ctx, a); err != nil {
		return true, fmt.Errorf("failed to persist breach state for %s: %w", a.Name, err)
	}

	g.publisher.GuardBreach(ctx, events.GuardEvent{
		AnalyticName: a.Name,
		Endpoints:    hitsEndpoints,
		Threshold:    g.threshold,
		BreachCount:  a.MaxHostsCount,
		Disabled:     disabled,
		At:           time.Now().UTC(),
	})
	return true, nil
}

// BreachCeiling reports whether the analytic has reached the corrective-action
// threshold. The regeneration loop stops early once this is true.
func (g *Guard) BreachCeiling(a *models.Analytic) bool {
	return a.MaxHostsCount >= g.policy.Threshold
}
