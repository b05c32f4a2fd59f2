package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development. It mirrors the cascade semantics of the Postgres schema.
type MemoryRepository struct {
	mu sync.RWMutex

	analytics map[int64]*models.Analytic
	campaigns map[int64]*models.Campaign
	snapshots map[int64]*models.Snapshot
	endpoints map[int64]*models.Endpoint

	nextAnalyticID int64
	nextCampaignID int64
	nextSnapshotID int64
	nextEndpointID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		analytics: make(map[int64]*models.Analytic),
		campaigns: make(map[int64]*models.Campaign),
		snapshots: make(map[int64]*models.Snapshot),
		endpoints: make(map[int64]*models.Endpoint),
	}
}

func (r *MemoryRepository) Close() {}

func (r *MemoryRepository) CreateAnalytic(_ context.Context, a *models.Analytic) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.analytics {
		if existing.Name == a.Name {
			return ErrAnalyticExists
		}
	}

	r.nextAnalyticID++
	a.ID = r.nextAnalyticID
	now := time.Now()
	a.PubDate = now
	a.UpdatedAt = now
	clone := *a
	r.analytics[a.ID] = &clone
	return nil
}

func (r *MemoryRepository) GetAnalytic(_ context.Context, id int64) (*models.Analytic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analytics[id]
	if !ok {
		return nil, ErrAnalyticNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *MemoryRepository) GetAnalyticByName(_ context.Context, name string) (*models.Analytic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.analytics {
		if a.Name == name {
			clone := *a
			return &clone, nil
		}
	}
	return nil, ErrAnalyticNotFound
}

func (r *MemoryRepository) UpdateAnalytic(_ context.Context, a *models.Analytic) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.analytics[a.ID]; !ok {
		return ErrAnalyticNotFound
	}
	a.UpdatedAt = time.Now()
	clone := *a
	r.analytics[a.ID] = &clone
	return nil
}

func (r *MemoryRepository) DeleteAnalytic(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.analytics[id]; !ok {
		return ErrAnalyticNotFound
	}
	delete(r.analytics, id)
	r.deleteSnapshotsLocked(func(s *models.Snapshot) bool { return s.AnalyticID == id })
	return nil
}

func (r *MemoryRepository) ListEligibleAnalytics(_ context.Context) ([]*models.Analytic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Analytic
	for _, a := range r.analytics {
		if a.Eligible() {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CountEligibleAnalytics(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.analytics {
		if a.Eligible() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountActiveAnalytics(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.analytics {
		if a.Status != models.StatusArchived {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListAnalyticsDueForReview(_ context.Context, asOf time.Time) ([]*models.Analytic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Analytic
	for _, a := range r.analytics {
		if a.RunDailyLock || a.Status != models.StatusPublished || a.NextReviewDate == nil {
			continue
		}
		if !a.NextReviewDate.After(asOf) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CreateCampaign(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextCampaignID++
	c.ID = r.nextCampaignID
	clone := *c
	r.campaigns[c.ID] = &clone
	return nil
}

func (r *MemoryRepository) CloseCampaign(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[c.ID]; !ok {
		return ErrCampaignNotFound
	}
	clone := *c
	r.campaigns[c.ID] = &clone
	return nil
}

func (r *MemoryRepository) DeleteCampaignsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, c := range r.campaigns {
		if c.DateStart.Before(cutoff) {
			delete(r.campaigns, id)
			r.deleteSnapshotsLocked(func(s *models.Snapshot) bool { return s.CampaignID == id })
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) CreateSnapshot(_ context.Context, s *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSnapshotID++
	s.ID = r.nextSnapshotID
	clone := *s
	r.snapshots[s.ID] = &clone
	return nil
}

func (r *MemoryRepository) UpdateSnapshotStats(_ context.Context, s *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Matches the SQL implementation: updating a row the guard already
	// deleted affects nothing and is not an error.
	stored, ok := r.snapshots[s.ID]
	if !ok {
		return nil
	}
	stored.HitsCount = s.HitsCount
	stored.HitsEndpoints = s.HitsEndpoints
	stored.ZscoreCount = s.ZscoreCount
	stored.ZscoreEndpoints = s.ZscoreEndpoints
	stored.AnomalyAlertCount = s.AnomalyAlertCount
	stored.AnomalyAlertEndpoints = s.AnomalyAlertEndpoints
	return nil
}

func (r *MemoryRepository) SnapshotSeries(_ context.Context, analyticID int64) ([]float64, []float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for id, s := range r.snapshots {
		if s.AnalyticID == analyticID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	counts := make([]float64, 0, len(ids))
	endpoints := make([]float64, 0, len(ids))
	for _, id := range ids {
		s := r.snapshots[id]
		counts = append(counts, float64(s.HitsCount))
		endpoints = append(endpoints, float64(s.HitsEndpoints))
	}
	return counts, endpoints, nil
}

func (r *MemoryRepository) DeleteSnapshotsForAnalytic(_ context.Context, analyticID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteSnapshotsLocked(func(s *models.Snapshot) bool { return s.AnalyticID == analyticID }), nil
}

func (r *MemoryRepository) DeleteSnapshotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteSnapshotsLocked(func(s *models.Snapshot) bool { return s.Date.Before(cutoff) }), nil
}

// deleteSnapshotsLocked deletes matching snapshots and cascades to their
// endpoints. Callers must hold the write lock.
func (r *MemoryRepository) deleteSnapshotsLocked(match func(*models.Snapshot) bool) int64 {
	var deleted int64
	for id, s := range r.snapshots {
		if !match(s) {
			continue
		}
		delete(r.snapshots, id)
		for eid, e := range r.endpoints {
			if e.SnapshotID == id {
				delete(r.endpoints, eid)
			}
		}
		deleted++
	}
	return deleted
}

func (r *MemoryRepository) CreateEndpoints(_ context.Context, endpoints []*models.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range endpoints {
		r.nextEndpointID++
		e.ID = r.nextEndpointID
		clone := *e
		r.endpoints[e.ID] = &clone
	}
	return nil
}

func (r *MemoryRepository) CountDistinctEndpoints(_ context.Context, campaignID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.endpoints {
		s, ok := r.snapshots[e.SnapshotID]
		if !ok || s.CampaignID != campaignID {
			continue
		}
		seen[e.Hostname] = struct{}{}
	}
	return len(seen), nil
}

// Snapshots returns all snapshots for an analytic in insertion order. Test
// helper, not part of the Repository contract.
func (r *MemoryRepository) Snapshots(analyticID int64) []*models.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for id, s := range r.snapshots {
		if s.AnalyticID == analyticID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*models.Snapshot, 0, len(ids))
	for _, id := range ids {
		clone := *r.snapshots[id]
		out = append(out, &clone)
	}
	return out
}

// Endpoints returns all endpoints for a snapshot in insertion order. Test
// helper, not part of the Repository contract.
func (r *MemoryRepository) Endpoints(snapshotID int64) []*models.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for id, e := range r.endpoints {
		if e.SnapshotID == snapshotID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*models.Endpoint, 0, len(ids))
	for _, id := range ids {
		clone := *r.endpoints[id]
		out = append(out, &clone)
	}
	return out
}

// CampaignByName returns a campaign by name. Test helper.
func (r *MemoryRepository) CampaignByName(name string) (*models.Campaign, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.campaigns {
		if c.Name == name {
			clone := *c
			return &clone, true
		}
	}
	return nil, false
}

// Campaign returns a campaign by id. Test helper.
func (r *MemoryRepository) Campaign(id int64) (*models.Campaign, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, false
	}
	clone := *c
	return &clone, true
}
