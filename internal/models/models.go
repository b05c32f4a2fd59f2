// Package models defines the core entities of the hunt engine: analytics,
// campaigns, snapshots, endpoints and task status records.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnalyticStatus is the workflow state of an analytic.
type AnalyticStatus string

const (
	StatusDraft     AnalyticStatus = "DRAFT"
	StatusPublished AnalyticStatus = "PUB"
	StatusReview    AnalyticStatus = "REVIEW"
	StatusPending   AnalyticStatus = "PENDING"
	StatusArchived  AnalyticStatus = "ARCH"
)

// ErrEmptyQuery is returned when an analytic is saved without a query.
var ErrEmptyQuery = errors.New("analytic query cannot be empty")

// Analytic is a persisted detection query plus metadata and workflow state.
type Analytic struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      AnalyticStatus `json:"status"`
	Confidence  int            `json:"confidence"` // 1..4
	Relevance   int            `json:"relevance"`  // 1..4

	// Connector is the registry key of the data source this analytic runs on.
	Connector string `json:"connector"`
	Query     string `json:"query"`

	CreateRule   bool `json:"create_rule"`
	RunDaily     bool `json:"run_daily"`
	RunDailyLock bool `json:"run_daily_lock"`

	// Anomaly sensitivity per channel, 0..3. Lower is more sensitive.
	AnomalyThresholdCount     int `json:"anomaly_threshold_count"`
	AnomalyThresholdEndpoints int `json:"anomaly_threshold_endpoints"`

	// MaxHostsCount counts how many times the max-hosts ceiling was reached.
	MaxHostsCount int `json:"maxhosts_count"`

	QueryError        bool       `json:"query_error"`
	QueryErrorMessage string     `json:"query_error_message,omitempty"`
	QueryErrorDate    *time.Time `json:"query_error_date,omitempty"`

	NextReviewDate *time.Time `json:"next_review_date,omitempty"`
	LastTimeSeen   *time.Time `json:"last_time_seen,omitempty"`

	PubDate   time.Time `json:"pub_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeightedRelevance is relevance scaled by confidence. Computed, never stored,
// so it cannot drift from its inputs.
func (a *Analytic) WeightedRelevance() float64 {
	return float64(a.Relevance) * float64(a.Confidence) / 4
}

// Validate checks the invariants enforced at save time.
func (a *Analytic) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// SetStatus moves the analytic to the given workflow state. Archived and
// pending analytics never run daily; the campaign loop re-reads RunDaily
// fresh each run, so clearing it here is self-enforcing.
func (a *Analytic) SetStatus(status AnalyticStatus) {
	a.Status = status
	if status == StatusArchived || status == StatusPending {
		a.RunDaily = false
	}
}

// Eligible reports whether the analytic is selected by the daily campaign.
func (a *Analytic) Eligible() bool {
	return a.RunDaily && a.Status != StatusArchived
}

// Campaign is one execution batch covering a set of analytics over a fixed
// date window.
type Campaign struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	DateStart   time.Time  `json:"date_start"`
	DateEnd     *time.Time `json:"date_end,omitempty"`

	// NbQueries is the number of analytics targeted by this campaign,
	// recomputed at close time.
	NbQueries int `json:"nb_queries"`
	// NbAnalytics is the total number of non-archived analytics at close time.
	NbAnalytics int `json:"nb_analytics"`
	// NbEndpoints is the number of distinct endpoints observed.
	NbEndpoints int `json:"nb_endpoints"`
}

const dailyCampaignPrefix = "daily_cron_"

// DailyCampaignName returns the canonical name of the scheduled campaign for
// the given date.
func DailyCampaignName(date time.Time) string {
	return dailyCampaignPrefix + date.Format("2006-01-02")
}

// RegenCampaignName returns the name of an ad-hoc regeneration campaign.
func RegenCampaignName(analyticName string, at time.Time) string {
	return fmt.Sprintf("regenerate_stats_%s_%s", analyticName, at.Format("2006-01-02-15-04"))
}

// ParseDailyCampaignDate extracts the campaign date from a daily campaign name.
func ParseDailyCampaignDate(name string) (time.Time, error) {
	raw, ok := strings.CutPrefix(name, dailyCampaignPrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("not a daily campaign name: %q", name)
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse campaign date: %w", err)
	}
	return d, nil
}

// Snapshot is one per-analytic-per-day observation. The anomaly fields are
// filled in after the full historical series for the analytic exists.
type Snapshot struct {
	ID         int64 `json:"id"`
	CampaignID int64 `json:"campaign_id"`
	AnalyticID int64 `json:"analytic_id"`

	// Date is the detection day: one day before the campaign's nominal date.
	Date    time.Time `json:"date"`
	Runtime float64   `json:"runtime"` // seconds

	HitsCount     int64 `json:"hits_count"`
	HitsEndpoints int   `json:"hits_endpoints"`

	ZscoreCount           float64 `json:"zscore_count"`
	ZscoreEndpoints       float64 `json:"zscore_endpoints"`
	AnomalyAlertCount     bool    `json:"anomaly_alert_count"`
	AnomalyAlertEndpoints bool    `json:"anomaly_alert_endpoints"`
}

// StorylineMaxLen caps the persisted storyline id field. Raw values at or
// above this length are dropped to empty rather than truncated, so a partial
// id is never stored.
const StorylineMaxLen = 255

// TrimStoryline strips the outer delimiter characters from a raw storyline id
// and applies the length cap.
func TrimStoryline(raw string) string {
	if len(raw) >= StorylineMaxLen {
		return ""
	}
	if len(raw) < 2 {
		return ""
	}
	return raw[1 : len(raw)-1]
}

// Endpoint is one matching host for a snapshot.
type Endpoint struct {
	ID         int64  `json:"id"`
	SnapshotID int64  `json:"snapshot_id"`
	Hostname   string `json:"hostname"`
	Site       string `json:"site,omitempty"`
	Storyline  string `json:"storylineid,omitempty"`
}

// TaskStatus describes one in-flight long-running job (a campaign run or a
// stats regeneration). Its deletion is the job's "done" signal.
type TaskStatus struct {
	Name      string    `json:"name"`
	TaskID    string    `json:"task_id"`
	Progress  float64   `json:"progress"` // 0..100
	StartedAt time.Time `json:"started_at"`
}
