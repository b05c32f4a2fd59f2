// Package events publishes engine lifecycle notifications to the message bus
// so downstream consumers (case management, notification fan-out) can react
// without polling the database.
package events

import (
	"context"
	"time"
)

// Subject constants for the HuntHawk message bus.
// Follow the pattern: {domain}.{resource}.{action}
const (
	SubjectCampaignStarted   = "hunthawk.campaign.started"
	SubjectCampaignCompleted = "hunthawk.campaign.completed"
	SubjectCampaignFailed    = "hunthawk.campaign.failed"
	SubjectAnomalyDetected   = "hunthawk.anomaly.detected"
	SubjectGuardBreach       = "hunthawk.guard.breach"
	SubjectQueryError        = "hunthawk.analytic.query_error"
)

// CampaignEvent describes a campaign run starting, completing or aborting.
type CampaignEvent struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	NbQueries   int       `json:"nb_queries,omitempty"`
	NbHits      int64     `json:"nb_hits,omitempty"`
	NbEndpoints int       `json:"nb_endpoints,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// AnomalyEvent is published when a z-score crosses an analytic's threshold.
type AnomalyEvent struct {
	AnalyticName string    `json:"analytic_name"`
	Campaign     string    `json:"campaign"`
	Channel      string    `json:"channel"` // "hits" or "endpoints"
	Score        float64   `json:"score"`
	Threshold    int       `json:"threshold"`
	At           time.Time `json:"at"`
}

// GuardEvent is published when an analytic breaches the max-hosts ceiling.
type GuardEvent struct {
	AnalyticName string    `json:"analytic_name"`
	Endpoints    int       `json:"endpoints"`
	Threshold    int       `json:"threshold"`
	BreachCount  int       `json:"breach_count"`
	Disabled     bool      `json:"disabled"`
	At           time.Time `json:"at"`
}

// QueryErrorEvent is published when a connector flags an analytic's query.
type QueryErrorEvent struct {
	AnalyticName string    `json:"analytic_name"`
	Message      string    `json:"message"`
	At           time.Time `json:"at"`
}

// Publisher emits engine events. Implementations must not block campaign
// execution on bus trouble; publishing is best effort.
type Publisher interface {
	CampaignStarted(ctx context.Context, ev CampaignEvent)
	CampaignCompleted(ctx context.Context, ev CampaignEvent)
	CampaignFailed(ctx context.Context, ev CampaignEvent)
	AnomalyDetected(ctx context.Context, ev AnomalyEvent)
	GuardBreach(ctx context.Context, ev GuardEvent)
	QueryError(ctx context.Context, ev QueryErrorEvent)
	Close() error
}

// Noop discards all events. Used when the bus is disabled.
type Noop struct{}

func (Noop) CampaignStarted(context.Context, CampaignEvent)   {}
func (Noop) CampaignCompleted(context.Context, CampaignEvent) {}
func (Noop) CampaignFailed(context.Context, CampaignEvent)    {}
func (Noop) AnomalyDetected(context.Context, AnomalyEvent)    {}
func (Noop) GuardBreach(context.Context, GuardEvent)          {}
func (Noop) QueryError(context.Context, QueryErrorEvent)      {}
func (Noop) Close() error                                     { return nil }
