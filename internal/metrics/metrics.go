// Package metrics exposes Prometheus instrumentation for the hunt engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Campaign execution metrics
	CampaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunthawk_campaigns_total",
			Help: "Total number of campaign runs",
		},
		[]string{"kind", "status"},
	)

	CampaignDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hunthawk_campaign_duration_seconds",
			Help:    "Duration of a full campaign run in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SnapshotsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hunthawk_snapshots_created_total",
			Help: "Total number of daily snapshots written",
		},
	)

	// Detection metrics
	AnomalyAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunthawk_anomaly_alerts_total",
			Help: "Total number of z-score threshold crossings",
		},
		[]string{"channel"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunthawk_query_errors_total",
			Help: "Total number of analytic query errors recorded by connectors",
		},
		[]string{"connector"},
	)

	MaxHostsBreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hunthawk_maxhosts_breaches_total",
			Help: "Total number of max-hosts ceiling breaches",
		},
	)

	// Retention metrics
	PurgeDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunthawk_purge_deleted_total",
			Help: "Total number of rows removed by the retention purge",
		},
		[]string{"entity"},
	)
)
