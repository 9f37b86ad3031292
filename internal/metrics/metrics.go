// Package metrics holds the Prometheus collectors shared by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "snapshot_cache_total",
		Help:      "Snapshot cache lookups by result (hit, miss).",
	}, []string{"result"})

	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "provider_failures_total",
		Help:      "Upstream provider failures by provider (route, weather, predictor).",
	}, []string{"provider"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "snapshot_fallbacks_total",
		Help:      "Fallback data used in snapshots by part and source (cache, synthetic).",
	}, []string{"part", "source"})

	Reschedules = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "reschedules_total",
		Help:      "Reschedule decisions by outcome (applied, suppressed).",
	}, []string{"outcome"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "notifications_total",
		Help:      "Scheduled notifications by delivery path (push, inbox) and result.",
	}, []string{"path", "result"})

	Feedback = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commute",
		Name:      "trip_feedback_total",
		Help:      "Trip feedback by sentiment (positive, negative).",
	}, []string{"sentiment"})

	RecommendationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "commute",
		Name:      "recommendation_duration_seconds",
		Help:      "Wall time to produce a recommendation.",
		Buckets:   prometheus.DefBuckets,
	})
)
