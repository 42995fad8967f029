package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runpanel",
		Name:      "session_refreshes_total",
		Help:      "Upstream token refreshes performed while resuming a session, by outcome.",
	}, []string{"outcome"})
	metricLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runpanel",
		Name:      "logins_total",
		Help:      "OAuth code logins, by outcome.",
	}, []string{"outcome"})
	metricAggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runpanel",
		Name:      "aggregations_total",
		Help:      "Workflow run aggregations, by outcome.",
	}, []string{"outcome"})
	metricAggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "runpanel",
		Name:      "aggregation_duration_seconds",
		Help:      "Wall time of a full workflow run aggregation.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
