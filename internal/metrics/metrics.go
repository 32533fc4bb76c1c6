// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArchiveQueryDuration tracks archive round trips by archive and operation
	ArchiveQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imaging_gateway",
		Name:      "archive_query_duration_seconds",
		Help:      "Latency of archive queries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"archive", "operation", "outcome"})

	// FanoutFailures counts archives dropped from a federated search
	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imaging_gateway",
		Name:      "fanout_archive_failures_total",
		Help:      "Archives that failed or timed out during federated search",
	}, []string{"archive"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "imaging_gateway",
		Name:      "sessions_created_total",
		Help:      "Viewing sessions minted",
	})

	AccessDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "imaging_gateway",
		Name:      "access_denied_total",
		Help:      "Session requests refused by the consent ledger",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imaging_gateway",
		Name:      "study_cache_lookups_total",
		Help:      "Study detail cache lookups by result",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imaging_gateway",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status",
	}, []string{"method", "route", "status"})
)
