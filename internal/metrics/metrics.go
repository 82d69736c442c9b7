// Package metrics provides Prometheus metrics for the blog backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "techblog"

var (
	// SyncOutcomes counts SyncArticle results by outcome
	// (created, updated, unchanged, skipped, failed).
	SyncOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_sync_outcomes_total",
			Help:      "Total number of article sync attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SyncDuration measures a single article sync including retries.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "knowledge_sync_duration_seconds",
			Help:      "Duration of article syncs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// RemoteRequests counts calls to the knowledge service.
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_remote_requests_total",
			Help:      "Total number of knowledge service requests",
		},
		[]string{"operation", "code"},
	)

	// RemoteDuration measures knowledge service request latency.
	RemoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "knowledge_remote_request_duration_seconds",
			Help:      "Duration of knowledge service requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ImportedArticles counts feed items stored as draft articles.
	ImportedArticles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_articles_total",
			Help:      "Total number of feed items imported as articles",
		},
		[]string{"feed"},
	)
)

// RecordSync records the outcome of one article sync.
func RecordSync(outcome string, d time.Duration) {
	SyncOutcomes.WithLabelValues(outcome).Inc()
	SyncDuration.Observe(d.Seconds())
}

// RecordRemote records one knowledge service call. code is 0 when no
// response was received.
func RecordRemote(operation string, code int, d time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	RemoteRequests.WithLabelValues(operation, label).Inc()
	RemoteDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
