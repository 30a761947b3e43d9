// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Store metrics
	ListingsUpserted *prometheus.CounterVec
	ListingsDeleted  *prometheus.CounterVec
	ListingsEvicted  *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec

	// Feed metrics
	RecordsRejected  *prometheus.CounterVec
	SnapshotFetches  *prometheus.CounterVec
	StreamMessages   *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	DedupEntries     prometheus.Gauge

	// Archive metrics
	ArchiveRowsWritten prometheus.Counter
	ArchiveErrors      prometheus.Counter

	// Latency metrics
	SnapshotFetchLatency prometheus.Histogram
	StreamMessageLatency prometheus.Histogram

	// Health metrics
	LastSnapshotSync  prometheus.Gauge
	LastStreamMessage prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "listing_cache"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Store metrics
		ListingsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "listings_upserted_total",
			Help:      "Total number of listing upserts by feed and result",
		}, []string{"feed", "result"}),
		ListingsDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "listings_deleted_total",
			Help:      "Total number of listing deletes applied by feed",
		}, []string{"feed"}),
		ListingsEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "listings_evicted_total",
			Help:      "Total number of listings evicted by TTL policy",
		}, []string{"policy"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of failed store operations",
		}, []string{"operation"}),

		// Feed metrics
		RecordsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "records_rejected_total",
			Help:      "Total number of records dropped during decoding or normalization",
		}, []string{"feed", "reason"}),
		SnapshotFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "snapshot_fetches_total",
			Help:      "Total number of snapshot fetch attempts by outcome",
		}, []string{"outcome"}),
		StreamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stream_messages_total",
			Help:      "Total number of event stream messages by outcome",
		}, []string{"outcome"}),
		StreamReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stream_reconnects_total",
			Help:      "Total number of event stream reconnect attempts",
		}),
		DedupEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dedup_entries",
			Help:      "Current number of items tracked by the snapshot dedup cache",
		}),

		// Archive metrics
		ArchiveRowsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "rows_written_total",
			Help:      "Total number of listing changes written to the archive",
		}),
		ArchiveErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of failed archive batch writes",
		}),

		// Latency metrics
		SnapshotFetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "snapshot_fetch_latency_seconds",
			Help:      "Snapshot HTTP fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StreamMessageLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stream_message_latency_seconds",
			Help:      "Event stream message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Health metrics
		LastSnapshotSync: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_snapshot_sync_timestamp",
			Help:      "Unix timestamp of last successful snapshot sync",
		}),
		LastStreamMessage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_stream_message_timestamp",
			Help:      "Unix timestamp of last event stream message",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler returns an HTTP handler for the /health endpoint.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}

// NewServeMux returns a mux serving /metrics and /health.
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.Handle("/health", HealthHandler())
	return mux
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordUpsert records one upsert result ("created", "updated", "stale").
func RecordUpsert(feed, result string) {
	DefaultMetrics.ListingsUpserted.WithLabelValues(feed, result).Inc()
}

// RecordDelete records one applied delete.
func RecordDelete(feed string) {
	DefaultMetrics.ListingsDeleted.WithLabelValues(feed).Inc()
}

// RecordEvicted records listings removed by a sweep policy.
func RecordEvicted(policy string, n int) {
	DefaultMetrics.ListingsEvicted.WithLabelValues(policy).Add(float64(n))
}

// RecordStoreError records a failed store operation.
func RecordStoreError(operation string) {
	DefaultMetrics.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordRejected records a dropped record.
func RecordRejected(feed, reason string) {
	DefaultMetrics.RecordsRejected.WithLabelValues(feed, reason).Inc()
}

// RecordSnapshotFetch records a snapshot fetch outcome and its latency.
func RecordSnapshotFetch(outcome string, d time.Duration) {
	DefaultMetrics.SnapshotFetches.WithLabelValues(outcome).Inc()
	if d > 0 {
		DefaultMetrics.SnapshotFetchLatency.Observe(d.Seconds())
	}
}

// RecordSnapshotSync marks a successful snapshot sync.
func RecordSnapshotSync(at time.Time) {
	DefaultMetrics.LastSnapshotSync.Set(float64(at.Unix()))
}

// RecordStreamMessage records a stream message outcome and processing latency.
func RecordStreamMessage(outcome string, receivedAt time.Time, d time.Duration) {
	DefaultMetrics.StreamMessages.WithLabelValues(outcome).Inc()
	DefaultMetrics.StreamMessageLatency.Observe(d.Seconds())
	if !receivedAt.IsZero() {
		DefaultMetrics.LastStreamMessage.Set(float64(receivedAt.Unix()))
	}
}

// RecordStreamReconnect records a reconnect attempt.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// UpdateDedupEntries updates the dedup cache size gauge.
func UpdateDedupEntries(n int) {
	DefaultMetrics.DedupEntries.Set(float64(n))
}

// RecordArchiveWrite records an archive batch write.
func RecordArchiveWrite(rows int, err error) {
	if err != nil {
		DefaultMetrics.ArchiveErrors.Inc()
		return
	}
	DefaultMetrics.ArchiveRowsWritten.Add(float64(rows))
}
