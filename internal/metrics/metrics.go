package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the relay
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Sync Metrics
	SyncChangesTotal  prometheus.CounterVec
	SyncPushDuration  prometheus.Histogram
	SyncPullBatchSize prometheus.Histogram

	// Hold Metrics
	HoldOpsTotal prometheus.CounterVec

	// Pairing Metrics
	PairingsTotal prometheus.CounterVec

	// Snapshot Metrics
	SnapshotDownloadsTotal prometheus.CounterVec

	// Asset Sync Metrics
	FileTransfersTotal prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		SyncChangesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_sync_changes_total",
				Help: "Pushed changes by outcome: applied, skipped, or error",
			},
			[]string{"outcome"},
		),
		SyncPushDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_sync_push_duration_seconds",
				Help:    "Push batch processing time in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		SyncPullBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_sync_pull_batch_size",
				Help:    "Number of events returned per pull",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),

		HoldOpsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_hold_ops_total",
				Help: "Hold operations by type and outcome",
			},
			[]string{"operation", "outcome"},
		),

		PairingsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_pairings_total",
				Help: "Pairing handshake transitions by stage",
			},
			[]string{"stage"},
		),

		SnapshotDownloadsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_snapshot_downloads_total",
				Help: "Snapshot downloads by source (cache or store)",
			},
			[]string{"source"},
		),

		FileTransfersTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_file_transfers_total",
				Help: "Asset sync operations by kind (manifest, upload, download)",
			},
			[]string{"operation"},
		),
	}
}
