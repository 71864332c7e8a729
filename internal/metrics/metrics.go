// Package metrics provides Prometheus metrics for camsync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Archive pipeline metrics
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_archive_extractions_total",
			Help: "Total number of archive extractions",
		},
		[]string{"result"},
	)

	extractedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "camsync_archive_extracted_bytes_total",
			Help: "Total bytes written while extracting archives",
		},
	)

	extractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camsync_archive_extraction_duration_seconds",
			Help:    "Archive extraction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	scanPathsGenerated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camsync_scan_paths_generated",
			Help: "Number of scan paths in the last generated scan config",
		},
	)

	// File cache metrics
	mappingChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_mapping_checks_total",
			Help: "Total mapping checks by resulting status",
		},
		[]string{"status"},
	)

	mappingSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_mapping_syncs_total",
			Help: "Total mark-synced operations",
		},
		[]string{"result"},
	)

	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camsync_server_probe_duration_seconds",
			Help:    "Server path probe duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	mappingsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camsync_mappings_tracked",
			Help: "Number of mappings in the registry",
		},
	)

	// Update approval metrics
	updateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_update_decisions_total",
			Help: "Total update notifications by decision and outcome",
		},
		[]string{"decision", "result"},
	)
)

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordExtraction records one archive extraction.
func RecordExtraction(bytes int64, duration time.Duration, success bool) {
	extractionsTotal.WithLabelValues(result(success)).Inc()
	extractedBytes.Add(float64(bytes))
	extractionDuration.Observe(duration.Seconds())
}

// SetScanPaths sets the size of the last generated scan config.
func SetScanPaths(n int) {
	scanPathsGenerated.Set(float64(n))
}

// RecordCheck records a mapping check by resulting status.
func RecordCheck(status string) {
	mappingChecksTotal.WithLabelValues(status).Inc()
}

// RecordSync records a mark-synced call.
func RecordSync(success bool) {
	mappingSyncsTotal.WithLabelValues(result(success)).Inc()
}

// RecordProbe records a server probe. outcome is found, missing, timeout or error.
func RecordProbe(outcome string, duration time.Duration) {
	probeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetMappingsTracked sets the registry size.
func SetMappingsTracked(n int) {
	mappingsTracked.Set(float64(n))
}

// RecordDecision records an approve or reject decision.
func RecordDecision(decision string, success bool) {
	updateDecisionsTotal.WithLabelValues(decision, result(success)).Inc()
}

// WriteTextfile dumps all registered metrics in the node_exporter textfile
// collector format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
