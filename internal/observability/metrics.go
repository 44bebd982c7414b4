// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Validation metrics
	RecordsReceived    prometheus.Counter
	RecordsValidated   prometheus.Counter
	RecordsQuarantined *prometheus.CounterVec

	// Resolution and dedup metrics
	RecordsResolved   prometheus.Counter
	DuplicatesDropped *prometheus.CounterVec

	// Adjustment metrics
	InstrumentsProcessed prometheus.Counter
	InstrumentsFailed    *prometheus.CounterVec
	RecordsNormalized    prometheus.Counter
	AdjustedRecords      prometheus.Counter

	// Corporate action metrics
	NoticesParsed      *prometheus.CounterVec
	NoticesNeedsReview prometheus.Counter
	NoticesRejected    *prometheus.CounterVec

	// Batch metrics
	BatchRunsTotal    *prometheus.CounterVec
	BatchDuration     *prometheus.HistogramVec
	PartitionDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "eod_normalizer"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Validation metrics
		RecordsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "records_received_total",
			Help:      "Total number of raw records received",
		}),
		RecordsValidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "records_validated_total",
			Help:      "Total number of raw records that passed the schema contract",
		}),
		RecordsQuarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "records_quarantined_total",
			Help:      "Total number of quarantined records by stage and reason",
		}, []string{"stage", "reason"}),

		// Resolution and dedup metrics
		RecordsResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "records_resolved_total",
			Help:      "Total number of records mapped to an instrument",
		}),
		DuplicatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of redundant records dropped by source",
		}, []string{"source"}),

		// Adjustment metrics
		InstrumentsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adjustment",
			Name:      "instruments_processed_total",
			Help:      "Total number of instrument partitions completed",
		}),
		InstrumentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adjustment",
			Name:      "instruments_failed_total",
			Help:      "Total number of instrument partitions excluded from output by reason",
		}, []string{"reason"}),
		RecordsNormalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adjustment",
			Name:      "records_normalized_total",
			Help:      "Total number of normalized records written",
		}),
		AdjustedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adjustment",
			Name:      "records_adjusted_total",
			Help:      "Total number of normalized records with a factor other than 1",
		}),

		// Corporate action metrics
		NoticesParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpaction",
			Name:      "notices_parsed_total",
			Help:      "Total number of notices parsed by action type and confidence",
		}, []string{"action_type", "confidence"}),
		NoticesNeedsReview: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpaction",
			Name:      "notices_needs_review_total",
			Help:      "Total number of events flagged for manual review",
		}),
		NoticesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpaction",
			Name:      "notices_rejected_total",
			Help:      "Total number of notices that could not be resolved to an instrument",
		}, []string{"reason"}),

		// Batch metrics
		BatchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch duration in seconds by phase",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		PartitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "partition_duration_seconds",
			Help:      "Per-instrument partition processing time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulBatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last successful batch run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// Init replaces DefaultMetrics with a set registered under namespace on a
// fresh registry and returns the handler serving it. Call once at startup,
// before any work records metrics.
func Init(namespace string) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	DefaultMetrics = NewMetrics(namespace, reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordReceived increments the raw records received counter.
func RecordReceived(n int) {
	DefaultMetrics.RecordsReceived.Add(float64(n))
}

// RecordValidated increments the validated records counter.
func RecordValidated() {
	DefaultMetrics.RecordsValidated.Inc()
}

// RecordQuarantined records a quarantined record.
func RecordQuarantined(stage, reason string) {
	DefaultMetrics.RecordsQuarantined.WithLabelValues(stage, reason).Inc()
}

// RecordResolved increments the resolved records counter.
func RecordResolved() {
	DefaultMetrics.RecordsResolved.Inc()
}

// RecordDuplicatesDropped records dropped duplicates per source.
func RecordDuplicatesDropped(bySource map[string]int) {
	for source, n := range bySource {
		DefaultMetrics.DuplicatesDropped.WithLabelValues(source).Add(float64(n))
	}
}

// RecordInstrumentProcessed records a completed partition.
func RecordInstrumentProcessed(records, adjusted int, seconds float64) {
	DefaultMetrics.InstrumentsProcessed.Inc()
	DefaultMetrics.RecordsNormalized.Add(float64(records))
	DefaultMetrics.AdjustedRecords.Add(float64(adjusted))
	DefaultMetrics.PartitionDuration.Observe(seconds)
}

// RecordInstrumentFailed records a partition excluded from output.
func RecordInstrumentFailed(reason string) {
	DefaultMetrics.InstrumentsFailed.WithLabelValues(reason).Inc()
}

// RecordNoticeParsed records a parsed notice.
func RecordNoticeParsed(actionType, confidence string, needsReview bool) {
	DefaultMetrics.NoticesParsed.WithLabelValues(actionType, confidence).Inc()
	if needsReview {
		DefaultMetrics.NoticesNeedsReview.Inc()
	}
}

// RecordNoticeRejected records a notice that could not be resolved.
func RecordNoticeRejected(reason string) {
	DefaultMetrics.NoticesRejected.WithLabelValues(reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordBatchPhase records the duration of one batch phase.
func RecordBatchPhase(phase string, seconds float64) {
	DefaultMetrics.BatchDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordBatchRun records a batch run outcome.
func RecordBatchRun(status string, finishedUnix int64) {
	DefaultMetrics.BatchRunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.LastSuccessfulBatch.Set(float64(finishedUnix))
	}
}
