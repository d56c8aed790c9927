package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Retrieval Metrics
	RetrievalVariablesTotal *prometheus.CounterVec
	RetrievalRuleMatches    prometheus.Counter
	RetrievalDuration       prometheus.Histogram

	// Transform Metrics
	TransformPointsTotal     *prometheus.CounterVec
	TransformStarvedPoints   prometheus.Counter
	TransformExcludedSamples prometheus.Counter
	TransformDuration        prometheus.Histogram

	// Quality Metrics
	QualityChecksTotal    *prometheus.CounterVec
	QualityFlaggedSamples *prometheus.CounterVec
	QualityCheckErrors    prometheus.Counter

	// Pipeline Metrics
	PipelineRunsTotal   *prometheus.CounterVec
	PipelineRunDuration *prometheus.HistogramVec
	DatasetsWritten     prometheus.Counter

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		RetrievalVariablesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_variables_total",
				Help:      "Total number of variables processed by the retriever by outcome",
			},
			[]string{"outcome"}, // "resolved", "unresolved", "dropped"
		),

		RetrievalRuleMatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_rule_matches_total",
				Help:      "Total number of retrieval rules that matched an input identifier",
			},
		),

		RetrievalDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Duration of dataset retrieval per processing interval",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		TransformPointsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transform_points_total",
				Help:      "Total number of output grid points computed by algorithm",
			},
			[]string{"algorithm"},
		),

		TransformStarvedPoints: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transform_starved_points_total",
				Help:      "Total number of output grid points with no qualifying source samples",
			},
		),

		TransformExcludedSamples: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transform_excluded_samples_total",
				Help:      "Total number of flagged source samples excluded from aggregates",
			},
		),

		TransformDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Duration of windowed transformation per variable",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		QualityChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quality_checks_total",
				Help:      "Total number of quality checker invocations by checker",
			},
			[]string{"checker"},
		),

		QualityFlaggedSamples: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quality_flagged_samples_total",
				Help:      "Total number of samples flagged by assessment",
			},
			[]string{"assessment"},
		),

		QualityCheckErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quality_check_errors_total",
				Help:      "Total number of checkers skipped because they could not evaluate a variable",
			},
		),

		PipelineRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of pipeline invocations by mode and status",
			},
			[]string{"mode", "status"}, // mode: "ingest", "vap"
		),

		PipelineRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Duration of one pipeline invocation by mode",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"mode"},
		),

		DatasetsWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datasets_written_total",
				Help:      "Total number of standardized datasets persisted to storage",
			},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordRetrievalOutcome increments the per-variable retrieval outcome counter
func (c *Collector) RecordRetrievalOutcome(outcome string) {
	c.RetrievalVariablesTotal.WithLabelValues(outcome).Inc()
}

// RecordPipelineRun increments the pipeline run counter
func (c *Collector) RecordPipelineRun(mode, status string) {
	c.PipelineRunsTotal.WithLabelValues(mode, status).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
