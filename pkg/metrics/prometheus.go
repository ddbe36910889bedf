// Package metrics provides Prometheus metrics for the lifeboat prediction service.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for predictions_total.
const (
	OutcomeSurvived = "survived"
	OutcomePerished = "perished"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Manager manages all Prometheus metrics for the prediction service.
type Manager struct {
	namespace          string
	subsystem          string
	histogramBuckets   []float64
	probabilityBuckets []float64
	constLabels        prometheus.Labels
	registry           prometheus.Registerer

	// Core business metrics
	predictions        *prometheus.CounterVec
	violations         *prometheus.CounterVec
	dimensionMismatch  prometheus.Counter
	predictionLatency  prometheus.Histogram
	probability        prometheus.Histogram
	batchSize          prometheus.Histogram
	modelInfo          *prometheus.GaugeVec
	modelFeatureCount  prometheus.Gauge
	rateLimitedRequest prometheus.Counter

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:          "lifeboat",
		subsystem:          "predictor",
		histogramBuckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		probabilityBuckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		constLabels:        prometheus.Labels{},
		registry:           prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictions_total",
		Help:        "Total number of prediction requests by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.violations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "validation_violations_total",
		Help:        "Total number of field violations found in rejected passenger records",
		ConstLabels: m.constLabels,
	}, []string{"field"})

	m.dimensionMismatch = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dimension_mismatch_total",
		Help:        "Total number of encoder/model dimension mismatches (contract drift)",
		ConstLabels: m.constLabels,
	})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_latency_milliseconds",
		Help:        "Histogram of validate-encode-score latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.probability = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "probability",
		Help:        "Distribution of predicted survival probabilities",
		Buckets:     m.probabilityBuckets,
		ConstLabels: m.constLabels,
	})

	m.batchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batch_size",
		Help:        "Number of passengers per batch request",
		Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		ConstLabels: m.constLabels,
	})

	m.modelInfo = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "model_info",
		Help:        "Loaded model artifact; value is always 1",
		ConstLabels: m.constLabels,
	}, []string{"version"})

	m.modelFeatureCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "model_feature_count",
		Help:        "Number of features the loaded model expects",
		ConstLabels: m.constLabels,
	})

	m.rateLimitedRequest = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rate_limited_total",
		Help:        "Total number of requests rejected by the rate limiter",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_endpoint_total",
			Help:        "Total number of error responses by endpoint and error code",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap memory in use in bytes",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: m.constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "Most recent GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordPrediction counts a successful prediction and observes its probability and latency.
func (m *Manager) RecordPrediction(survived bool, probability, latencyMs float64) {
	outcome := OutcomePerished
	if survived {
		outcome = OutcomeSurvived
	}
	m.predictions.WithLabelValues(outcome).Inc()
	m.probability.Observe(probability)
	m.predictionLatency.Observe(latencyMs)
}

// RecordRejection counts a rejected record and each violated field.
func (m *Manager) RecordRejection(fields []string) {
	m.predictions.WithLabelValues(OutcomeRejected).Inc()
	for _, f := range fields {
		m.violations.WithLabelValues(f).Inc()
	}
}

// RecordDimensionMismatch counts a failed prediction caused by contract drift.
func (m *Manager) RecordDimensionMismatch() {
	m.predictions.WithLabelValues(OutcomeError).Inc()
	m.dimensionMismatch.Inc()
}

// RecordBatchSize observes the size of a batch request.
func (m *Manager) RecordBatchSize(n int) {
	m.batchSize.Observe(float64(n))
}

// SetModelInfo publishes the loaded model version and dimension.
func (m *Manager) SetModelInfo(version string, features int) {
	m.modelInfo.Reset()
	m.modelInfo.WithLabelValues(version).Set(1)
	m.modelFeatureCount.Set(float64(features))
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (m *Manager) RecordRateLimited() {
	m.rateLimitedRequest.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an error response with its code.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemStats samples the Go runtime into the system gauges.
func (m *Manager) UpdateSystemStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		last := ms.PauseNs[(ms.NumGC+255)%256]
		m.systemGCPauseTime.Observe(float64(last) / 1e6)
	}
}

// RecordPrediction records a prediction on the global manager.
func RecordPrediction(survived bool, probability, latencyMs float64) {
	globalManager.RecordPrediction(survived, probability, latencyMs)
}

// RecordRejection records a rejected record on the global manager.
func RecordRejection(fields []string) {
	globalManager.RecordRejection(fields)
}

// RecordDimensionMismatch records contract drift on the global manager.
func RecordDimensionMismatch() {
	globalManager.RecordDimensionMismatch()
}

// RecordBatchSize records a batch size on the global manager.
func RecordBatchSize(n int) {
	globalManager.RecordBatchSize(n)
}

// SetModelInfo publishes model info on the global manager.
func SetModelInfo(version string, features int) {
	globalManager.SetModelInfo(version, features)
}

// RecordRateLimited records a rate-limited request on the global manager.
func RecordRateLimited() {
	globalManager.RecordRateLimited()
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByEndpoint records an error response on the global manager.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// UpdateSystemStats samples runtime stats into the global manager.
func UpdateSystemStats() {
	globalManager.UpdateSystemStats()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
