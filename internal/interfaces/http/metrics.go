package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds all Prometheus metrics for FundRun. Each instance
// carries its own registry so the /metrics endpoint only exposes what this
// process recorded.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// HTTP surface
	RequestDuration *prometheus.HistogramVec

	// Pipeline performance metrics
	StepDuration   *prometheus.HistogramVec
	PipelineSteps  *prometheus.CounterVec
	PipelineErrors *prometheus.CounterVec

	// Cache performance metrics
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Signal and run metrics
	SignalsGenerated *prometheus.CounterVec
	ActiveBacktests  prometheus.Gauge
	TotalBacktests   prometheus.Counter
}

// NewMetricsRegistry creates a new metrics registry with all FundRun metrics
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundrun_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"path", "method", "status"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundrun_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		PipelineSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundrun_pipeline_steps_total",
				Help: "Total number of pipeline step executions",
			},
			[]string{"step", "result"},
		),

		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundrun_pipeline_errors_total",
				Help: "Total number of pipeline errors",
			},
			[]string{"step", "error_type"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fundrun_cache_hit_ratio",
				Help: "Cache hit ratio across all cache types (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundrun_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundrun_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		SignalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundrun_signals_total",
				Help: "Total number of non-HOLD signals generated",
			},
			[]string{"strategy", "kind"},
		),

		ActiveBacktests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fundrun_active_backtests",
				Help: "Number of backtests currently running",
			},
		),

		TotalBacktests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fundrun_backtests_total",
				Help: "Total number of backtests started",
			},
		),
	}

	registry.registry.MustRegister(
		registry.RequestDuration,
		registry.StepDuration,
		registry.PipelineSteps,
		registry.PipelineErrors,
		registry.CacheHitRatio,
		registry.CacheHits,
		registry.CacheMisses,
		registry.SignalsGenerated,
		registry.ActiveBacktests,
		registry.TotalBacktests,
	)

	return registry
}

// StepTimer tracks execution time for pipeline steps
type StepTimer struct {
	metrics *MetricsRegistry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a pipeline step
func (m *MetricsRegistry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{
		metrics: m,
		step:    step,
		start:   time.Now(),
	}
}

// Stop completes the step timing and records the metric
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())
	st.metrics.PipelineSteps.WithLabelValues(st.step, result).Inc()

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("pipeline step completed")
}

// RecordRequest records one served HTTP request
func (m *MetricsRegistry) RecordRequest(path, method, status string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(path, method, status).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for the specified cache type
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the specified cache type
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordSignal records one non-HOLD signal emitted by a strategy
func (m *MetricsRegistry) RecordSignal(strategy, kind string) {
	m.SignalsGenerated.WithLabelValues(strategy, kind).Inc()
}

// RecordPipelineError records a pipeline error
func (m *MetricsRegistry) RecordPipelineError(step, errorType string) {
	m.PipelineErrors.WithLabelValues(step, errorType).Inc()
	log.Warn().
		Str("step", step).
		Str("error_type", errorType).
		Msg("pipeline error recorded")
}

// IncrementActiveBacktests marks one backtest as started
func (m *MetricsRegistry) IncrementActiveBacktests() {
	m.ActiveBacktests.Inc()
	m.TotalBacktests.Inc()
}

// DecrementActiveBacktests marks one backtest as finished
func (m *MetricsRegistry) DecrementActiveBacktests() {
	m.ActiveBacktests.Dec()
}

// cacheTypes are the label values summed for the hit-ratio gauge.
var cacheTypes = []string{"funding"}

// updateCacheHitRatio calculates and updates the cache hit ratio
func (m *MetricsRegistry) updateCacheHitRatio() {
	hitMetric := &io_prometheus_client.Metric{}
	missMetric := &io_prometheus_client.Metric{}

	totalHits := 0.0
	totalMisses := 0.0

	for _, cacheType := range cacheTypes {
		if hitCounter, err := m.CacheHits.GetMetricWithLabelValues(cacheType); err == nil {
			if err := hitCounter.Write(hitMetric); err == nil {
				totalHits += hitMetric.GetCounter().GetValue()
			}
		}

		if missCounter, err := m.CacheMisses.GetMetricWithLabelValues(cacheType); err == nil {
			if err := missCounter.Write(missMetric); err == nil {
				totalMisses += missMetric.GetCounter().GetValue()
			}
		}
	}

	total := totalHits + totalMisses
	if total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// MetricsHandler returns an HTTP handler exposing this registry's metrics
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PipelineStep names the stages of the funding backtest pipeline
type PipelineStep string

const (
	StepFetch     PipelineStep = "fetch"
	StepWindow    PipelineStep = "window"
	StepSimulate  PipelineStep = "simulate"
	StepCompare   PipelineStep = "compare"
	StepPersist   PipelineStep = "persist"
	StepArtifacts PipelineStep = "artifacts"
)

// PipelineResult represents the result of a pipeline step
type PipelineResult string

const (
	ResultSuccess PipelineResult = "success"
	ResultError   PipelineResult = "error"
	ResultSkipped PipelineResult = "skipped"
)

// Global metrics registry instance
var DefaultMetrics *MetricsRegistry

// InitializeMetrics initializes the global metrics registry
func InitializeMetrics() {
	DefaultMetrics = NewMetricsRegistry()
	log.Info().Msg("Prometheus metrics registry initialized")
}
