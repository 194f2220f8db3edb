package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-planner/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for generation, the
// filter pipeline and the bridge. A nil service is a no-op.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	schedulesGenerated *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	batchFlush         *prometheus.CounterVec
	llmAttempts        *prometheus.CounterVec
	llmRequest         prometheus.Histogram
	filterRejections   *prometheus.CounterVec
	bridgeRequests     *prometheus.CounterVec
	bridgeDuration     *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
}

// NewMetricsService registers the planner collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	schedulesGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_schedules_generated_total",
		Help: "Schedules produced by the builder",
	}, []string{"semester"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_generation_duration_seconds",
		Help:    "Wall time of one semester generation",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"semester"})

	batchFlush := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_batch_flush_total",
		Help: "Schedule write batches by outcome",
	}, []string{"outcome"})

	llmAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_llm_attempts_total",
		Help: "Language model HTTP attempts by outcome",
	}, []string{"outcome"})

	llmRequest := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_llm_request_seconds",
		Help:    "Latency of a single language model attempt",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	filterRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_filter_rejections_total",
		Help: "Filter queries refused by the SQL validator",
	}, []string{"reason"})

	bridgeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_bridge_requests_total",
		Help: "Bridge HTTP requests",
	}, []string{"operation", "status"})

	bridgeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_bridge_request_duration_seconds",
		Help:    "Duration of bridge HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_cache_lookups_total",
		Help: "Reply cache lookups by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_goroutines",
		Help: "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(schedulesGenerated, generationDuration, batchFlush, llmAttempts, llmRequest,
		filterRejections, bridgeRequests, bridgeDuration, cacheLookups, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		schedulesGenerated: schedulesGenerated,
		generationDuration: generationDuration,
		batchFlush:         batchFlush,
		llmAttempts:        llmAttempts,
		llmRequest:         llmRequest,
		filterRejections:   filterRejections,
		bridgeRequests:     bridgeRequests,
		bridgeDuration:     bridgeDuration,
		cacheLookups:       cacheLookups,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the backing registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGeneration records one finished semester run.
func (m *MetricsService) ObserveGeneration(semester models.Semester, schedules int, duration time.Duration) {
	if m == nil {
		return
	}
	label := semester.String()
	m.schedulesGenerated.WithLabelValues(label).Add(float64(schedules))
	m.generationDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordBatchFlush counts a write batch as ok or failed.
func (m *MetricsService) RecordBatchFlush(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.batchFlush.WithLabelValues(outcome).Inc()
}

// ObserveLLMAttempt matches the llm.Observer signature.
func (m *MetricsService) ObserveLLMAttempt(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmAttempts.WithLabelValues(outcome).Inc()
	m.llmRequest.Observe(duration.Seconds())
}

// RecordFilterRejection counts a validator refusal.
func (m *MetricsService) RecordFilterRejection(reason string) {
	if m == nil {
		return
	}
	m.filterRejections.WithLabelValues(reason).Inc()
}

// ObserveBridgeRequest records bridge request metrics.
func (m *MetricsService) ObserveBridgeRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "none"
	}
	m.bridgeRequests.WithLabelValues(operation, fmt.Sprintf("%d", status)).Inc()
	m.bridgeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
