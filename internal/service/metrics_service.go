package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the optimizer itself.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	activeRuns    prometheus.Gauge
	generations   prometheus.Counter
	bestFitness   *prometheus.GaugeVec
	runDuration   prometheus.Histogram
}

// NewMetricsService registers the service's Prometheus collectors on a
// private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	runsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optimizer_runs_started_total",
		Help: "Total optimization runs picked up by a worker",
	})

	runsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optimizer_runs_completed_total",
		Help: "Total optimization runs that finished with a result",
	})

	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optimizer_runs_failed_total",
		Help: "Total optimization runs that ended in an error",
	})

	activeRuns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "optimizer_active_runs",
		Help: "Optimization runs currently executing",
	})

	generations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optimizer_generations_total",
		Help: "Total generations evolved across all runs and eras",
	})

	bestFitness := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optimizer_best_fitness",
		Help: "Best fitness observed so far per run",
	}, []string{"run_id"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "optimizer_run_duration_seconds",
		Help:    "Wall-clock duration of finished optimization runs",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 28800},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, runsStarted, runsCompleted,
		runsFailed, activeRuns, generations, bestFitness, runDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		runsStarted:     runsStarted,
		runsCompleted:   runsCompleted,
		runsFailed:      runsFailed,
		activeRuns:      activeRuns,
		generations:     generations,
		bestFitness:     bestFitness,
		runDuration:     runDuration,
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

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RunStarted marks one run as executing.
func (m *MetricsService) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RunProgress records searched generations and the current best fitness.
func (m *MetricsService) RunProgress(runID string, newGenerations int, best float64) {
	if m == nil {
		return
	}
	m.generations.Add(float64(newGenerations))
	m.bestFitness.WithLabelValues(runID).Set(best)
}

// RunCompleted marks one run as finished.
func (m *MetricsService) RunCompleted(runID string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsCompleted.Inc()
	m.activeRuns.Dec()
	m.runDuration.Observe(elapsed.Seconds())
	m.bestFitness.DeleteLabelValues(runID)
}

// RunFailed marks one run as failed.
func (m *MetricsService) RunFailed(runID string) {
	if m == nil {
		return
	}
	m.runsFailed.Inc()
	m.activeRuns.Dec()
	m.bestFitness.DeleteLabelValues(runID)
}
