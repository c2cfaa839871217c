// Package metrics exposes Prometheus collectors for the worker and the orchestrator.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome status labels.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusSeedError = "seed_error"
)

var (
	crawlerOutcomesTotal             *prometheus.CounterVec
	crawlerResourcePagesSkippedTotal *prometheus.CounterVec
	crawlerScratchCleanupsTotal      *prometheus.CounterVec
	crawlerPacingDelaySeconds        *prometheus.HistogramVec
	workerReportAttemptsTotal        *prometheus.CounterVec
	workerRunsTotal                  *prometheus.CounterVec
	collectorBatchesTotal            *prometheus.CounterVec
	collectorRecordsIngestedTotal    prometheus.Counter
	httpRequestsTotal                *prometheus.CounterVec
	httpRequestDurationSeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_outcomes_total",
				Help: "Total number of download outcomes, labeled by site profile and status.",
			},
			[]string{"profile", "status"},
		)

		crawlerResourcePagesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_resource_pages_skipped_total",
				Help: "Intermediate resource pages skipped because they could not be fetched.",
			},
			[]string{"profile"},
		)

		crawlerScratchCleanupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_scratch_cleanups_total",
				Help: "Scratch directory removals, labeled by result.",
			},
			[]string{"result"},
		)

		crawlerPacingDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_pacing_delay_seconds",
				Help:    "Time spent waiting on per-host pacing before a download.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		workerReportAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_report_attempts_total",
				Help: "Result batch delivery attempts, labeled by result.",
			},
			[]string{"result"},
		)

		workerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_runs_total",
				Help: "Completed worker runs, labeled by final state.",
			},
			[]string{"state"},
		)

		collectorBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_batches_total",
				Help: "Result batches received by the collector, labeled by status.",
			},
			[]string{"status"},
		)

		collectorRecordsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_records_ingested_total",
				Help: "Total number of outcome records persisted by the collector.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// Push sends the default registry to a Pushgateway under the given job and instance.
func Push(url, job, instance string) error {
	Init()
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance).
		Push()
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// ObserveOutcome counts one download outcome.
func ObserveOutcome(profile, status string) {
	Init()
	crawlerOutcomesTotal.WithLabelValues(profile, status).Inc()
}

// ObserveSkippedResourcePage counts a resource page dropped by a two-hop extraction.
func ObserveSkippedResourcePage(profile string) {
	Init()
	crawlerResourcePagesSkippedTotal.WithLabelValues(profile).Inc()
}

// ObserveCleanup records a scratch directory removal.
func ObserveCleanup(err error) {
	Init()
	crawlerScratchCleanupsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObservePacingDelay records how long a download waited for its host slot.
func ObservePacingDelay(host string, waited time.Duration) {
	Init()
	crawlerPacingDelaySeconds.WithLabelValues(host).Observe(waited.Seconds())
}

// ObserveReportAttempt records one batch delivery attempt.
func ObserveReportAttempt(err error) {
	Init()
	workerReportAttemptsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRun records the final state of a worker run.
func ObserveRun(state string) {
	Init()
	workerRunsTotal.WithLabelValues(state).Inc()
}

// ObserveBatch records a batch received by the collector and the rows it stored.
func ObserveBatch(inserted int, err error) {
	Init()
	collectorBatchesTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil && inserted > 0 {
		collectorRecordsIngestedTotal.Add(float64(inserted))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
