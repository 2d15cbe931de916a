// Package metrics provides Prometheus metrics for the bridge node and worker.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocw_bridge"

var (
	// FetchDuration is a histogram of remote price fetch latency.
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of price endpoint requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		},
	)

	// FetchErrorsTotal is a counter of failed fetches by reason.
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price fetches",
		},
		[]string{"reason"},
	)

	// RoundsTotal is a counter of worker rounds by outcome.
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_rounds_total",
			Help:      "Total number of worker rounds by outcome (ok, skipped or the error kind)",
		},
		[]string{"outcome"},
	)

	// SubmissionsTotal is a counter of signed payload submissions.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of signed payload submissions",
		},
		[]string{"status"},
	)

	// AdmissionsTotal is a counter of admission decisions.
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Total number of pool admission decisions",
		},
		[]string{"source", "result"},
	)

	// PoolSize is a gauge of pending transactions.
	PoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_pending",
			Help:      "Number of pending transactions in the pool",
		},
	)

	// WindowLength is a gauge of the on-ledger price window length.
	WindowLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_length",
			Help:      "Number of prices held in the on-ledger window",
		},
	)

	// LatestPrice is a gauge of the most recently appended fixed-point price.
	LatestPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_price",
			Help:      "Most recent fixed-point price appended on-ledger",
		},
	)

	// BlockHeight is a gauge of the best block height.
	BlockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Best block height",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// NodeFailoversTotal is a counter of remote node endpoint failovers.
	NodeFailoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_failovers_total",
			Help:      "Total number of remote node endpoint failovers",
		},
	)
)

var registerOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FetchDuration,
			FetchErrorsTotal,
			RoundsTotal,
			SubmissionsTotal,
			AdmissionsTotal,
			PoolSize,
			WindowLength,
			LatestPrice,
			BlockHeight,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			NodeFailoversTotal,
		)
	})
}

// ServeHTTP serves Prometheus metrics on addr at path.
func ServeHTTP(addr, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// RecordFetch records a completed fetch. reason is empty on success.
func RecordFetch(duration time.Duration, reason string) {
	FetchDuration.Observe(duration.Seconds())
	if reason != "" {
		FetchErrorsTotal.WithLabelValues(reason).Inc()
	}
}

// RecordRound records the outcome of a worker round.
func RecordRound(outcome string) {
	RoundsTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmission records a payload submission.
func RecordSubmission(status string) {
	SubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordAdmission records a pool admission decision.
func RecordAdmission(source, result string) {
	AdmissionsTotal.WithLabelValues(source, result).Inc()
}

// RecordPoolSize records the number of pending transactions.
func RecordPoolSize(n int) {
	PoolSize.Set(float64(n))
}

// RecordWindow records the window length and latest price after an append.
func RecordWindow(length int, latest uint64) {
	WindowLength.Set(float64(length))
	LatestPrice.Set(float64(latest))
}

// RecordBlock records a new best block.
func RecordBlock(height uint64) {
	BlockHeight.Set(float64(height))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordNodeFailover records a remote node failover.
func RecordNodeFailover() {
	NodeFailoversTotal.Inc()
}
