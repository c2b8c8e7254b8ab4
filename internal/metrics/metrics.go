// Package metrics exposes Prometheus instruments for the HTTP surface and
// for backtests, signals and scans. Every Record method is safe to call on
// a nil *Registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tradelab"

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	signalsGenerated *prometheus.CounterVec
	scanOutcomes     *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	fetchFailures    *prometheus.CounterVec
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesTotal      *prometheus.CounterVec
	jobsActive       *prometheus.GaugeVec
	watchlistSymbols prometheus.Gauge
	alertsRouted     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		signalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_generated_total",
				Help:      "Signals produced by scans, by action",
			},
			[]string{"action"},
		),
		scanOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_symbols_total",
				Help:      "Symbols scanned, by outcome",
			},
			[]string{"outcome"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Watchlist scan duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collector_failures_total",
				Help:      "Failed market data fetches, by collector",
			},
			[]string{"collector"},
		),
		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtests_total",
				Help:      "Total number of backtests",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_duration_seconds",
				Help:      "Backtest duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_trades_total",
				Help:      "Simulated trades, by side and exit reason",
			},
			[]string{"side", "reason"},
		),
		jobsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Number of active jobs",
			},
			[]string{"type"},
		),
		watchlistSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watchlist_symbols",
				Help:      "Number of symbols in watchlist",
			},
		),
		alertsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_routed_total",
				Help:      "Signal alerts that passed the router filters, by action",
			},
			[]string{"action"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Alert deliveries, by notifier and status",
			},
			[]string{"notifier", "status"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.signalsGenerated,
		r.scanOutcomes,
		r.scanDuration,
		r.fetchFailures,
		r.backtestsTotal,
		r.backtestDuration,
		r.tradesTotal,
		r.jobsActive,
		r.watchlistSymbols,
		r.alertsRouted,
		r.notifications,
	)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r != nil {
		r.httpRequestsInFlight.Inc()
	}
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r != nil {
		r.httpRequestsInFlight.Dec()
	}
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(action string) {
	if r != nil {
		r.signalsGenerated.WithLabelValues(action).Inc()
	}
}

// RecordScanOutcome counts one scanned symbol: "ok", "no_data" or "timeout".
func (r *Registry) RecordScanOutcome(outcome string) {
	if r != nil {
		r.scanOutcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordScan records a completed watchlist scan.
func (r *Registry) RecordScan(duration time.Duration) {
	if r != nil {
		r.scanDuration.Observe(duration.Seconds())
	}
}

// RecordFetchFailure counts a failed collector call.
func (r *Registry) RecordFetchFailure(collector string) {
	if r != nil {
		r.fetchFailures.WithLabelValues(collector).Inc()
	}
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration.Seconds())
}

// RecordTrade records a simulated trade. Entries have an empty reason.
func (r *Registry) RecordTrade(side, reason string) {
	if r == nil {
		return
	}
	if reason == "" {
		reason = "entry"
	}
	r.tradesTotal.WithLabelValues(side, reason).Inc()
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	if r != nil {
		r.jobsActive.WithLabelValues(jobType).Set(float64(count))
	}
}

// SetWatchlistSize sets the watchlist size.
func (r *Registry) SetWatchlistSize(size int) {
	if r != nil {
		r.watchlistSymbols.Set(float64(size))
	}
}

// RecordAlert counts an alert routed to the notifiers.
func (r *Registry) RecordAlert(action string) {
	if r != nil {
		r.alertsRouted.WithLabelValues(action).Inc()
	}
}

// RecordNotification counts one delivery attempt.
func (r *Registry) RecordNotification(notifier string, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.notifications.WithLabelValues(notifier, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
