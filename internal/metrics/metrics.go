package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	backtestsTotal     *prometheus.CounterVec
	backtestDuration   prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
	duplicatesDropped  prometheus.Counter
	commandsTotal      *prometheus.CounterVec
	jobsActive         *prometheus.GaugeVec
	alertsFired        *prometheus.CounterVec
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
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"strategy", "status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buddy_backtest_duration_seconds",
			Help:    "Backtest duration in seconds, including the price fetch",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_notifications_total",
			Help: "Total number of deliveries attempted per notifier",
		},
		[]string{"notifier", "status"},
	)
	r.duplicatesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_notifications_deduplicated_total",
			Help: "Messages dropped because they were already delivered recently",
		},
	)
	r.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_commands_total",
			Help: "Total number of chat commands handled",
		},
		[]string{"command", "status"},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buddy_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)
	r.alertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_alerts_fired_total",
			Help: "Alert rules fired on finished backtests",
		},
		[]string{"ticker"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.notificationsTotal)
	reg.MustRegister(r.duplicatesDropped)
	reg.MustRegister(r.commandsTotal)
	reg.MustRegister(r.jobsActive)
	reg.MustRegister(r.alertsFired)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordNotification records one delivery attempt.
func (r *Registry) RecordNotification(notifier, status string) {
	r.notificationsTotal.WithLabelValues(notifier, status).Inc()
}

// RecordDuplicate records a message suppressed by deduplication.
func (r *Registry) RecordDuplicate() {
	r.duplicatesDropped.Inc()
}

// RecordCommand records a handled chat command.
func (r *Registry) RecordCommand(command, status string) {
	r.commandsTotal.WithLabelValues(command, status).Inc()
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// RecordAlerts records n alerts fired for ticker.
func (r *Registry) RecordAlerts(ticker string, n int) {
	r.alertsFired.WithLabelValues(ticker).Add(float64(n))
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
