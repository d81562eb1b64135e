package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Individual GET attempts against the weather endpoint by result. Watch for: error share on a flaky link.
	FetchAttemptsTotal *prometheus.CounterVec

	// Latency per attempt. Watch for: p95 near the attempt timeout.
	FetchAttemptDuration *prometheus.HistogramVec

	// Backoff retries inside one fetch window.
	FetchRetriesTotal prometheus.Counter

	// Whole fetch windows by outcome (success, transient, timed_out).
	FetchOutcomesTotal *prometheus.CounterVec

	// Failed fetch windows by error category.
	FetchErrorsTotal *prometheus.CounterVec

	// Payloads rejected by the validator, by kind. Watch for: upstream format changes.
	ParseErrorsTotal *prometheus.CounterVec

	// Successful snapshot replacements.
	SnapshotUpdatesTotal prometheus.Counter

	// Weather pages rendered, by page.
	PageRendersTotal *prometheus.CounterVec

	// Scheduler duty firings (clock, fetch, page).
	DutyFiresTotal *prometheus.CounterVec

	// Scheduler phase: 0 bootstrapping, 1 running, 2 halted.
	SchedulerPhase prometheus.Gauge

	// Circuit breaker state: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Status server request rate and latency.
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitDeniedTotal prometheus.Counter

	snapshotAgeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchAttemptsTotal",
			Help: "Total number of GET attempts against the weather endpoint",
		},
		[]string{"result"},
	)
	FetchAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchAttemptDurationSeconds",
			Help:    "Weather endpoint latency in seconds (per attempt)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)
	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchRetriesTotal",
			Help: "Total number of backoff retries within fetch windows",
		},
	)
	FetchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchOutcomesTotal",
			Help: "Total number of fetch windows by outcome",
		},
		[]string{"outcome"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchErrorsTotal",
			Help: "Failed fetch windows by error category",
		},
		[]string{"category"},
	)
	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parseErrorsTotal",
			Help: "Payloads rejected by the snapshot validator",
		},
		[]string{"kind"},
	)
	SnapshotUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotUpdatesTotal",
			Help: "Total number of snapshot replacements",
		},
	)
	PageRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageRendersTotal",
			Help: "Weather pages rendered by page",
		},
		[]string{"page"},
	)
	DutyFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dutyFiresTotal",
			Help: "Scheduler duty firings by duty",
		},
		[]string{"duty"},
	)
	SchedulerPhase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedulerPhase",
			Help: "Scheduler phase (0=bootstrapping, 1=running, 2=halted)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of status server requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Status server latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of status server requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of status requests denied by the rate limiter (429)",
		},
	)

	registry.MustRegister(
		FetchAttemptsTotal, FetchAttemptDuration, FetchRetriesTotal,
		FetchOutcomesTotal, FetchErrorsTotal,
		ParseErrorsTotal, SnapshotUpdatesTotal,
		PageRendersTotal, DutyFiresTotal, SchedulerPhase,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RateLimitDeniedTotal,
	)
}

// RegisterSnapshotAge exposes the age of the current snapshot in seconds (-1 when
// none). Only the first call registers.
func RegisterSnapshotAge(age func() float64) {
	snapshotAgeOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "snapshotAgeSeconds",
				Help: "Seconds since the displayed snapshot was fetched; -1 before the first success",
			},
			age,
		))
	})
}

// RecordCircuitBreakerTransition counts a breaker transition and updates its state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
