package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	entriesTotal    *prometheus.CounterVec
	entryAmount     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	chartRenders    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	operations      *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the application metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitebudget_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_ledger_entries_total",
		Help: "Ledger entries recorded by department.",
	}, []string{"department"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_ledger_amount_total",
		Help: "Sum of recorded ledger amounts by department.",
	}, []string{"department"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_ledger_rejections_total",
		Help: "Ledger submissions rejected by reason.",
	}, []string{"reason"})
	charts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_chart_renders_total",
		Help: "Dashboard chart renders by result.",
	}, []string{"result"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitebudget_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	operations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitebudget_operation_duration_seconds",
		Help:    "Duration of ledger writes and chart generation by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})
	registry.MustRegister(
		requests, duration, entries, amount, rejections, charts, logins, operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		entriesTotal:    entries,
		entryAmount:     amount,
		rejections:      rejections,
		chartRenders:    charts,
		logins:          logins,
		operations:      operations,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveEntry counts a committed ledger entry.
func (m *Metrics) ObserveEntry(department string, amount float64) {
	if m == nil {
		return
	}
	m.entriesTotal.WithLabelValues(department).Inc()
	m.entryAmount.WithLabelValues(department).Add(amount)
}

// ObserveRejection counts a refused ledger submission.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveChart counts a chart render attempt; result is ok, empty or error.
func (m *Metrics) ObserveChart(result string) {
	if m == nil {
		return
	}
	m.chartRenders.WithLabelValues(result).Inc()
}

// ObserveLogin counts a login attempt; result is success or failure.
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
