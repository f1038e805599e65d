package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveLogin("failure")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `sitebudget_logins_total{result="failure"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := metricsRR.Body.String()
	assert.True(t, strings.Contains(body, `sitebudget_http_requests_total{code="418",route="/test"} 1`), body)
	assert.Contains(t, body, `sitebudget_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveEntry("Store", 20000)
	metrics.ObserveEntry("Store", 500)
	metrics.ObserveRejection("invalid_amount")
	metrics.ObserveChart("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.entriesTotal.WithLabelValues("Store")))
	assert.Equal(t, 20500.0, testutil.ToFloat64(metrics.entryAmount.WithLabelValues("Store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rejections.WithLabelValues("invalid_amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.chartRenders.WithLabelValues("ok")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveEntry("Store", 1)
	metrics.ObserveRejection("x")
	metrics.ObserveChart("error")
	metrics.ObserveLogin("success")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestTrackerRecordsOutcome(t *testing.T) {
	metrics := NewMetrics()

	require.NoError(t, metrics.Track("ledger.record_entry").End(nil))
	sentinel := errors.New("boom")
	require.ErrorIs(t, metrics.Track("ledger.record_entry").End(sentinel), sentinel)

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.operations, "sitebudget_operation_duration_seconds"))

	var nilMetrics *Metrics
	require.ErrorIs(t, nilMetrics.Track("chart.generate").End(sentinel), sentinel)
}
