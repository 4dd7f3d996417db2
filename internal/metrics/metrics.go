// Package metrics holds the Prometheus collectors of the catalog.
//
// Collectors live on a private registry, so tests can create as many
// Metrics values as they like without "duplicate metrics collector" panics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records catalog operations and HTTP traffic.
// It satisfies service.OperationObserver.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	operations      *prometheus.CounterVec
	overdueLoans    prometheus.Gauge
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "biblioteca_operations_total",
		Help: "Catalog operations by name and outcome",
	}, []string{"op", "outcome"})

	overdueLoans := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "biblioteca_overdue_loans",
		Help: "Overdue loans seen by the last full loans listing",
	})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(operations, overdueLoans, requestTotal, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		operations:      operations,
		overdueLoans:    overdueLoans,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
	}
}

// Handler serves the exposition format. A nil Metrics answers 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveOperation counts one catalog operation as "ok" or "error".
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveOverdue(count int) {
	if m == nil {
		return
	}
	m.overdueLoans.Set(float64(count))
}

// ObserveHTTPRequest records one finished request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
}
