package metrics

import (
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics are lazily initialized and registered with the manager's
// registry. They stay nil when business metrics are disabled.
var (
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpActiveConnections prometheus.Gauge
)

func initializeHTTPMetrics() {
	if httpRequestsTotal != nil {
		return
	}

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	httpActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	mm := GetInstance()
	mm.registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpActiveConnections,
	)
}

func businessMetricsEnabled() bool {
	return os.Getenv("ENABLE_BUSINESS_METRICS") == "true"
}

// RecordHTTPRequest records metrics for one served HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}
	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// IncActiveConnections increments the active connection gauge.
func IncActiveConnections() {
	if !businessMetricsEnabled() {
		return
	}
	initializeHTTPMetrics()
	httpActiveConnections.Inc()
}

// DecActiveConnections decrements the active connection gauge.
func DecActiveConnections() {
	if !businessMetricsEnabled() {
		return
	}
	initializeHTTPMetrics()
	httpActiveConnections.Dec()
}
