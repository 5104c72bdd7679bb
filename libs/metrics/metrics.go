package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	ResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP response bodies in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 6),
		},
		[]string{"method", "path"},
	)
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(RequestCount, RequestDuration, ResponseSize)
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Observe records one finished request. Status is the numeric HTTP code;
// it is stringified here so label values stay bounded. A negative bytes
// value means the handler never wrote a body and is not recorded.
func Observe(method, path string, status int, seconds float64, bytes int) {
	code := strconv.Itoa(status)
	RequestCount.WithLabelValues(method, path, code).Inc()
	RequestDuration.WithLabelValues(method, path, code).Observe(seconds)
	if bytes >= 0 {
		ResponseSize.WithLabelValues(method, path).Observe(float64(bytes))
	}
}
