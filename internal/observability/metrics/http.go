package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics covers outgoing publishing requests and the status API
type HTTPMetrics struct {
	clientRequestsTotal   *prometheus.CounterVec
	clientRequestDuration *prometheus.HistogramVec
	clientRequestSize     prometheus.Histogram

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewHTTPMetrics creates and registers new HTTP metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_http_client_requests_total",
			Help: "Outgoing HTTP requests",
		},
		[]string{"method", "host", "status_code"}, // status_code is "error" on transport failures
	)
	m.clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyglow_http_client_request_duration_seconds",
			Help:    "Time taken for outgoing HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		},
		[]string{"method", "host"},
	)
	m.clientRequestSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyglow_http_client_request_size_bytes",
		Help:    "Size of outgoing request bodies",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount11), // 1KB to ~1GB
	})

	m.apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_api_requests_total",
			Help: "Requests served by the status API",
		},
		[]string{"method", "path", "status_code"},
	)
	m.apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyglow_api_request_duration_seconds",
			Help:    "Time taken to serve status API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.collectors = []prometheus.Collector{
		m.clientRequestsTotal, m.clientRequestDuration, m.clientRequestSize,
		m.apiRequestsTotal, m.apiRequestDuration,
	}
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveClient records one outgoing round trip. Its signature matches
// httpclient.Observer.
func (m *HTTPMetrics) ObserveClient(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	if req == nil {
		return
	}
	host := req.URL.Host
	status := StatusError
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	m.clientRequestsTotal.WithLabelValues(req.Method, host, status).Inc()
	m.clientRequestDuration.WithLabelValues(req.Method, host).Observe(elapsed.Seconds())
	if req.ContentLength > 0 {
		m.clientRequestSize.Observe(float64(req.ContentLength))
	}
}

// RecordAPIRequest records one request served by the API. path is the
// route pattern, not the raw URL.
func (m *HTTPMetrics) RecordAPIRequest(method, path string, statusCode int, elapsed time.Duration) {
	m.apiRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.apiRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
