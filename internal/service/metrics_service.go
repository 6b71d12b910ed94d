package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight summary served on the JSON API.
type MetricsSnapshot struct {
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	UpstreamRequestsTotal     uint64    `json:"upstream_requests_total"`
	UpstreamFailuresTotal     uint64    `json:"upstream_failures_total"`
	AverageUpstreamDurationMs float64   `json:"average_upstream_duration_ms"`
	ActiveSessions            int       `json:"active_sessions"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	logins           *prometheus.CounterVec
	sessions         func() int

	requestCount          uint64
	requestDurationTotal  uint64
	upstreamCount         uint64
	upstreamFailures      uint64
	upstreamDurationTotal uint64
}

// NewMetricsService registers core Prometheus collectors. sessions, when
// non-nil, reports the number of live sessions for the active_sessions gauge.
func NewMetricsService(sessions func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of calls to the school REST API",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	upstreamTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Calls to the school REST API by status; status 0 is a transport failure",
	}, []string{"method", "route", "status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, upstreamTotal, logins, goroutines)

	svc := &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		upstreamTotal:    upstreamTotal,
		logins:           logins,
		sessions:         sessions,
	}

	if sessions != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dashboard_active_sessions",
			Help: "Sessions currently held by the session store",
		}, func() float64 {
			return float64(sessions())
		}))
	}

	return svc
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveUpstreamRequest records one call to the upstream API.
func (m *MetricsService) ObserveUpstreamRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.upstreamTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	atomic.AddUint64(&m.upstreamCount, 1)
	atomic.AddUint64(&m.upstreamDurationTotal, uint64(duration.Nanoseconds()))
	if status == 0 || status >= 400 {
		atomic.AddUint64(&m.upstreamFailures, 1)
	}
}

// ObserveLogin counts a login attempt.
func (m *MetricsService) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	upstream := atomic.LoadUint64(&m.upstreamCount)
	upDuration := atomic.LoadUint64(&m.upstreamDurationTotal)

	snap := MetricsSnapshot{
		RequestsTotal:         requests,
		UpstreamRequestsTotal: upstream,
		UpstreamFailuresTotal: atomic.LoadUint64(&m.upstreamFailures),
		Goroutines:            runtime.NumGoroutine(),
		GeneratedAt:           time.Now().UTC(),
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if upstream > 0 {
		snap.AverageUpstreamDurationMs = float64(upDuration) / float64(upstream) / float64(time.Millisecond)
	}
	if m.sessions != nil {
		snap.ActiveSessions = m.sessions()
	}
	return snap
}
