package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and exposes counters for the
// HTTP surface, the plan cache and admission allocation outcomes.
type MetricsService struct {
	registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	admissionOutcomes *prometheus.CounterVec
}

// NewMetricsService constructs and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	s := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP request count by method, route and status.",
		}, []string{"method", "route", "status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hit count by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache miss count by cache name.",
		}, []string{"cache"}),
		admissionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_allocations_total",
			Help: "Admission allocation attempts by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		s.requestDuration,
		s.requestTotal,
		s.cacheHits,
		s.cacheMisses,
		s.admissionOutcomes,
	)
	return s
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	label := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, route, label).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, route, label).Inc()
}

// ObserveCacheHit records a cache hit.
func (s *MetricsService) ObserveCacheHit(cache string) {
	s.cacheHits.WithLabelValues(cache).Inc()
}

// ObserveCacheMiss records a cache miss.
func (s *MetricsService) ObserveCacheMiss(cache string) {
	s.cacheMisses.WithLabelValues(cache).Inc()
}

// ObserveAdmissionOutcome records an allocation attempt result.
func (s *MetricsService) ObserveAdmissionOutcome(outcome string) {
	s.admissionOutcomes.WithLabelValues(outcome).Inc()
}
