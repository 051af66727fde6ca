package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// engine and the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	searchDuration  prometheus.Observer
	searchAttempts  prometheus.Histogram
	searchEmpty     prometheus.Counter
	allocations     *prometheus.CounterVec
	allocationClash prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
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

	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slot_search_duration_seconds",
		Help:    "Duration of slot search runs",
		Buckets: prometheus.DefBuckets,
	})

	searchAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slot_search_window_attempts",
		Help:    "Window advances needed before a search produced candidates",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	searchEmpty := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slot_search_empty_total",
		Help: "Searches that exhausted every window without a candidate",
	})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_allocations_total",
		Help: "Booking allocation outcomes",
	}, []string{"action"})

	allocationClash := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_allocation_conflicts_total",
		Help: "Allocations rejected because the slot was taken concurrently",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_cache_hits_total",
		Help: "Calendar cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_cache_misses_total",
		Help: "Calendar cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, searchDuration, searchAttempts, searchEmpty, allocations, allocationClash, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		searchDuration:  searchDuration,
		searchAttempts:  searchAttempts,
		searchEmpty:     searchEmpty,
		allocations:     allocations,
		allocationClash: allocationClash,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSlotSearch records one search run.
func (m *MetricsService) ObserveSlotSearch(duration time.Duration, attempts int, found bool) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(duration.Seconds())
	m.searchAttempts.Observe(float64(attempts))
	if !found {
		m.searchEmpty.Inc()
	}
}

// RecordAllocation counts a booking lifecycle action.
func (m *MetricsService) RecordAllocation(action string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(action).Inc()
}

// RecordAllocationConflict counts an allocation lost to a concurrent booking.
func (m *MetricsService) RecordAllocationConflict() {
	if m == nil {
		return
	}
	m.allocationClash.Inc()
}

// RecordCacheLookup counts calendar cache effectiveness.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
