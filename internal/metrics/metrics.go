// Package metrics exposes the Prometheus collectors for the site and the
// recorders other packages report through.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthEventsTotal         *prometheus.CounterVec
	ProfileRepairsTotal     *prometheus.CounterVec
	RevalidationsTotal      *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheLookupsTotal       *prometheus.CounterVec
	CMSRequestsTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wanderher_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_auth_events_total",
				Help: "Signup, login and logout outcomes",
			},
			[]string{"flow", "outcome"},
		),
		ProfileRepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_profile_repairs_total",
				Help: "Profile repair attempts by result",
			},
			[]string{"result"},
		),
		RevalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_revalidations_total",
				Help: "Revalidation webhook calls by result",
			},
			[]string{"result"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_cache_invalidations_total",
				Help: "Cache invalidations by kind",
			},
			[]string{"kind"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_cache_lookups_total",
				Help: "Page cache lookups by result",
			},
			[]string{"result"},
		),
		CMSRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wanderher_cms_requests_total",
				Help: "Requests sent to the CMS by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.ProfileRepairsTotal,
		m.RevalidationsTotal,
		m.CacheInvalidationsTotal,
		m.CacheLookupsTotal,
		m.CMSRequestsTotal,
	)

	return m
}

// RecordAuthEvent counts one signup, login or logout outcome.
func (m *Metrics) RecordAuthEvent(flow, outcome string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(flow, outcome).Inc()
}

// RecordProfileRepair counts one profile repair attempt.
func (m *Metrics) RecordProfileRepair(result string) {
	if m == nil {
		return
	}
	m.ProfileRepairsTotal.WithLabelValues(result).Inc()
}

// RecordRevalidation counts one webhook call.
func (m *Metrics) RecordRevalidation(result string) {
	if m == nil {
		return
	}
	m.RevalidationsTotal.WithLabelValues(result).Inc()
}

// RecordCacheInvalidation counts invalidations of the given kind (path, tag, prefix).
func (m *Metrics) RecordCacheInvalidation(kind string) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheLookup counts a page cache hit or miss.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCMSRequest counts one CMS request.
func (m *Metrics) RecordCMSRequest(result string) {
	if m == nil {
		return
	}
	m.CMSRequestsTotal.WithLabelValues(result).Inc()
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware instruments requests. The route label is the chi route pattern
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
