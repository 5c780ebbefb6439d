// Package metrics exposes the Prometheus collectors shared by the redirect and admin
// services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedirectsTotal counts redirect lookups by outcome (redirected, not_found, error).
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_redirects_total",
			Help: "Total number of redirect requests by outcome",
		},
		[]string{"outcome"},
	)

	// RedirectDuration tracks end-to-end redirect latency, click recording included.
	RedirectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ttemp_redirect_duration_seconds",
			Help:    "Duration of redirect requests in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// ClicksRecordedTotal counts click recording attempts by status (ok, error, dropped).
	ClicksRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_clicks_recorded_total",
			Help: "Total number of click recording attempts by status",
		},
		[]string{"status"},
	)

	// ClickQueueDepth is the number of clicks waiting in the async recorder queue.
	ClickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttemp_click_queue_depth",
			Help: "Number of clicks buffered for asynchronous recording",
		},
	)

	// GeoResolutionsTotal counts where a click's country came from (header, database, none).
	GeoResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_geo_resolutions_total",
			Help: "Total number of click geo resolutions by source",
		},
		[]string{"source"},
	)

	// GeoReaderReloadsTotal counts rebuilds of the in-process country reader.
	GeoReaderReloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttemp_geo_reader_reloads_total",
			Help: "Total number of offline country database reader rebuilds",
		},
	)

	// GeoUpstreamRequestsTotal counts calls to the dataset provider by kind (check, download) and result.
	GeoUpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_geo_upstream_requests_total",
			Help: "Total number of requests to the geo dataset provider",
		},
		[]string{"kind", "result"},
	)

	// LinkCacheTotal counts link cache lookups by result (hit, negative_hit, miss, error).
	LinkCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_link_cache_total",
			Help: "Total number of link cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts HTTP requests by service, route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttemp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "route", "method", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency by service and route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttemp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)
)

// ObserveRedirect records a finished redirect.
func ObserveRedirect(outcome string, d time.Duration) {
	RedirectsTotal.WithLabelValues(outcome).Inc()
	RedirectDuration.Observe(d.Seconds())
}
