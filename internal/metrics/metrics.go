// Package metrics holds the Prometheus collectors shared by the storefront.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	CatalogLookupMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_catalog_lookup_misses_total",
			Help: "Cart line items left out of a reconciliation because their catalog lookup failed",
		},
	)

	ReconcilePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reconcile_passes_total",
			Help: "Cart reconciliation passes by outcome (resolved, faulted, stale)",
		},
		[]string{"outcome"},
	)

	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)
)
