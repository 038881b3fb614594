package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_attempts_total",
			Help: "Finalize calls by terminal state.",
		},
		[]string{"state"},
	)

	decrementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_inventory_decrements_total",
			Help: "Inventory decrements applied, by reconcile mode.",
		},
		[]string{"mode"},
	)

	skippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_skipped_items_total",
			Help: "Line items left out of reconciliation, by reason.",
		},
		[]string{"reason"},
	)

	finalizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_checkout_finalize_duration_seconds",
			Help:    "Time spent reconciling inventory for one checkout.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)
)
