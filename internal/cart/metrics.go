package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart mutations by operation.",
		},
		[]string{"op"},
	)

	promotionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_promotion_transitions_total",
			Help: "Promotional gift lines added or removed by the sync step.",
		},
		[]string{"transition"},
	)

	sinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_sink_failures_total",
			Help: "Cart persistence failures downgraded to warnings.",
		},
		[]string{"op"},
	)

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_sessions_active",
		Help: "Cart stores currently held in memory.",
	})
)
