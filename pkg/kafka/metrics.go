package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to Kafka, by topic and delivery outcome.",
		},
		[]string{"topic", "outcome"},
	)

	eventsPublishSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Time spent in WriteMessages. Near zero when the writer is async.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic string, started time.Time, err error) {
	eventsPublishSeconds.WithLabelValues(topic).Observe(time.Since(started).Seconds())
	countOutcome(topic, err)
}

func countOutcome(topic string, err error) {
	outcome := outcomeDelivered
	if err != nil {
		outcome = outcomeFailed
	}
	eventsPublished.WithLabelValues(topic, outcome).Inc()
}
