// Package telemetry holds the Prometheus collectors shared by the ingest
// pipeline and its ingress adapters.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes used as the "outcome" label.
const (
	OutcomeIngested = "ingested"
	OutcomeDropped  = "dropped"
	OutcomePoisoned = "poisoned"
	OutcomeRetried  = "retried"
)

var (
	IngestMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arq_ingest_messages_total",
		Help: "Queue messages handled by ingest workers, by outcome",
	}, []string{"outcome"})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arq_ingest_duration_seconds",
		Help:    "Time to ingest one queue message",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"delivery_type"})

	AggregationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arq_aggregation_failures_total",
		Help: "Metric aggregations that failed after a backup result was stored",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arq_ingest_queue_depth",
		Help: "Visible messages in the ingest queue at the last consumer poll",
	})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arq_deliveries_total",
		Help: "Backup result deliveries received by ingress adapters, by channel and status",
	}, []string{"channel", "status"})

	OrphanedContent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arq_orphaned_content",
		Help: "Received content not archived within the orphan threshold",
	}, []string{"delivery_type"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
