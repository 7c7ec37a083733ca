// Package observe registers the service's Prometheus metrics.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the countwatch Prometheus instruments.
type Metrics struct {
	MessagesDispatched  prometheus.Counter
	DispatchFailures    prometheus.Counter
	SamplesFetched      prometheus.Counter
	SampleFailures      prometheus.Counter
	RecordsWritten      prometheus.Counter
	RecordsDuplicate    prometheus.Counter
	MessagesRedelivered prometheus.Counter
	MessagesDropped     prometheus.Counter
	QueueDepth          prometheus.Gauge
	FetchLatency        prometheus.Histogram
}

// New builds and registers the metrics on reg. Pass
// prometheus.DefaultRegisterer in the service binary.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_messages_dispatched_total",
			Help: "Schedule messages successfully submitted to the queue.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_dispatch_failures_total",
			Help: "Schedule messages that failed to submit.",
		}),
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_samples_fetched_total",
			Help: "Successful counter API fetches.",
		}),
		SampleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_sample_failures_total",
			Help: "Failed counter API fetches, transport and validation alike.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_records_written_total",
			Help: "Metric records newly committed to the store.",
		}),
		RecordsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_records_duplicate_total",
			Help: "Writes suppressed because the slot was already recorded.",
		}),
		MessagesRedelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_messages_redelivered_total",
			Help: "Queue messages redelivered after a failed handling attempt.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "countwatch_messages_dropped_total",
			Help: "Queue messages dropped after exhausting the receive limit.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "countwatch_queue_depth",
			Help: "Messages currently pending or scheduled in the queue.",
		}),
		FetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "countwatch_fetch_latency_seconds",
			Help:    "Latency of counter API fetches.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.MessagesDispatched,
		m.DispatchFailures,
		m.SamplesFetched,
		m.SampleFailures,
		m.RecordsWritten,
		m.RecordsDuplicate,
		m.MessagesRedelivered,
		m.MessagesDropped,
		m.QueueDepth,
		m.FetchLatency,
	)
	return m
}

// NewForTest builds metrics on a throwaway registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
