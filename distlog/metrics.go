package distlog

import "github.com/prometheus/client_golang/prometheus"

// writerMetrics holds metrics related to the redo log writer.
type writerMetrics struct {
	appends   *prometheus.CounterVec
	appendDur *prometheus.HistogramVec

	orderingWait     prometheus.Histogram
	orderingTimeouts prometheus.Counter
	pendingTxns      prometheus.Gauge
}

func newWriterMetrics() *writerMetrics {
	const (
		namespace = "redolog"
		subsystem = "writer"
	)

	return &writerMetrics{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appends_total",
			Help:      "Number of completed stream appends by shard and result",
		}, []string{"shard", "result"}),

		appendDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "append_duration_seconds",
			Help:      "Histogram of times between issuing an append and its completion",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 8),
		}, []string{"shard"}),

		orderingWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ordering_wait_duration_seconds",
			Help:      "Histogram of times end markers waited for their start marker",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 8),
		}),

		orderingTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ordering_timeouts_total",
			Help:      "Number of end markers rejected because their start marker did not complete in time",
		}),

		pendingTxns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_transactions",
			Help:      "Number of start markers submitted but not yet completed",
		}),
	}
}

// PrometheusCollectors satisfies the prom.PrometheusCollector interface.
func (m *writerMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appends,
		m.appendDur,
		m.orderingWait,
		m.orderingTimeouts,
		m.pendingTxns,
	}
}
