package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ammcpi"

var (
	invocationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "invocations_total"),
		"Cross-program invocations handed to the runtime.",
		[]string{"op"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "invocation_failures_total"),
		"Invocations the runtime rejected.",
		[]string{"op"}, nil,
	)
	rejectedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "dispatch_rejected_total"),
		"Dispatches refused before reaching the runtime.",
		nil, nil,
	)
	latencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "invocation_duration_seconds"),
		"Time spent inside the runtime per invocation.",
		[]string{"op"}, nil,
	)
)

// Collector exports Metrics to Prometheus.
type Collector struct {
	metrics *Metrics
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(m *Metrics) *Collector {
	return &Collector{metrics: m}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- invocationsDesc
	ch <- failuresDesc
	ch <- rejectedDesc
	ch <- latencyDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	for op, s := range snap.Ops {
		name := op.String()
		ch <- prometheus.MustNewConstMetric(invocationsDesc, prometheus.CounterValue, float64(s.Invocations), name)
		ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(s.Failures), name)
		ch <- prometheus.MustNewConstSummary(latencyDesc, s.Latency.Count, s.Latency.Sum.Seconds(), nil, name)
	}
	ch <- prometheus.MustNewConstMetric(rejectedDesc, prometheus.CounterValue, float64(snap.Rejected))
}
