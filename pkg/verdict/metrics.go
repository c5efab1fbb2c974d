package verdict

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the work done by the verdict server
type Metrics struct {
	registry *prometheus.Registry

	connections     prometheus.Counter
	verdicts        *prometheus.CounterVec
	storeErrors     prometheus.Counter
	thresholdErrors prometheus.Counter
	latency         prometheus.Histogram
	threshold       prometheus.Gauge
}

// NewMetrics builds a metrics container backed by reg. A new registry is
// created when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{registry: reg}

	m.connections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cydime_connections_total",
		Help: "Connections accepted by the verdict server",
	})
	m.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cydime_verdicts_total",
		Help: "Verdicts answered grouped by value",
	}, []string{"verdict"})
	m.storeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cydime_score_store_errors_total",
		Help: "Score lookups which failed and dropped the connection",
	})
	m.thresholdErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cydime_threshold_read_errors_total",
		Help: "Connections served without a readable threshold file",
	})
	m.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cydime_query_seconds",
		Help:    "Time from accepting a connection to writing its verdict",
		Buckets: prometheus.DefBuckets,
	})
	m.threshold = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cydime_threshold",
		Help: "Threshold read by the most recent connection",
	})

	reg.MustRegister(m.connections, m.verdicts, m.storeErrors, m.thresholdErrors, m.latency, m.threshold)

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) connection() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) answered(v Verdict, started time.Time) {
	if m != nil {
		m.verdicts.WithLabelValues(v.String()).Inc()
		m.latency.Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) storeError() {
	if m != nil {
		m.storeErrors.Inc()
	}
}

func (m *Metrics) thresholdRead(value float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.thresholdErrors.Inc()
		return
	}
	m.threshold.Set(value)
}
