package headerfilter

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "headerfilter"

// Metrics holds the Prometheus collectors for chains and filters.
// A nil *Metrics records nothing.
type Metrics struct {
	chainRuns        prometheus.Counter
	filterApplied    *prometheus.CounterVec
	forwardedRecords *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chainRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chain_runs_total",
			Help:      "The number of header filter chain executions",
		}),
		filterApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "filter_applied_total",
			Help:      "The number of times each header filter ran",
		}, []string{"filter"}),
		forwardedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "forwarded",
			Name:      "records_total",
			Help:      "Forwarded header records by outcome",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.chainRuns, m.filterApplied, m.forwardedRecords} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) recordRun() {
	if m == nil {
		return
	}
	m.chainRuns.Inc()
}

func (m *Metrics) recordFilter(name string) {
	if m == nil {
		return
	}
	m.filterApplied.WithLabelValues(name).Inc()
}

func (m *Metrics) recordForwarded(emitted, dropped int) {
	if m == nil {
		return
	}
	m.forwardedRecords.WithLabelValues("emitted").Add(float64(emitted))
	m.forwardedRecords.WithLabelValues("dropped").Add(float64(dropped))
}
