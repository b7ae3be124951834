package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/scale.report/internal/history"
)

// Metrics counts cycle outcomes and tracks the last persisted reading.
type Metrics struct {
	cycles     *prometheus.CounterVec
	lastWeight *prometheus.GaugeVec
}

// NewMetrics registers the pipeline's collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scale",
			Name:      "pipeline_cycles_total",
			Help:      "Measurement cycles by outcome.",
		}, []string{"outcome"}),
		lastWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scale",
			Name:      "last_weight_kg",
			Help:      "Most recently persisted weight per user.",
		}, []string{"user"}),
	}
	reg.MustRegister(m.cycles, m.lastWeight)
	return m
}

func (m *Metrics) countCycle(outcome string) {
	m.cycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRecord(r history.Record) {
	m.lastWeight.WithLabelValues(r.Username).Set(r.WeightKg)
}
