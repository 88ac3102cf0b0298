package hcloud

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the adapter collectors. HTTP request metrics come from the
// hcloud client itself (hcloud.WithInstrumentation).
type Metrics struct {
	actions    *prometheus.CounterVec
	tasksAlive prometheus.Gauge
}

// NewMetrics creates the adapter collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "hcloud",
				Name:      "actions_total",
				Help:      "hcloud actions observed reaching a final state by command and status",
			},
			[]string{"command", "status"},
		),
		tasksAlive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vcdflow",
				Subsystem: "hcloud",
				Name:      "tasks_pending",
				Help:      "Composite tasks that have not reached a final state",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.tasksAlive)
	}
	return m
}

func (m *Metrics) recordAction(command, status string) {
	m.actions.WithLabelValues(command, status).Inc()
}
