package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the orchestrator records to.
type Metrics struct {
	workflowRuns         *prometheus.CounterVec
	workflowDuration     *prometheus.HistogramVec
	taskWaits            *prometheus.CounterVec
	taskWaitDuration     *prometheus.HistogramVec
	idleWaitDuration     prometheus.Histogram
	transientErrors      *prometheus.CounterVec
	spuriousRejections   *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
	finalizationFailures prometheus.Counter
}

// NewMetrics creates the orchestrator collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		workflowRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Total number of workflow runs by workflow and result",
			},
			[]string{"workflow", "result"},
		),
		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vcdflow",
				Subsystem: "workflow",
				Name:      "duration_seconds",
				Help:      "Duration of workflow runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"workflow"},
		),
		taskWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "task",
				Name:      "waits_total",
				Help:      "Total number of task waits by operation and result",
			},
			[]string{"operation", "result"},
		),
		taskWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vcdflow",
				Subsystem: "task",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for tasks to reach a terminal state",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
			},
			[]string{"operation"},
		),
		idleWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "vcdflow",
				Subsystem: "resource",
				Name:      "idle_wait_duration_seconds",
				Help:      "Time spent waiting for resources to become idle",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
		),
		transientErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "poll",
				Name:      "transient_errors_total",
				Help:      "Re-fetch failures tolerated inside poll loops",
			},
			[]string{"loop"},
		),
		spuriousRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "controlplane",
				Name:      "spurious_rejections_total",
				Help:      "Requests rejected by the control plane and resubmitted",
			},
			[]string{"operation"},
		),
		compensationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "workflow",
				Name:      "compensation_failures_total",
				Help:      "Undo steps that failed after a workflow failure",
			},
			[]string{"workflow"},
		),
		finalizationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vcdflow",
				Subsystem: "capture",
				Name:      "finalization_failures_total",
				Help:      "Capture finalization steps that failed",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.workflowRuns,
			m.workflowDuration,
			m.taskWaits,
			m.taskWaitDuration,
			m.idleWaitDuration,
			m.transientErrors,
			m.spuriousRejections,
			m.compensationFailures,
			m.finalizationFailures,
		)
	}
	return m
}

func (m *Metrics) recordRun(workflow, result string, seconds float64) {
	m.workflowRuns.WithLabelValues(workflow, result).Inc()
	m.workflowDuration.WithLabelValues(workflow).Observe(seconds)
}

func (m *Metrics) recordTaskWait(operation, result string, seconds float64) {
	m.taskWaits.WithLabelValues(operation, result).Inc()
	m.taskWaitDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) recordIdleWait(seconds float64) {
	m.idleWaitDuration.Observe(seconds)
}

func (m *Metrics) recordTransient(loop string) {
	m.transientErrors.WithLabelValues(loop).Inc()
}

func (m *Metrics) recordRejection(operation string) {
	m.spuriousRejections.WithLabelValues(operation).Inc()
}

func (m *Metrics) recordCompensationFailure(workflow string) {
	m.compensationFailures.WithLabelValues(workflow).Inc()
}

func (m *Metrics) recordFinalizationFailure() {
	m.finalizationFailures.Inc()
}
