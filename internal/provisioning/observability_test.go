package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "minimal",
			event: Event{Type: EventWorkflowStarted, Message: "started"},
			want:  "workflow.started started",
		},
		{
			name: "with workflow and resource",
			event: Event{
				Type:     EventResourceDeleted,
				Workflow: "terminate",
				Resource: "/vApp/vapp-1",
				Message:  "group deleted",
			},
			want: "resource.deleted [terminate] resource=/vApp/vapp-1 group deleted",
		},
		{
			name: "fields sorted",
			event: Event{
				Type:     EventRequestRejected,
				Workflow: "terminate",
				Message:  "busy",
				Fields:   map[string]string{"b": "2", "a": "1"},
			},
			want: "request.rejected [terminate] busy (a=1, b=2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatEvent(tt.event))
		})
	}
}

func TestMultiSink(t *testing.T) {
	t.Parallel()
	a, b := &recordingSink{}, &recordingSink{}
	MultiSink{a, b}.Emit(context.Background(), Event{Type: EventWarning, Timestamp: time.Now()})

	assert.Equal(t, 1, a.count(EventWarning))
	assert.Equal(t, 1, b.count(EventWarning))
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	LogSink{Log: log}.Emit(context.Background(), Event{
		Type:     EventResourceCreated,
		Workflow: "launch",
		RunID:    "run-1",
		Resource: "/vApp/vapp-1",
		Message:  "group created",
		Fields:   map[string]string{"step": "instantiate"},
	})

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg"="group created"`)
	assert.Contains(t, lines[0], `"type"="resource.created"`)
	assert.Contains(t, lines[0], `"run"="run-1"`)
	assert.Contains(t, lines[0], `"step"="instantiate"`)
}

func TestNewMetrics_Registers(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.recordRun("launch", "success", 12)
	m.recordCompensationFailure("launch")
	m.recordFinalizationFailure()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.workflowRuns.WithLabelValues("launch", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.finalizationFailures))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "vcdflow_workflow_runs_total")
	assert.Contains(t, names, "vcdflow_workflow_compensation_failures_total")
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		NewMetrics(nil).recordTransient("idle")
		NewMetrics(nil).recordTransient("idle")
	})
}
