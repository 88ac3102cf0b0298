package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	cptest "github.com/imamik/vcdflow/internal/testing"
)

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestTracing_LaunchSpans(t *testing.T) {
	t.Parallel()
	fx := cptest.NewSimFixture()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	o := newTestOrchestrator(t, fx.Sim, WithTracerProvider(tp))

	_, err := o.Launch(cptest.TestContext(t), Request{
		TemplateID: fx.ID(fx.Template),
		Name:       "traced",
		ShapeID:    "2048:2",
	})
	require.NoError(t, err)

	spans := rec.Ended()
	assert.Equal(t, []string{"instantiate", "customize", "configure", "deploy", "launch"}, spanNames(spans))

	root := spans[len(spans)-1]
	assert.Equal(t, codes.Ok, root.Status().Code)
	assert.Contains(t, root.Attributes(), attribute.String("vcdflow.target", fx.ID(fx.Template)))
	for _, child := range spans[:len(spans)-1] {
		assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID())
		assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	}
}

func TestTracing_FailedStepRecordsError(t *testing.T) {
	t.Parallel()
	fx := cptest.NewSimFixture()
	_, machines := fx.RunningGroup("g", "vm")
	fx.Sim.FailNext(controlplane.OpReboot, "guest tools not running")

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	o := newTestOrchestrator(t, fx.Sim, WithTracerProvider(tp))

	require.Error(t, o.Reboot(cptest.TestContext(t), fx.ID(machines[0])))

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	root := spans[len(spans)-1]
	assert.Equal(t, "reboot", root.Name())
	assert.Equal(t, codes.Error, root.Status().Code)
	assert.Contains(t, root.Status().Description, "guest tools not running")
	require.NotEmpty(t, root.Events())
	assert.Equal(t, "exception", root.Events()[0].Name)
}
