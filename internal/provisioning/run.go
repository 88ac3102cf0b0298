package provisioning

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runState tracks one workflow execution across logs, spans, metrics, events
// and the journal.
type runState struct {
	o    *Orchestrator
	ctx  context.Context
	span trace.Span
	run  Run
}

// begin starts a run. The returned context carries the run's logger and span.
func (o *Orchestrator) begin(ctx context.Context, workflow, target string) (context.Context, *runState) {
	id := uuid.NewString()
	ctx, span := o.tracer.Start(ctx, workflow, trace.WithAttributes(
		attribute.String("vcdflow.run_id", id),
		attribute.String("vcdflow.target", target),
	))
	ctx = logr.NewContext(ctx, o.log.WithValues("workflow", workflow, "run", id))

	rs := &runState{
		o:    o,
		ctx:  ctx,
		span: span,
		run: Run{
			ID:       id,
			Workflow: workflow,
			Target:   target,
			Status:   RunRunning,
			Started:  time.Now().UTC(),
		},
	}
	o.logger(ctx).Info("Workflow started", "target", target)
	rs.record()
	rs.emit(EventWorkflowStarted, target, "started", nil)
	return ctx, rs
}

// ID returns the run id.
func (rs *runState) ID() string { return rs.run.ID }

// end completes the run with its outcome.
func (rs *runState) end(result string, err error) {
	rs.run.Finished = time.Now().UTC()
	elapsed := rs.run.Finished.Sub(rs.run.Started)
	log := rs.o.logger(rs.ctx)

	if err != nil {
		rs.run.Status = RunFailed
		rs.run.Error = err.Error()
		rs.span.RecordError(err)
		rs.span.SetStatus(codes.Error, err.Error())
		rs.o.metrics.recordRun(rs.run.Workflow, "error", elapsed.Seconds())
		log.Error(err, "Workflow failed", "duration", elapsed.Round(time.Millisecond).String())
		rs.emit(EventWorkflowFailed, rs.run.Target, err.Error(), nil)
	} else {
		rs.run.Status = RunSucceeded
		rs.run.Result = result
		rs.span.SetStatus(codes.Ok, "")
		rs.o.metrics.recordRun(rs.run.Workflow, "success", elapsed.Seconds())
		log.Info("Workflow completed", "result", result, "duration", elapsed.Round(time.Millisecond).String())
		rs.emit(EventWorkflowCompleted, rs.run.Target, "completed", map[string]string{"result": result})
	}

	rs.record()
	rs.span.End()
}

// compensationFailed records an undo step that failed.
func (rs *runState) compensationFailed(step string, err error) {
	rs.run.CompensationErrors = append(rs.run.CompensationErrors, step+": "+err.Error())
	rs.o.metrics.recordCompensationFailure(rs.run.Workflow)
	rs.emit(EventCompensationFailed, rs.run.Target, err.Error(), map[string]string{"step": step})
}

// finalizationFailed records a finalization step that failed.
func (rs *runState) finalizationFailed(step string, err error) {
	rs.run.FinalizationErrors = append(rs.run.FinalizationErrors, step+": "+err.Error())
	rs.o.metrics.recordFinalizationFailure()
	rs.emit(EventFinalizationFailed, rs.run.Target, err.Error(), map[string]string{"step": step})
}

func (rs *runState) emit(t EventType, resource, msg string, fields map[string]string) {
	rs.o.events.Emit(rs.ctx, Event{
		Type:      t,
		Workflow:  rs.run.Workflow,
		RunID:     rs.run.ID,
		Message:   msg,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	})
}

func (rs *runState) record() {
	if rs.o.journal == nil {
		return
	}
	// The journal is written even when the workflow context is cancelled.
	if err := rs.o.journal.Record(context.WithoutCancel(rs.ctx), rs.run); err != nil {
		rs.o.logger(rs.ctx).Error(err, "Recording run failed")
	}
}

// step runs fn inside a child span named after the step.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, name)
	defer span.End()

	o.logger(ctx).V(1).Info("Step started", "step", name)
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// unwinder holds undo actions of completed steps.
type unwinder struct {
	rs    *runState
	steps []compensation
}

type compensation struct {
	name string
	fn   func(context.Context) error
}

func (u *unwinder) push(name string, fn func(context.Context) error) {
	u.steps = append(u.steps, compensation{name: name, fn: fn})
}

// unwind runs every undo action in reverse order of registration. Failures
// are logged and recorded on the run; they never replace the error that
// triggered the unwind.
func (u *unwinder) unwind(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	log := u.rs.o.logger(ctx)
	for i := len(u.steps) - 1; i >= 0; i-- {
		c := u.steps[i]
		log.Info("Compensating", "step", c.name)
		if err := c.fn(ctx); err != nil {
			log.Error(err, "Compensation failed", "step", c.name)
			u.rs.compensationFailed(c.name, err)
		}
	}
	u.steps = nil
}
