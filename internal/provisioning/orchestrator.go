package provisioning

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

const tracerName = "github.com/imamik/vcdflow/internal/provisioning"

// Orchestrator runs provisioning workflows against one control plane.
// It is safe for concurrent use; concurrent workflows must not target the
// same resources.
type Orchestrator struct {
	dialer     controlplane.Dialer
	translator controlplane.Translator
	timeouts   *config.Timeouts
	shapes     config.ShapeCatalog
	cleanup    bool

	log     logr.Logger
	metrics *Metrics
	tracer  trace.Tracer
	journal RunRecorder
	events  EventSink
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts sets poll intervals and deadlines.
func WithTimeouts(t *config.Timeouts) Option {
	return func(o *Orchestrator) {
		o.timeouts = t
	}
}

// WithShapes sets the compute-shape catalog.
func WithShapes(c config.ShapeCatalog) Option {
	return func(o *Orchestrator) {
		o.shapes = c
	}
}

// WithTranslator sets how resources are turned into records.
func WithTranslator(t controlplane.Translator) Option {
	return func(o *Orchestrator) {
		o.translator = t
	}
}

// WithCleanupOnFailure controls whether a failed launch deletes the group it
// created. Enabled by default.
func WithCleanupOnFailure(enabled bool) Option {
	return func(o *Orchestrator) {
		o.cleanup = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracerProvider sets where workflow spans are sent.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// WithJournal records every run.
func WithJournal(r RunRecorder) Option {
	return func(o *Orchestrator) {
		o.journal = r
	}
}

// WithEventSink sets where workflow events are emitted. Events are logged
// when no sink is set.
func WithEventSink(s EventSink) Option {
	return func(o *Orchestrator) {
		o.events = s
	}
}

// New creates an Orchestrator that opens sessions through dialer.
func New(dialer controlplane.Dialer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dialer:     dialer,
		translator: controlplane.DefaultTranslator{},
		timeouts:   config.LoadTimeouts(),
		shapes:     config.DefaultShapeCatalog(),
		cleanup:    true,
		log:        logr.Discard(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if o.events == nil {
		o.events = LogSink{Log: o.log}
	}
	return o
}

// Shapes returns every compute shape machines can be launched with.
func (o *Orchestrator) Shapes() []config.Shape {
	return o.shapes.All()
}

// Shape returns the compute shape with the given id.
func (o *Orchestrator) Shape(id string) (config.Shape, bool) {
	return o.shapes.Lookup(id)
}

// logger returns the run-scoped logger carried by ctx, if any.
func (o *Orchestrator) logger(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return o.log
}

// withClient runs fn on a freshly opened session and closes it afterwards.
func withClient[T any](ctx context.Context, o *Orchestrator, fn func(controlplane.Client) (T, error)) (T, error) {
	var zero T
	sess, err := o.dialer.Open(ctx)
	if err != nil {
		return zero, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			o.logger(ctx).V(1).Info("Closing session failed", "error", cerr.Error())
		}
	}()
	return fn(sess)
}

// endpoint returns the endpoint of the control plane.
func (o *Orchestrator) endpoint(ctx context.Context) (locator.Endpoint, error) {
	return withClient(ctx, o, func(c controlplane.Client) (locator.Endpoint, error) {
		return c.Endpoint(), nil
	})
}

// fetch returns a fresh snapshot of href, or nil when it no longer exists.
func (o *Orchestrator) fetch(ctx context.Context, href string) (*controlplane.Resource, error) {
	return withClient(ctx, o, func(c controlplane.Client) (*controlplane.Resource, error) {
		return c.FetchResource(ctx, href)
	})
}

// resolve fetches the resource with the given caller-facing id.
func (o *Orchestrator) resolve(ctx context.Context, kind, id string) (*controlplane.Resource, locator.Endpoint, error) {
	type resolved struct {
		res *controlplane.Resource
		ep  locator.Endpoint
	}
	r, err := withClient(ctx, o, func(c controlplane.Client) (resolved, error) {
		ep := c.Endpoint()
		res, err := c.FetchResource(ctx, locator.ToHref(ep, id))
		return resolved{res: res, ep: ep}, err
	})
	if err != nil {
		return nil, r.ep, fmt.Errorf("fetch %s %s: %w", kind, id, err)
	}
	if r.res == nil {
		return nil, r.ep, notFound(kind, id)
	}
	return r.res, r.ep, nil
}

// submit starts op against href.
func (o *Orchestrator) submit(ctx context.Context, href string, op controlplane.Operation) (*controlplane.Task, error) {
	task, err := withClient(ctx, o, func(c controlplane.Client) (*controlplane.Task, error) {
		return c.Submit(ctx, href, op)
	})
	if err != nil {
		return nil, fmt.Errorf("submit %s to %s: %w", op.Kind(), href, err)
	}
	return task, nil
}

// submitAndWait starts op against href and waits for its task.
func (o *Orchestrator) submitAndWait(ctx context.Context, href string, op controlplane.Operation) error {
	task, err := o.submit(ctx, href, op)
	if err != nil {
		return err
	}
	return o.AwaitTask(ctx, task)
}

// mutate applies op to r, waits for its task and returns r once idle again.
func (o *Orchestrator) mutate(ctx context.Context, r *controlplane.Resource, op controlplane.Operation) (*controlplane.Resource, error) {
	if err := o.submitAndWait(ctx, r.Locator, op); err != nil {
		return nil, err
	}
	return o.awaitPresent(ctx, r)
}

// awaitPresent is AwaitIdle for resources that must still exist.
func (o *Orchestrator) awaitPresent(ctx context.Context, r *controlplane.Resource) (*controlplane.Resource, error) {
	fresh, err := o.AwaitIdle(ctx, r)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, notFound(r.Kind.String(), r.Locator)
	}
	return fresh, nil
}
