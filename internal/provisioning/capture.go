package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
	"github.com/imamik/vcdflow/internal/util/async"
	"github.com/imamik/vcdflow/internal/util/naming"
)

// CaptureJob is the handle of a running image capture. It completes with the
// id of the captured image or with the error that stopped the capture.
type CaptureJob struct {
	*async.Future[string]

	mu           sync.Mutex
	finalization []error
}

// RunID returns the id of the workflow run.
func (j *CaptureJob) RunID() string { return j.ID() }

// FinalizationErrors returns the failures of steps that restore the source
// group after capture. They never change the job's result.
func (j *CaptureJob) FinalizationErrors() []error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]error(nil), j.finalization...)
}

func (j *CaptureJob) addFinalizationError(err error) {
	j.mu.Lock()
	j.finalization = append(j.finalization, err)
	j.mu.Unlock()
}

// connectionSnapshot holds each machine's network connections keyed by
// machine id, as they were before the group was undeployed.
type connectionSnapshot map[string][]controlplane.NetworkConnection

// CaptureImage captures the group of the machine with the given id as a
// template and publishes it in the first unpublished catalog.
//
// The machine and its group are resolved before returning; the workflow then
// runs in the background and the caller follows it through the returned job.
// Cancelling ctx after CaptureImage returns does not stop the job; use
// CaptureJob.Cancel. Whatever the outcome, the group is afterwards redeployed,
// powered on and given back its original network connections.
func (o *Orchestrator) CaptureImage(ctx context.Context, machineID, name, description string) (*CaptureJob, error) {
	if machineID == "" || name == "" {
		return nil, fmt.Errorf("%w: machine id and image name are required", ErrInvalidRequest)
	}

	machine, ep, err := o.resolve(ctx, "machine", machineID)
	if err != nil {
		return nil, err
	}
	parent, err := o.fetch(ctx, machine.Parent)
	if err != nil {
		return nil, fmt.Errorf("fetch parent of machine %s: %w", machineID, err)
	}
	if parent == nil {
		return nil, notFound("group", machine.Parent)
	}

	runCtx, rs := o.begin(ctx, "capture", machineID)
	job := &CaptureJob{}
	job.Future = async.Go(runCtx, rs.ID(), func(ctx context.Context) (imageID string, err error) {
		defer func() { rs.end(imageID, err) }()

		snapshot := connectionSnapshot{}
		templateHref, captureErr := o.capture(ctx, ep, parent, naming.Normalize(name), description, snapshot)

		o.finalizeCapture(ctx, rs, job, parent, snapshot)

		if captureErr != nil {
			return "", captureErr
		}
		return o.imageID(ctx, templateHref)
	})
	return job, nil
}

// capture stops the group, records its connections and captures it. It
// returns the href of the new template.
func (o *Orchestrator) capture(ctx context.Context, ep locator.Endpoint, group *controlplane.Resource, name, description string, snapshot connectionSnapshot) (string, error) {
	err := o.step(ctx, "stop", func(ctx context.Context) error {
		if group.Status == controlplane.StatusPoweredOn {
			if err := o.submitAndWait(ctx, group.Locator, controlplane.PowerOff{}); err != nil {
				return err
			}
		}
		return o.submitAndWait(ctx, group.Locator, controlplane.Undeploy{Action: controlplane.UndeploySaveState})
	})
	if err != nil {
		return "", err
	}

	err = o.step(ctx, "snapshot-connections", func(ctx context.Context) error {
		fresh, err := o.fetch(ctx, group.Locator)
		if err != nil {
			return fmt.Errorf("fetch group: %w", err)
		}
		if fresh == nil {
			return notFound("group", group.Locator)
		}
		for _, child := range fresh.Children {
			id, err := locator.ToID(ep, child.Locator)
			if err != nil {
				return err
			}
			snapshot[id] = append([]controlplane.NetworkConnection(nil), child.Network...)
		}
		_, err = o.awaitPresent(ctx, fresh)
		return err
	})
	if err != nil {
		return "", err
	}

	var templateHref string
	err = o.step(ctx, "capture", func(ctx context.Context) error {
		op := controlplane.CaptureTemplate{Name: name, Description: description}
		task, err := o.submit(ctx, group.Locator, op)
		if err != nil {
			return err
		}
		if err := o.AwaitTask(ctx, task); err != nil {
			return err
		}
		if task == nil || task.Result == "" {
			return errors.New("capture returned no template")
		}
		templateHref = task.Result
		return nil
	})
	if err != nil {
		return "", err
	}

	err = o.step(ctx, "publish", func(ctx context.Context) error {
		return o.publish(ctx, templateHref, name, description)
	})
	return templateHref, err
}

// publish adds the template to the first unpublished catalog.
func (o *Orchestrator) publish(ctx context.Context, templateHref, name, description string) error {
	catalogs, err := withClient(ctx, o, func(c controlplane.Client) ([]controlplane.Catalog, error) {
		return c.ListCatalogs(ctx)
	})
	if err != nil {
		return fmt.Errorf("list catalogs: %w", err)
	}

	for _, cat := range catalogs {
		if cat.Published {
			continue
		}
		op := controlplane.AddToCatalog{Template: templateHref, Name: name, Description: description}
		if err := o.submitAndWait(ctx, cat.Locator, op); err != nil {
			return err
		}
		o.logger(ctx).Info("Template added to catalog", "catalog", cat.Name)
		return nil
	}

	o.logger(ctx).Info("No unpublished catalog, template not added to any catalog", "template", templateHref)
	o.events.Emit(ctx, Event{
		Type:     EventWarning,
		Workflow: "capture",
		Message:  "no unpublished catalog to add the template to",
		Resource: templateHref,
	})
	return nil
}

// finalizeCapture brings the group back: connections restored and connected,
// deployed and powered on. It runs detached from cancellation of ctx and
// bounded by FinalizeTimeout. Every failed step is recorded on the job and
// the run; later steps still run.
func (o *Orchestrator) finalizeCapture(ctx context.Context, rs *runState, job *CaptureJob, group *controlplane.Resource, snapshot connectionSnapshot) {
	ctx, cancel := withOptionalTimeout(context.WithoutCancel(ctx), o.timeouts.FinalizeTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "finalize")
	defer span.End()

	log := o.logger(ctx)
	failed := func(step string, err error) {
		log.Error(err, "Finalization step failed", "step", step)
		job.addFinalizationError(fmt.Errorf("%s: %w", step, err))
		rs.finalizationFailed(step, err)
	}

	fresh, err := o.awaitPresent(ctx, group)
	if err != nil {
		failed("await group", err)
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return
		}
		fresh = group
	}

	ep, err := o.endpoint(ctx)
	if err != nil {
		failed("open session", err)
	}
	for _, child := range fresh.Children {
		child, err := o.awaitPresent(ctx, child)
		if err != nil {
			failed("await machine", err)
			continue
		}
		id, err := locator.ToID(ep, child.Locator)
		if err != nil {
			failed("restore connections", err)
			continue
		}
		conns, ok := snapshot[id]
		if !ok {
			continue
		}
		restored := make([]controlplane.NetworkConnection, len(conns))
		for i, nc := range conns {
			nc.Connected = true
			restored[i] = nc
		}
		if err := o.submitAndWait(ctx, child.Locator, controlplane.SetNetworkConnections{Connections: restored}); err != nil {
			failed("restore connections of "+child.Name, err)
		}
	}

	if _, err := o.AwaitIdle(ctx, fresh); err != nil {
		failed("await group", err)
	}
	if err := o.submitAndWait(ctx, group.Locator, controlplane.Deploy{PowerOn: true}); err != nil {
		failed("redeploy", err)
	}
}

// imageID resolves the captured template to its caller-facing id.
func (o *Orchestrator) imageID(ctx context.Context, templateHref string) (string, error) {
	return withClient(ctx, o, func(c controlplane.Client) (string, error) {
		tpl, err := c.FetchTemplate(ctx, templateHref)
		if err != nil {
			return "", fmt.Errorf("fetch template: %w", err)
		}
		if tpl == nil {
			return "", notFound("template", templateHref)
		}
		img, err := o.translator.ToImage(c.Endpoint(), tpl)
		if err != nil {
			return "", err
		}
		return img.ID, nil
	})
}
