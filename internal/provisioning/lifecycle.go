package provisioning

import (
	"context"
	"fmt"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

// PowerOn boots the machine with the given id.
func (o *Orchestrator) PowerOn(ctx context.Context, machineID string) error {
	return o.machineOperation(ctx, "power-on", machineID, controlplane.PowerOn{})
}

// PowerOff cuts the power of the machine with the given id.
func (o *Orchestrator) PowerOff(ctx context.Context, machineID string) error {
	return o.machineOperation(ctx, "power-off", machineID, controlplane.PowerOff{})
}

// Reboot restarts the machine with the given id.
func (o *Orchestrator) Reboot(ctx context.Context, machineID string) error {
	return o.machineOperation(ctx, "reboot", machineID, controlplane.Reboot{})
}

func (o *Orchestrator) machineOperation(ctx context.Context, workflow, machineID string, op controlplane.Operation) (err error) {
	machine, _, err := o.resolve(ctx, "machine", machineID)
	if err != nil {
		return err
	}

	ctx, rs := o.begin(ctx, workflow, machineID)
	defer func() { rs.end(machineID, err) }()

	return o.step(ctx, string(op.Kind()), func(ctx context.Context) error {
		machine, err := o.awaitPresent(ctx, machine)
		if err != nil {
			return err
		}
		return o.submitAndWait(ctx, machine.Locator, op)
	})
}

// RemoveImage deletes the captured template with the given id.
func (o *Orchestrator) RemoveImage(ctx context.Context, imageID string) (err error) {
	tpl, err := withClient(ctx, o, func(c controlplane.Client) (*controlplane.Resource, error) {
		return c.FetchTemplate(ctx, locator.ToHref(c.Endpoint(), imageID))
	})
	if err != nil {
		return fmt.Errorf("fetch image %s: %w", imageID, err)
	}
	if tpl == nil {
		return notFound("image", imageID)
	}

	ctx, rs := o.begin(ctx, "remove-image", imageID)
	defer func() { rs.end(imageID, err) }()

	return o.step(ctx, "delete-template", func(ctx context.Context) error {
		tpl, err := o.awaitPresent(ctx, tpl)
		if err != nil {
			return err
		}
		if err := o.submitAndWait(ctx, tpl.Locator, controlplane.DeleteTemplate{}); err != nil {
			return err
		}
		rs.emit(EventResourceDeleted, tpl.Locator, "image deleted", nil)
		return nil
	})
}

// IsSubscribed reports whether the credentials may use the control plane.
// Lack of authorization is a negative answer, not an error.
func (o *Orchestrator) IsSubscribed(ctx context.Context) (bool, error) {
	_, err := withClient(ctx, o, func(c controlplane.Client) (struct{}, error) {
		return struct{}{}, c.Probe(ctx)
	})
	switch {
	case err == nil:
		return true, nil
	case controlplane.IsAuthorization(err):
		o.logger(ctx).V(1).Info("Not subscribed", "reason", err.Error())
		return false, nil
	default:
		return false, err
	}
}
