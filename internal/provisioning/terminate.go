package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/util/retry"
)

// Terminate powers off the machine with the given id.
//
// Inside a group, the whole group is undeployed and deleted once no member
// is powered on anymore; otherwise the group is left in place. A
// single-machine container is powered off and undeployed. A machine that
// does not exist yields a *NotFoundError.
func (o *Orchestrator) Terminate(ctx context.Context, machineID string) (err error) {
	machine, _, err := o.resolve(ctx, "machine", machineID)
	if err != nil {
		return err
	}
	parent, err := o.fetch(ctx, machine.Parent)
	if err != nil {
		return fmt.Errorf("fetch parent of machine %s: %w", machineID, err)
	}
	if parent == nil {
		return notFound("group", machine.Parent)
	}

	ctx, rs := o.begin(ctx, "terminate", machineID)
	defer func() { rs.end(machineID, err) }()

	switch parent.Kind {
	case controlplane.KindGroup:
		return o.step(ctx, "terminate-in-group", func(ctx context.Context) error {
			return o.terminateInGroup(ctx, rs, machine, parent)
		})
	case controlplane.KindContainer:
		return o.step(ctx, "terminate-single", func(ctx context.Context) error {
			return o.terminateSingle(ctx, machine)
		})
	default:
		return fmt.Errorf("machine %s has a %s as parent, cannot terminate", machineID, parent.Kind)
	}
}

func (o *Orchestrator) terminateInGroup(ctx context.Context, rs *runState, machine, group *controlplane.Resource) error {
	log := o.logger(ctx)

	machine, err := o.awaitPresent(ctx, machine)
	if err != nil {
		return err
	}
	if machine.Status == controlplane.StatusPoweredOn {
		if err := o.submitAndWait(ctx, machine.Locator, controlplane.PowerOff{}); err != nil {
			return err
		}
	}
	if _, err := o.AwaitIdle(ctx, machine); err != nil {
		return err
	}

	group, err = o.fetch(ctx, group.Locator)
	if err != nil {
		return fmt.Errorf("fetch group: %w", err)
	}
	if group == nil {
		log.Info("Group already gone")
		return nil
	}

	running := 0
	for _, child := range group.Children {
		if child.Status == controlplane.StatusPoweredOn {
			running++
		}
	}
	if running > 0 {
		log.Info("Group still has running machines, keeping it", "group", group.Locator, "running", running)
		return nil
	}

	if group, err = o.AwaitIdle(ctx, group); err != nil || group == nil {
		return err
	}
	// Some control planes reject undeploy of a powered-off group; the delete
	// below does not depend on it.
	if _, err := o.submit(ctx, group.Locator, controlplane.Undeploy{Action: controlplane.UndeployPowerOff}); err != nil {
		log.Info("Undeploy rejected, continuing", "group", group.Locator, "error", err.Error())
	}
	if group, err = o.AwaitIdle(ctx, group); err != nil || group == nil {
		return err
	}
	for _, child := range group.Children {
		if _, err := o.AwaitIdle(ctx, child); err != nil {
			return err
		}
	}
	return o.deleteGroup(ctx, rs, group)
}

// terminateSingle powers off and undeploys a machine that is not part of a
// group.
func (o *Orchestrator) terminateSingle(ctx context.Context, machine *controlplane.Resource) error {
	if machine.Status == controlplane.StatusPoweredOn {
		m, err := o.awaitPresent(ctx, machine)
		if err != nil {
			return err
		}
		if err := o.submitAndWait(ctx, m.Locator, controlplane.PowerOff{}); err != nil {
			return err
		}
	}

	machine, err := o.AwaitIdle(ctx, machine)
	if err != nil || machine == nil {
		return err
	}
	if machine.Status != controlplane.StatusDeployed {
		return nil
	}
	if err := o.submitAndWait(ctx, machine.Locator, controlplane.Undeploy{Action: controlplane.UndeployPowerOff}); err != nil {
		return err
	}
	return o.awaitUndeployed(ctx, machine.Locator)
}

// awaitUndeployed polls href until it is no longer deployed or is gone.
func (o *Orchestrator) awaitUndeployed(ctx context.Context, href string) error {
	ctx, cancel := withOptionalTimeout(ctx, o.timeouts.IdleTimeout)
	defer cancel()

	started := time.Now()
	for {
		m, err := o.fetch(ctx, href)
		switch {
		case err != nil && ctx.Err() != nil:
			return waitError("undeploy", href, started, ctx.Err())
		case err != nil:
			o.logger(ctx).Info("Machine re-fetch failed, still waiting", "machine", href, "error", err.Error())
			o.metrics.recordTransient("undeploy")
		case m == nil, m.Status != controlplane.StatusDeployed:
			return nil
		}
		if err := sleep(ctx, o.timeouts.UndeployPollInterval); err != nil {
			return waitError("undeploy", href, started, err)
		}
	}
}

// deleteGroup submits the deletion of group, resubmitting while the control
// plane spuriously rejects it, and waits for the deletion task.
func (o *Orchestrator) deleteGroup(ctx context.Context, rs *runState, group *controlplane.Resource) error {
	log := o.logger(ctx).WithValues("group", group.Locator)

	attempts := max(o.timeouts.DeleteRetryMax, 1)
	var task *controlplane.Task
	err := retry.WithExponentialBackoff(ctx, func() error {
		t, err := o.submit(ctx, group.Locator, controlplane.DeleteGroup{})
		if err != nil {
			if controlplane.IsSpuriousRejection(err) {
				return err
			}
			return retry.Fatal(err)
		}
		task = t
		return nil
	},
		retry.WithFixedDelay(o.timeouts.DeleteRetryDelay),
		retry.WithMaxRetries(attempts-1),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Info("Group deletion rejected, resubmitting", "attempt", attempt, "error", err.Error())
			o.metrics.recordRejection(string(controlplane.OpDeleteGroup))
			rs.emit(EventRequestRejected, group.Locator, err.Error(), map[string]string{"attempt": fmt.Sprint(attempt)})
		}),
	)
	if err != nil {
		if retry.IsExhausted(err) {
			return fmt.Errorf("delete group %s: control plane kept rejecting the request: %w", group.Locator, err)
		}
		return fmt.Errorf("delete group %s: %w", group.Locator, err)
	}

	if err := o.AwaitTask(ctx, task); err != nil {
		return err
	}
	log.Info("Group deleted")
	rs.emit(EventResourceDeleted, group.Locator, "group deleted", nil)
	return nil
}

// destroyGroup removes a group created earlier in a failed workflow.
func (o *Orchestrator) destroyGroup(ctx context.Context, rs *runState, href string) error {
	group, err := o.fetch(ctx, href)
	if err != nil {
		return fmt.Errorf("fetch group: %w", err)
	}
	if group, err = o.AwaitIdle(ctx, group); err != nil || group == nil {
		return err
	}

	switch group.Status {
	case controlplane.StatusDeployed, controlplane.StatusPoweredOn, controlplane.StatusSuspended:
		if err := o.submitAndWait(ctx, href, controlplane.Undeploy{Action: controlplane.UndeployPowerOff}); err != nil {
			o.logger(ctx).Info("Undeploy before delete failed, continuing", "group", href, "error", err.Error())
		}
		if group, err = o.AwaitIdle(ctx, group); err != nil || group == nil {
			return err
		}
	}
	return o.deleteGroup(ctx, rs, group)
}
