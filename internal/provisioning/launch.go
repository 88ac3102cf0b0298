package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
	"github.com/imamik/vcdflow/internal/util/naming"
)

// Launch instantiates req's template and returns the first machine of the
// new group once it is configured and running.
//
// Every machine is given a hostname, bound to exactly one network and sized
// to the requested shape before the group is deployed. When a step fails
// after the group was created, the group is deleted again (unless cleanup on
// failure is disabled) and the original error is returned.
func (o *Orchestrator) Launch(ctx context.Context, req Request) (rec *controlplane.MachineRecord, err error) {
	shape, err := req.shape(o.shapes)
	if err != nil {
		return nil, err
	}

	ctx, rs := o.begin(ctx, "launch", req.TemplateID)
	undo := &unwinder{rs: rs}
	defer func() {
		if err != nil {
			undo.unwind(ctx)
		}
		result := ""
		if rec != nil {
			result = rec.ID
		}
		rs.end(result, err)
	}()

	name := naming.Normalize(req.Name)
	log := o.logger(ctx).WithValues("name", name)

	var group *controlplane.Resource
	err = o.step(ctx, "instantiate", func(ctx context.Context) error {
		group, err = o.instantiate(ctx, req, name, undo)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("Group created", "group", group.Locator)
	rs.emit(EventResourceCreated, group.Locator, "group created", nil)

	err = o.step(ctx, "customize", func(ctx context.Context) error {
		group, err = o.customizeGuests(ctx, group, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = o.step(ctx, "configure", func(ctx context.Context) error {
		group, err = o.configureMachines(ctx, group, req, shape)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = o.step(ctx, "deploy", func(ctx context.Context) error {
		rec, err = o.deployGroup(ctx, group)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// instantiate creates the group and waits until it has materialized and is
// idle.
func (o *Orchestrator) instantiate(ctx context.Context, req Request, name string, undo *unwinder) (*controlplane.Resource, error) {
	log := o.logger(ctx)

	type submitted struct {
		task *controlplane.Task
		ep   locator.Endpoint
	}
	sub, err := withClient(ctx, o, func(c controlplane.Client) (submitted, error) {
		ep := c.Endpoint()
		href := locator.ToHref(ep, req.TemplateID)
		tpl, err := c.FetchTemplate(ctx, href)
		if err != nil {
			return submitted{}, fmt.Errorf("fetch template %s: %w", req.TemplateID, err)
		}
		if tpl == nil {
			return submitted{}, notFound("template", req.TemplateID)
		}
		for _, child := range tpl.Children {
			for _, nc := range child.Network {
				log.V(1).Info("Template network connection",
					"machine", child.Name, "network", nc.Network, "index", nc.Index, "connected", nc.Connected)
			}
		}

		op := controlplane.Instantiate{
			Name:        name,
			Description: req.TemplateID,
			Location:    req.LocationID,
		}
		if req.NetworkID != "" {
			op.Network = locator.ToHref(ep, req.NetworkID)
		}
		task, err := c.Submit(ctx, href, op)
		if err != nil {
			return submitted{}, fmt.Errorf("submit %s to %s: %w", op.Kind(), href, err)
		}
		return submitted{task: task, ep: ep}, nil
	})
	if err != nil {
		return nil, err
	}
	if sub.task == nil || sub.task.Result == "" {
		return nil, errors.New("instantiate returned no group")
	}

	groupHref := sub.task.Result
	if o.cleanup {
		undo.push("delete group "+groupHref, func(ctx context.Context) error {
			return o.destroyGroup(ctx, undo.rs, groupHref)
		})
	}

	group, err := o.awaitMaterialized(ctx, groupHref)
	if err != nil {
		return nil, err
	}
	if group.Status == controlplane.StatusFailedCreation {
		return nil, &OperationError{Op: string(controlplane.OpInstantiate), Task: sub.task.Locator, Message: "group creation failed"}
	}
	return o.awaitPresent(ctx, group)
}

// awaitMaterialized polls a new group until it leaves the Unresolved state.
func (o *Orchestrator) awaitMaterialized(ctx context.Context, href string) (*controlplane.Resource, error) {
	ctx, cancel := withOptionalTimeout(ctx, o.timeouts.IdleTimeout)
	defer cancel()

	started := time.Now()
	for {
		group, err := o.fetch(ctx, href)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, waitError("group", href, started, ctx.Err())
		case err != nil:
			o.logger(ctx).Info("Group re-fetch failed, still waiting", "group", href, "error", err.Error())
			o.metrics.recordTransient("materialize")
		case group == nil:
			return nil, notFound("group", href)
		case group.Status != controlplane.StatusUnresolved:
			return group, nil
		}

		if err := sleep(ctx, o.timeouts.MaterializeInterval); err != nil {
			return nil, waitError("group", href, started, err)
		}
	}
}

// customizeGuests gives every machine a hostname derived from name.
func (o *Orchestrator) customizeGuests(ctx context.Context, group *controlplane.Resource, name string) (*controlplane.Resource, error) {
	if len(group.Children) == 0 {
		return nil, ErrNoChildren
	}

	total := len(group.Children)
	for i, child := range group.Children {
		child, err := o.awaitPresent(ctx, child)
		if err != nil {
			return nil, err
		}
		op := controlplane.SetGuestCustomization{Customization: controlplane.GuestCustomization{
			Enabled:  true,
			Hostname: naming.Hostname(name, i+1, total),
		}}
		if err := o.submitAndWait(ctx, child.Locator, op); err != nil {
			return nil, err
		}
	}
	return o.awaitPresent(ctx, group)
}

// configureMachines binds every machine to the target network and applies
// the shape.
func (o *Orchestrator) configureMachines(ctx context.Context, group *controlplane.Resource, req Request, shape config.Shape) (*controlplane.Resource, error) {
	network, err := o.targetNetwork(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	o.logger(ctx).Info("Binding machines", "network", network.Name, "shape", shape.ID)

	for _, child := range group.Children {
		child, err := o.awaitPresent(ctx, child)
		if err != nil {
			return nil, err
		}
		ops := []controlplane.Operation{
			controlplane.SetNetworkConnections{},
			controlplane.SetNetworkConnections{Connections: []controlplane.NetworkConnection{{
				Network:    network.Locator,
				Index:      0,
				Connected:  true,
				Allocation: controlplane.AllocationPool,
			}}},
			controlplane.SetCPU{Count: shape.CPU},
			controlplane.SetMemory{MB: shape.MemoryMB},
		}
		for _, op := range ops {
			if child, err = o.mutate(ctx, child, op); err != nil {
				return nil, err
			}
		}
	}
	return o.awaitPresent(ctx, group)
}

// targetNetwork resolves the requested network, or picks the first one.
func (o *Orchestrator) targetNetwork(ctx context.Context, networkID string) (*controlplane.Network, error) {
	return withClient(ctx, o, func(c controlplane.Client) (*controlplane.Network, error) {
		if networkID != "" {
			n, err := c.FetchNetwork(ctx, locator.ToHref(c.Endpoint(), networkID))
			if err != nil {
				return nil, fmt.Errorf("fetch network %s: %w", networkID, err)
			}
			if n == nil {
				return nil, notFound("network", networkID)
			}
			return n, nil
		}

		networks, err := c.ListNetworks(ctx)
		if err != nil {
			return nil, fmt.Errorf("list networks: %w", err)
		}
		if len(networks) == 0 {
			return nil, ErrNoNetwork
		}
		return &networks[0], nil
	})
}

// deployGroup deploys and powers on the group and returns its first machine.
func (o *Orchestrator) deployGroup(ctx context.Context, group *controlplane.Resource) (*controlplane.MachineRecord, error) {
	if err := o.submitAndWait(ctx, group.Locator, controlplane.Deploy{PowerOn: true}); err != nil {
		return nil, err
	}

	href := group.Locator
	group, err := o.fetch(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("fetch group: %w", err)
	}
	if group == nil {
		return nil, notFound("group", href)
	}
	if len(group.Children) == 0 {
		return nil, ErrNoChildren
	}

	ep, err := o.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	machines := make([]*controlplane.MachineRecord, 0, len(group.Children))
	for _, child := range group.Children {
		m, err := o.translator.ToMachine(ep, group, child)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines[0], nil
}
