package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func (s *session) FetchResource(ctx context.Context, href string) (*controlplane.Resource, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	r, err := s.a.parse(href)
	if err != nil {
		return nil, err
	}

	switch r.collection {
	case pathServers:
		srv, err := s.a.server(ctx, r)
		if err != nil || srv == nil {
			return nil, err
		}
		return s.a.machine(ctx, srv)
	case pathContainers:
		srv, err := s.a.server(ctx, r)
		if err != nil || srv == nil || srv.PlacementGroup != nil {
			return nil, err
		}
		return s.a.container(ctx, srv)
	case pathPlacementGroups:
		return s.a.group(ctx, r)
	case pathImages:
		return s.a.template(ctx, r)
	default:
		return nil, fmt.Errorf("unsupported resource %s", href)
	}
}

func (s *session) FetchTemplate(ctx context.Context, href string) (*controlplane.Resource, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	r, err := s.a.parse(href)
	if err != nil {
		return nil, err
	}
	if r.collection != pathImages {
		return nil, fmt.Errorf("%s is not a template", href)
	}
	return s.a.template(ctx, r)
}

func (s *session) FetchTask(ctx context.Context, href string) (*controlplane.Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.a.fetchTask(ctx, href)
}

func (s *session) ListChildTasks(ctx context.Context, r *controlplane.Resource) ([]*controlplane.Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []*controlplane.Task
	for _, child := range r.Children {
		tasks, err := s.a.pending(ctx, child.Locator)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	return out, nil
}

func (a *Adapter) server(ctx context.Context, r ref) (*hcloud.Server, error) {
	id, err := r.num()
	if err != nil {
		return nil, err
	}
	srv, _, err := a.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get server %d: %w", id, classify("", err))
	}
	return srv, nil
}

// machine converts a server.
func (a *Adapter) machine(ctx context.Context, srv *hcloud.Server) (*controlplane.Resource, error) {
	res := &controlplane.Resource{
		Locator: a.href(pathServers, srv.ID),
		Name:    srv.Name,
		Kind:    controlplane.KindMachine,
		Status:  serverStatus(srv.Status),
		Guest:   controlplane.GuestCustomization{Enabled: true, Hostname: srv.Name},
		Created: srv.Created,
	}
	if srv.ServerType != nil {
		res.CPU = srv.ServerType.Cores
		res.MemoryMB = int(srv.ServerType.Memory * 1024)
	}
	if srv.PlacementGroup != nil {
		res.Parent = a.href(pathPlacementGroups, srv.PlacementGroup.ID)
	} else {
		res.Parent = a.href(pathContainers, srv.ID)
	}
	for i, pn := range srv.PrivateNet {
		if pn.Network == nil {
			continue
		}
		nc := controlplane.NetworkConnection{
			Network:    a.href(pathNetworks, pn.Network.ID),
			Index:      i,
			Connected:  true,
			Allocation: controlplane.AllocationPool,
		}
		if pn.IP != nil {
			nc.IP = pn.IP.String()
		}
		res.Network = append(res.Network, nc)
	}

	tasks, err := a.pending(ctx, res.Locator)
	if err != nil {
		return nil, err
	}
	res.Tasks = tasks
	if srv.Locked || transitional(srv.Status) {
		res.Tasks = append(res.Tasks, &controlplane.Task{
			Locator: res.Locator + "#locked",
			Kind:    string(srv.Status),
			Status:  controlplane.TaskRunning,
		})
	}
	return res, nil
}

// container wraps a server outside any placement group.
func (a *Adapter) container(ctx context.Context, srv *hcloud.Server) (*controlplane.Resource, error) {
	m, err := a.machine(ctx, srv)
	if err != nil {
		return nil, err
	}
	res := &controlplane.Resource{
		Locator:  m.Parent,
		Name:     srv.Name,
		Kind:     controlplane.KindContainer,
		Status:   m.Status,
		Children: []*controlplane.Resource{m},
		Created:  srv.Created,
	}
	if res.Tasks, err = a.pending(ctx, res.Locator); err != nil {
		return nil, err
	}
	return res, nil
}

// group converts a placement group and its servers.
func (a *Adapter) group(ctx context.Context, r ref) (*controlplane.Resource, error) {
	id, err := r.num()
	if err != nil {
		return nil, err
	}
	pg, _, err := a.client.PlacementGroup.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get placement group %d: %w", id, classify("", err))
	}
	if pg == nil {
		return nil, nil
	}

	res := &controlplane.Resource{
		Locator: a.href(pathPlacementGroups, pg.ID),
		Name:    pg.Name,
		Kind:    controlplane.KindGroup,
		Created: pg.Created,
	}
	if img := pg.Labels[labelImage]; img != "" {
		res.Description = pathImages + img
	}
	for _, sid := range pg.Servers {
		srv, _, err := a.client.Server.GetByID(ctx, sid)
		if err != nil {
			return nil, fmt.Errorf("get server %d: %w", sid, classify("", err))
		}
		if srv == nil {
			continue
		}
		m, err := a.machine(ctx, srv)
		if err != nil {
			return nil, err
		}
		res.Children = append(res.Children, m)
	}
	res.Status = groupStatus(res.Children)
	if res.Tasks, err = a.pending(ctx, res.Locator); err != nil {
		return nil, err
	}
	return res, nil
}

// template converts an image.
func (a *Adapter) template(ctx context.Context, r ref) (*controlplane.Resource, error) {
	id, err := r.num()
	if err != nil {
		return nil, err
	}
	img, _, err := a.client.Image.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, classify("", err))
	}
	if img == nil {
		return nil, nil
	}

	res := &controlplane.Resource{
		Locator:     a.href(pathImages, img.ID),
		Name:        img.Labels[labelName],
		Description: img.Description,
		Kind:        controlplane.KindTemplate,
		Status:      imageStatus(img.Status),
		Created:     img.Created,
	}
	if res.Name == "" {
		res.Name = img.Name
	}
	if res.Name == "" {
		res.Name = img.Description
	}
	if res.Tasks, err = a.pending(ctx, res.Locator); err != nil {
		return nil, err
	}
	return res, nil
}

func serverStatus(s hcloud.ServerStatus) controlplane.ResourceStatus {
	switch s {
	case hcloud.ServerStatusRunning:
		return controlplane.StatusPoweredOn
	case hcloud.ServerStatusOff:
		return controlplane.StatusPoweredOff
	case hcloud.ServerStatusInitializing:
		return controlplane.StatusUnresolved
	case hcloud.ServerStatusUnknown:
		return controlplane.StatusUnknown
	default:
		return controlplane.StatusDeployed
	}
}

// transitional reports server states that end on their own.
func transitional(s hcloud.ServerStatus) bool {
	switch s {
	case hcloud.ServerStatusInitializing,
		hcloud.ServerStatusStarting,
		hcloud.ServerStatusStopping,
		hcloud.ServerStatusMigrating,
		hcloud.ServerStatusRebuilding,
		hcloud.ServerStatusDeleting:
		return true
	default:
		return false
	}
}

func groupStatus(children []*controlplane.Resource) controlplane.ResourceStatus {
	if len(children) == 0 {
		return controlplane.StatusResolved
	}
	status := controlplane.StatusPoweredOff
	for _, c := range children {
		switch c.Status {
		case controlplane.StatusUnresolved:
			return controlplane.StatusUnresolved
		case controlplane.StatusPoweredOn, controlplane.StatusDeployed:
			status = controlplane.StatusPoweredOn
		}
	}
	return status
}

func imageStatus(s hcloud.ImageStatus) controlplane.ResourceStatus {
	switch s {
	case hcloud.ImageStatusAvailable:
		return controlplane.StatusResolved
	case hcloud.ImageStatusCreating:
		return controlplane.StatusUnresolved
	default:
		return controlplane.StatusFailedCreation
	}
}
