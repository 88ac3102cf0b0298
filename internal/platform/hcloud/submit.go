package hcloud

import (
	"context"
	"fmt"
	"net"
	"path"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func (s *session) Submit(ctx context.Context, href string, op controlplane.Operation) (*controlplane.Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if o, ok := op.(controlplane.AddToCatalog); ok {
		return s.a.addToCatalog(ctx, href, o)
	}

	r, err := s.a.parse(href)
	if err != nil {
		return nil, err
	}

	switch o := op.(type) {
	case controlplane.Instantiate:
		return s.a.instantiate(ctx, r, o)
	case controlplane.DeleteTemplate:
		return s.a.deleteTemplate(ctx, href, r)
	case controlplane.CaptureTemplate:
		return s.a.capture(ctx, href, r, o)
	}

	servers, err := s.a.targetServers(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 && r.collection != pathPlacementGroups {
		return nil, fmt.Errorf("%s: resource %s not found", op.Kind(), href)
	}

	switch o := op.(type) {
	case controlplane.PowerOn:
		return s.a.eachServer(ctx, href, op.Kind(), servers, s.a.client.Server.Poweron)
	case controlplane.PowerOff:
		return s.a.eachServer(ctx, href, op.Kind(), servers, s.a.client.Server.Poweroff)
	case controlplane.Reboot:
		for _, srv := range servers {
			if srv.Status != hcloud.ServerStatusRunning {
				return nil, fmt.Errorf("reboot: server %d is not running", srv.ID)
			}
		}
		return s.a.eachServer(ctx, href, op.Kind(), servers, s.a.client.Server.Reboot)
	case controlplane.Deploy:
		return s.a.deploy(ctx, href, servers, o)
	case controlplane.Undeploy:
		return s.a.undeploy(ctx, href, servers, o)
	case controlplane.SetGuestCustomization:
		return s.a.updateServers(ctx, href, op.Kind(), servers, func(srv *hcloud.Server) hcloud.ServerUpdateOpts {
			name := o.Customization.Hostname
			if name == "" || !o.Customization.Enabled {
				name = srv.Name
			}
			return hcloud.ServerUpdateOpts{Name: name}
		})
	case controlplane.SetCPU:
		if o.Count <= 0 {
			return nil, fmt.Errorf("cpu: invalid count %d", o.Count)
		}
		return s.a.updateServers(ctx, href, op.Kind(), servers, func(srv *hcloud.Server) hcloud.ServerUpdateOpts {
			return hcloud.ServerUpdateOpts{Labels: withLabel(srv.Labels, labelCPU, strconv.Itoa(o.Count))}
		})
	case controlplane.SetMemory:
		if o.MB <= 0 {
			return nil, fmt.Errorf("memory: invalid size %d", o.MB)
		}
		return s.a.updateServers(ctx, href, op.Kind(), servers, func(srv *hcloud.Server) hcloud.ServerUpdateOpts {
			return hcloud.ServerUpdateOpts{Labels: withLabel(srv.Labels, labelMemoryMB, strconv.Itoa(o.MB))}
		})
	case controlplane.SetNetworkConnections:
		return s.a.setNetworks(ctx, href, servers, o)
	case controlplane.DeleteGroup:
		return s.a.deleteGroup(ctx, href, r, servers)
	default:
		return nil, fmt.Errorf("unsupported operation %s", op.Kind())
	}
}

// targetServers returns the servers an operation on r acts on.
func (a *Adapter) targetServers(ctx context.Context, r ref) ([]*hcloud.Server, error) {
	switch r.collection {
	case pathServers:
		srv, err := a.server(ctx, r)
		if err != nil || srv == nil {
			return nil, err
		}
		return []*hcloud.Server{srv}, nil
	case pathContainers:
		srv, err := a.server(ctx, r)
		if err != nil || srv == nil || srv.PlacementGroup != nil {
			return nil, err
		}
		return []*hcloud.Server{srv}, nil
	case pathPlacementGroups:
		pg, err := a.placementGroup(ctx, r)
		if err != nil {
			return nil, err
		}
		if pg == nil {
			return nil, fmt.Errorf("placement group %s not found", r.key)
		}
		var out []*hcloud.Server
		for _, id := range pg.Servers {
			srv, _, err := a.client.Server.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get server %d: %w", id, classify("", err))
			}
			if srv != nil {
				out = append(out, srv)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s has no servers", r.collection+r.key)
	}
}

func (a *Adapter) placementGroup(ctx context.Context, r ref) (*hcloud.PlacementGroup, error) {
	id, err := r.num()
	if err != nil {
		return nil, err
	}
	pg, _, err := a.client.PlacementGroup.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get placement group %d: %w", id, classify("", err))
	}
	return pg, nil
}

// serverHrefs returns the hrefs tasks on servers are reported against.
func (a *Adapter) serverHrefs(href string, servers []*hcloud.Server) []string {
	targets := []string{href}
	for _, srv := range servers {
		targets = append(targets, a.href(pathServers, srv.ID))
	}
	return targets
}

type serverAction func(ctx context.Context, srv *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)

// eachServer starts call on every server in one step.
func (a *Adapter) eachServer(ctx context.Context, href string, op controlplane.OperationKind, servers []*hcloud.Server, call serverAction) (*controlplane.Task, error) {
	return a.start(ctx, op, a.serverHrefs(href, servers), "", nil, func(ctx context.Context) ([]*hcloud.Action, error) {
		var actions []*hcloud.Action
		for _, srv := range servers {
			act, _, err := call(ctx, srv)
			if err != nil {
				return nil, fmt.Errorf("%s server %d: %w", op, srv.ID, err)
			}
			actions = append(actions, act)
		}
		return actions, nil
	})
}

// updateServers changes server attributes. Updates complete synchronously.
func (a *Adapter) updateServers(ctx context.Context, href string, op controlplane.OperationKind, servers []*hcloud.Server, opts func(*hcloud.Server) hcloud.ServerUpdateOpts) (*controlplane.Task, error) {
	return a.start(ctx, op, a.serverHrefs(href, servers), "", nil, func(ctx context.Context) ([]*hcloud.Action, error) {
		for _, srv := range servers {
			if _, _, err := a.client.Server.Update(ctx, srv, opts(srv)); err != nil {
				return nil, fmt.Errorf("update server %d: %w", srv.ID, err)
			}
		}
		return nil, nil
	})
}

func (a *Adapter) instantiate(ctx context.Context, r ref, o controlplane.Instantiate) (*controlplane.Task, error) {
	if r.collection != pathImages {
		return nil, fmt.Errorf("instantiate: %s is not a template", r.collection+r.key)
	}
	imageID, err := r.num()
	if err != nil {
		return nil, err
	}
	img, _, err := a.client.Image.GetByID(ctx, imageID)
	if err != nil {
		return nil, classify(controlplane.OpInstantiate, err)
	}
	if img == nil {
		return nil, fmt.Errorf("instantiate: image %d not found", imageID)
	}

	var network *hcloud.Network
	if o.Network != "" {
		id, err := a.parseNum(o.Network, pathNetworks)
		if err != nil {
			return nil, err
		}
		network = &hcloud.Network{ID: id}
	}

	labels := map[string]string{
		labelManaged: "true",
		labelImage:   r.key,
	}
	res, _, err := a.client.PlacementGroup.Create(ctx, hcloud.PlacementGroupCreateOpts{
		Name:   o.Name,
		Labels: labels,
		Type:   hcloud.PlacementGroupTypeSpread,
	})
	if err != nil {
		return nil, classify(controlplane.OpInstantiate, fmt.Errorf("create placement group: %w", err))
	}
	pg := res.PlacementGroup
	groupHref := a.href(pathPlacementGroups, pg.ID)

	opts := hcloud.ServerCreateOpts{
		Name:             o.Name,
		ServerType:       &hcloud.ServerType{Name: a.serverType},
		Image:            img,
		Labels:           labels,
		PlacementGroup:   pg,
		StartAfterCreate: hcloud.Ptr(o.Deploy && o.PowerOn),
	}
	if o.Location != "" {
		opts.Location = &hcloud.Location{Name: path.Base(o.Location)}
	} else if a.location != "" {
		opts.Location = &hcloud.Location{Name: a.location}
	}
	if network != nil {
		opts.Networks = []*hcloud.Network{network}
	}

	return a.start(ctx, controlplane.OpInstantiate, []string{groupHref}, groupHref, nil,
		func(ctx context.Context) ([]*hcloud.Action, error) {
			created, _, err := a.client.Server.Create(ctx, opts)
			if err != nil {
				return nil, fmt.Errorf("create server: %w", err)
			}
			return append([]*hcloud.Action{created.Action}, created.NextActions...), nil
		})
}

// deploy resizes every server to fit its recorded cpu and memory, then
// powers it on when asked.
func (a *Adapter) deploy(ctx context.Context, href string, servers []*hcloud.Server, o controlplane.Deploy) (*controlplane.Task, error) {
	resize := func(ctx context.Context) ([]*hcloud.Action, error) {
		var actions []*hcloud.Action
		for _, srv := range servers {
			target, err := a.fitType(ctx, srv)
			if err != nil {
				return nil, err
			}
			if target == nil {
				continue
			}
			act, _, err := a.client.Server.ChangeType(ctx, srv, hcloud.ServerChangeTypeOpts{
				ServerType:  &hcloud.ServerType{Name: target.Name},
				UpgradeDisk: false,
			})
			if err != nil {
				return nil, fmt.Errorf("change type of server %d: %w", srv.ID, err)
			}
			actions = append(actions, act)
		}
		return actions, nil
	}
	steps := []step{resize}
	if o.PowerOn {
		steps = append(steps, func(ctx context.Context) ([]*hcloud.Action, error) {
			var actions []*hcloud.Action
			for _, srv := range servers {
				act, _, err := a.client.Server.Poweron(ctx, srv)
				if err != nil {
					return nil, fmt.Errorf("power on server %d: %w", srv.ID, err)
				}
				actions = append(actions, act)
			}
			return actions, nil
		})
	}
	return a.start(ctx, controlplane.OpDeploy, a.serverHrefs(href, servers), "", nil, steps...)
}

func (a *Adapter) undeploy(ctx context.Context, href string, servers []*hcloud.Server, o controlplane.Undeploy) (*controlplane.Task, error) {
	call := a.client.Server.Poweroff
	if o.Action == controlplane.UndeploySaveState {
		call = a.client.Server.Shutdown
	}
	var running []*hcloud.Server
	for _, srv := range servers {
		if srv.Status != hcloud.ServerStatusOff {
			running = append(running, srv)
		}
	}
	return a.eachServer(ctx, href, controlplane.OpUndeploy, running, call)
}

// setNetworks detaches the networks no longer wanted, then attaches the new
// ones, one action at a time.
func (a *Adapter) setNetworks(ctx context.Context, href string, servers []*hcloud.Server, o controlplane.SetNetworkConnections) (*controlplane.Task, error) {
	var steps []step
	for _, srv := range servers {
		current := map[int64]bool{}
		for _, pn := range srv.PrivateNet {
			if pn.Network != nil {
				current[pn.Network.ID] = true
			}
		}
		wanted := map[int64]controlplane.NetworkConnection{}
		for _, nc := range o.Connections {
			if !nc.Connected || nc.Allocation == controlplane.AllocationNone {
				continue
			}
			id, err := a.parseNum(nc.Network, pathNetworks)
			if err != nil {
				return nil, err
			}
			wanted[id] = nc
		}

		for id := range current {
			if _, ok := wanted[id]; ok {
				continue
			}
			steps = append(steps, func(ctx context.Context) ([]*hcloud.Action, error) {
				act, _, err := a.client.Server.DetachFromNetwork(ctx, srv, hcloud.ServerDetachFromNetworkOpts{
					Network: &hcloud.Network{ID: id},
				})
				if err != nil {
					return nil, fmt.Errorf("detach server %d from network %d: %w", srv.ID, id, err)
				}
				return []*hcloud.Action{act}, nil
			})
		}
		for id, nc := range wanted {
			if current[id] {
				continue
			}
			opts := hcloud.ServerAttachToNetworkOpts{Network: &hcloud.Network{ID: id}}
			if nc.Allocation == controlplane.AllocationManual {
				ip := net.ParseIP(nc.IP)
				if ip == nil {
					return nil, fmt.Errorf("network-connections: invalid ip %q", nc.IP)
				}
				opts.IP = ip
			}
			steps = append(steps, func(ctx context.Context) ([]*hcloud.Action, error) {
				act, _, err := a.client.Server.AttachToNetwork(ctx, srv, opts)
				if err != nil {
					return nil, fmt.Errorf("attach server %d to network %d: %w", srv.ID, id, err)
				}
				return []*hcloud.Action{act}, nil
			})
		}
	}
	return a.start(ctx, controlplane.OpNetworkConnections, a.serverHrefs(href, servers), "", nil, steps...)
}

func (a *Adapter) capture(ctx context.Context, href string, r ref, o controlplane.CaptureTemplate) (*controlplane.Task, error) {
	servers, err := a.targetServers(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(servers) != 1 {
		return nil, fmt.Errorf("capture: %s has %d servers, snapshots need exactly one", href, len(servers))
	}
	srv := servers[0]

	res, _, err := a.client.Server.CreateImage(ctx, srv, &hcloud.ServerCreateImageOpts{
		Type:        hcloud.ImageTypeSnapshot,
		Description: hcloud.Ptr(o.Description),
		Labels: map[string]string{
			labelManaged: "true",
			labelName:    o.Name,
		},
	})
	if err != nil {
		return nil, classify(controlplane.OpCapture, fmt.Errorf("create image of server %d: %w", srv.ID, err))
	}
	imageHref := a.href(pathImages, res.Image.ID)
	return a.start(ctx, controlplane.OpCapture, append(a.serverHrefs(href, servers), imageHref), imageHref,
		[]*hcloud.Action{res.Action})
}

func (a *Adapter) addToCatalog(ctx context.Context, href string, o controlplane.AddToCatalog) (*controlplane.Task, error) {
	r, err := a.parse(href)
	if err != nil {
		return nil, err
	}
	if r.collection != pathCatalogs || !contains(a.catalogs, r.key) {
		return nil, fmt.Errorf("add-to-catalog: catalog %s not found", href)
	}
	imageID, err := a.parseNum(o.Template, pathImages)
	if err != nil {
		return nil, err
	}
	img, _, err := a.client.Image.GetByID(ctx, imageID)
	if err != nil {
		return nil, classify(controlplane.OpAddToCatalog, err)
	}
	if img == nil {
		return nil, fmt.Errorf("add-to-catalog: image %d not found", imageID)
	}

	labels := withLabel(img.Labels, a.catalogLabel, r.key)
	if o.Name != "" {
		labels[labelName] = o.Name
	}
	return a.start(ctx, controlplane.OpAddToCatalog, []string{href, o.Template}, o.Template, nil,
		func(ctx context.Context) ([]*hcloud.Action, error) {
			opts := hcloud.ImageUpdateOpts{Labels: labels}
			if o.Description != "" {
				opts.Description = hcloud.Ptr(o.Description)
			}
			if _, _, err := a.client.Image.Update(ctx, img, opts); err != nil {
				return nil, fmt.Errorf("update image %d: %w", img.ID, err)
			}
			return nil, nil
		})
}

// deleteGroup deletes the servers of a group, then the placement group.
func (a *Adapter) deleteGroup(ctx context.Context, href string, r ref, servers []*hcloud.Server) (*controlplane.Task, error) {
	if r.collection == pathServers {
		return nil, fmt.Errorf("delete-group: %s is not a group", href)
	}
	steps := []step{func(ctx context.Context) ([]*hcloud.Action, error) {
		var actions []*hcloud.Action
		for _, srv := range servers {
			res, _, err := a.client.Server.DeleteWithResult(ctx, srv)
			if err != nil {
				return nil, fmt.Errorf("delete server %d: %w", srv.ID, err)
			}
			actions = append(actions, res.Action)
		}
		return actions, nil
	}}
	if r.collection == pathPlacementGroups {
		id, err := r.num()
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(ctx context.Context) ([]*hcloud.Action, error) {
			if _, err := a.client.PlacementGroup.Delete(ctx, &hcloud.PlacementGroup{ID: id}); err != nil && !IsNotFound(err) {
				return nil, fmt.Errorf("delete placement group %d: %w", id, err)
			}
			return nil, nil
		})
	}
	return a.start(ctx, controlplane.OpDeleteGroup, a.serverHrefs(href, servers), "", nil, steps...)
}

func (a *Adapter) deleteTemplate(ctx context.Context, href string, r ref) (*controlplane.Task, error) {
	if r.collection != pathImages {
		return nil, fmt.Errorf("delete-template: %s is not a template", href)
	}
	id, err := r.num()
	if err != nil {
		return nil, err
	}
	return a.start(ctx, controlplane.OpDeleteTemplate, []string{href}, "", nil,
		func(ctx context.Context) ([]*hcloud.Action, error) {
			if _, err := a.client.Image.Delete(ctx, &hcloud.Image{ID: id}); err != nil {
				return nil, fmt.Errorf("delete image %d: %w", id, err)
			}
			return nil, nil
		})
}
