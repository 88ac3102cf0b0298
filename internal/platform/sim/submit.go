package sim

import (
	"context"
	"fmt"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// submit validates op against the current state and queues its task. Callers
// hold mu.
func (s *Sim) submit(_ context.Context, href string, op controlplane.Operation) (*controlplane.Task, error) {
	kind := op.Kind()
	sub := Submission{Target: href, Kind: kind}

	if n := s.rejectNext[kind]; n > 0 {
		s.rejectNext[kind] = n - 1
		sub.Rejected = true
		s.submissions = append(s.submissions, sub)
		return nil, &controlplane.SpuriousRejectionError{
			Op:  kind,
			Err: fmt.Errorf("resource %s is not in a valid state", href),
		}
	}
	if err, ok := s.errorNext[kind]; ok {
		delete(s.errorNext, kind)
		sub.Rejected = true
		s.submissions = append(s.submissions, sub)
		return nil, err
	}

	effect, result, err := s.plan(href, op)
	if err != nil {
		sub.Rejected = true
		s.submissions = append(s.submissions, sub)
		return nil, err
	}
	s.submissions = append(s.submissions, sub)

	// A new group or template carries its creating task.
	attach := href
	if result != "" {
		attach = result
	}
	t := s.newTask(attach, string(kind), s.taskSteps, effect)
	t.snap.Result = result
	if msg, ok := s.failNext[kind]; ok {
		delete(s.failNext, kind)
		t.fail = msg
	}
	if s.taskSteps == 0 {
		s.step(t)
	}
	snap := t.snap
	return &snap, nil
}

// plan returns the effect applied when op's task succeeds and the href of
// any entity it creates.
func (s *Sim) plan(href string, op controlplane.Operation) (func(), string, error) {
	if o, ok := op.(controlplane.AddToCatalog); ok {
		return s.planAddToCatalog(href, o)
	}

	n, ok := s.nodes[href]
	if !ok {
		return nil, "", fmt.Errorf("%s: resource %s not found", op.Kind(), href)
	}

	switch o := op.(type) {
	case controlplane.Instantiate:
		return s.planInstantiate(n, o)
	case controlplane.PowerOn:
		return func() { s.powerOn(href) }, "", nil
	case controlplane.PowerOff:
		return func() { s.powerOff(href) }, "", nil
	case controlplane.Reboot:
		if n.res.Status != controlplane.StatusPoweredOn {
			return nil, "", fmt.Errorf("reboot: %s is not powered on", href)
		}
		return nil, "", nil
	case controlplane.Deploy:
		return func() {
			if o.PowerOn {
				s.setStatus(href, controlplane.StatusPoweredOn, true)
				return
			}
			s.setStatus(href, controlplane.StatusDeployed, true)
		}, "", nil
	case controlplane.Undeploy:
		return func() { s.undeploy(href, o.Action) }, "", nil
	case controlplane.SetGuestCustomization:
		return func() { n.res.Guest = o.Customization }, "", nil
	case controlplane.SetNetworkConnections:
		conns := append([]controlplane.NetworkConnection(nil), o.Connections...)
		return func() { n.res.Network = conns }, "", nil
	case controlplane.SetCPU:
		if o.Count <= 0 {
			return nil, "", fmt.Errorf("cpu: invalid count %d", o.Count)
		}
		return func() { n.res.CPU = o.Count }, "", nil
	case controlplane.SetMemory:
		if o.MB <= 0 {
			return nil, "", fmt.Errorf("memory: invalid size %d", o.MB)
		}
		return func() { n.res.MemoryMB = o.MB }, "", nil
	case controlplane.CaptureTemplate:
		return s.planCapture(n, o)
	case controlplane.DeleteGroup:
		if !n.res.HasChildren() {
			return nil, "", fmt.Errorf("delete-group: %s is not a group", href)
		}
		if deployed(n.res.Status) {
			return nil, "", fmt.Errorf("delete-group: %s is still deployed", href)
		}
		return func() { s.remove(href) }, "", nil
	case controlplane.DeleteTemplate:
		if n.res.Kind != controlplane.KindTemplate {
			return nil, "", fmt.Errorf("delete-template: %s is not a template", href)
		}
		return func() { s.remove(href) }, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported operation %s", op.Kind())
	}
}

func (s *Sim) planInstantiate(tpl *node, o controlplane.Instantiate) (func(), string, error) {
	if tpl.res.Kind != controlplane.KindTemplate {
		return nil, "", fmt.Errorf("instantiate: %s is not a template", tpl.res.Locator)
	}
	href := s.href("/vApp/" + s.nextID("vapp"))
	group := &node{res: controlplane.Resource{
		Locator:     href,
		Name:        o.Name,
		Description: o.Description,
		Kind:        controlplane.KindGroup,
		Status:      controlplane.StatusUnresolved,
		Created:     s.now(),
	}}
	s.nodes[href] = group

	for _, ch := range tpl.children {
		src := s.nodes[ch].res
		spec := MachineSpec{
			Name:     src.Name,
			CPU:      src.CPU,
			MemoryMB: src.MemoryMB,
			Status:   controlplane.StatusUnresolved,
			Network:  src.Network,
		}
		if o.Network != "" {
			spec.Network = []controlplane.NetworkConnection{{
				Network:    o.Network,
				Connected:  true,
				Allocation: controlplane.AllocationPool,
			}}
		}
		group.children = append(group.children, s.addMachine(href, "/vApp/", spec))
	}

	effect := func() {
		status := controlplane.StatusResolved
		if o.Deploy {
			status = controlplane.StatusDeployed
		}
		if o.PowerOn {
			status = controlplane.StatusPoweredOn
		}
		s.setStatus(href, status, true)
	}
	return effect, href, nil
}

func (s *Sim) planCapture(group *node, o controlplane.CaptureTemplate) (func(), string, error) {
	if !group.res.HasChildren() {
		return nil, "", fmt.Errorf("capture: %s is not a group", group.res.Locator)
	}
	href := s.href("/vAppTemplate/" + s.nextID("vappTemplate"))
	tpl := &node{res: controlplane.Resource{
		Locator:     href,
		Name:        o.Name,
		Description: o.Description,
		Kind:        controlplane.KindTemplate,
		Status:      controlplane.StatusUnresolved,
		Created:     s.now(),
	}}
	s.nodes[href] = tpl
	for _, ch := range group.children {
		src := s.nodes[ch].res
		tpl.children = append(tpl.children, s.addMachine(href, "/vAppTemplate/", MachineSpec{
			Name:     src.Name,
			CPU:      src.CPU,
			MemoryMB: src.MemoryMB,
			Status:   controlplane.StatusResolved,
			Network:  src.Network,
		}))
	}
	return func() { tpl.res.Status = controlplane.StatusResolved }, href, nil
}

func (s *Sim) planAddToCatalog(href string, o controlplane.AddToCatalog) (func(), string, error) {
	found := false
	for _, c := range s.catalogs {
		if c.Locator == href {
			found = true
			break
		}
	}
	if !found {
		return nil, "", fmt.Errorf("add-to-catalog: catalog %s not found", href)
	}
	if _, ok := s.nodes[o.Template]; !ok {
		return nil, "", fmt.Errorf("add-to-catalog: template %s not found", o.Template)
	}
	return func() { s.items[href] = append(s.items[href], o.Template) }, "", nil
}

func (s *Sim) powerOn(href string) {
	n := s.nodes[href]
	if n == nil {
		return
	}
	s.setStatus(href, controlplane.StatusPoweredOn, true)
	if parent := s.nodes[n.res.Parent]; parent != nil && parent.res.HasChildren() {
		parent.res.Status = controlplane.StatusPoweredOn
	}
}

func (s *Sim) powerOff(href string) {
	n := s.nodes[href]
	if n == nil {
		return
	}
	s.setStatus(href, controlplane.StatusPoweredOff, true)
	parent := s.nodes[n.res.Parent]
	if parent == nil || !parent.res.HasChildren() {
		return
	}
	for _, ch := range parent.children {
		if s.nodes[ch].res.Status == controlplane.StatusPoweredOn {
			return
		}
	}
	parent.res.Status = controlplane.StatusPoweredOff
}

// undeploy releases the allocation. Machines lose their live network
// connections; the configured networks stay.
func (s *Sim) undeploy(href string, action controlplane.UndeployAction) {
	n := s.nodes[href]
	if n == nil {
		return
	}
	n.res.Status = controlplane.StatusResolved
	machines := n.children
	if !n.res.HasChildren() {
		machines = []string{href}
	}
	for _, ch := range machines {
		m := s.nodes[ch]
		if m == nil {
			continue
		}
		m.res.Status = controlplane.StatusResolved
		if action == controlplane.UndeploySaveState {
			m.res.Status = controlplane.StatusSuspended
		}
		for i := range m.res.Network {
			m.res.Network[i].Connected = false
		}
	}
}

func deployed(s controlplane.ResourceStatus) bool {
	switch s {
	case controlplane.StatusDeployed, controlplane.StatusPoweredOn, controlplane.StatusSuspended:
		return true
	default:
		return false
	}
}
