package testing

import (
	"fmt"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
	"github.com/imamik/vcdflow/internal/platform/sim"
)

// SimFixture is a simulated control plane seeded with one network, one
// unpublished catalog and one single-machine template.
type SimFixture struct {
	Sim *sim.Sim

	Network  string // href
	Catalog  string // href
	Template string // href
}

// NewSimFixture creates a fixture. Tasks complete on their second
// observation.
func NewSimFixture(opts ...sim.Option) *SimFixture {
	s := sim.New(append([]sim.Option{sim.WithTaskSteps(2)}, opts...)...)
	return &SimFixture{
		Sim:      s,
		Network:  s.AddNetwork("lan"),
		Catalog:  s.AddCatalog("images", false),
		Template: s.AddTemplate("base", sim.MachineSpec{Name: "vm", CPU: 1, MemoryMB: 512}),
	}
}

// ID converts an href to its caller-facing id.
func (f *SimFixture) ID(href string) string {
	id, err := locator.ToID(f.Sim.Endpoint(), href)
	if err != nil {
		panic(err)
	}
	return id
}

// RunningGroup seeds a powered-on group whose machines are connected to the
// fixture network and returns the group and machine hrefs.
func (f *SimFixture) RunningGroup(name string, machines ...string) (string, []string) {
	specs := make([]sim.MachineSpec, 0, len(machines))
	for i, m := range machines {
		specs = append(specs, sim.MachineSpec{
			Name:     m,
			CPU:      2,
			MemoryMB: 2048,
			Status:   controlplane.StatusPoweredOn,
			Network: []controlplane.NetworkConnection{{
				Network:    f.Network,
				Index:      0,
				Connected:  true,
				IP:         fmt.Sprintf("10.0.0.%d", i+2),
				Allocation: controlplane.AllocationPool,
			}},
		})
	}
	return f.Sim.AddGroup(name, controlplane.KindGroup, controlplane.StatusPoweredOn, specs...)
}
