package handlers

import (
	"github.com/imamik/vcdflow/internal/platform/sim"
)

// newDemoSim returns a simulated control plane with a network, a published
// and an unpublished catalog, and a single-machine template named "base".
func newDemoSim() *sim.Sim {
	s := sim.New(sim.WithTaskSteps(2))
	s.AddNetwork("lan")
	s.AddCatalog("public", true)
	s.AddCatalog("images", false)
	s.AddTemplate("base", sim.MachineSpec{Name: "vm", CPU: 1, MemoryMB: 512})
	return s
}
