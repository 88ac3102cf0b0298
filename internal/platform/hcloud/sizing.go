package hcloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// fitType returns the smallest server type offering the cpu and memory
// recorded on srv, or nil when srv needs no resize.
func (a *Adapter) fitType(ctx context.Context, srv *hcloud.Server) (*hcloud.ServerType, error) {
	cpu := intLabel(srv.Labels, labelCPU)
	memMB := intLabel(srv.Labels, labelMemoryMB)
	if cpu == 0 && memMB == 0 {
		return nil, nil
	}

	types, err := a.client.ServerType.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list server types: %w", err)
	}
	best := smallestFit(types, srv.ServerType, cpu, memMB)
	if best == nil {
		return nil, fmt.Errorf("no server type offers %d cpus and %d MB", cpu, memMB)
	}
	if srv.ServerType != nil && best.ID == srv.ServerType.ID {
		return nil, nil
	}
	return best, nil
}

// smallestFit picks the type with the fewest cores, then the least memory,
// that satisfies cpu and memMB. When current is known, only types of the same
// architecture are considered.
func smallestFit(types []*hcloud.ServerType, current *hcloud.ServerType, cpu, memMB int) *hcloud.ServerType {
	var fits []*hcloud.ServerType
	for _, st := range types {
		if st == nil || st.Cores < cpu || int(st.Memory*1024) < memMB {
			continue
		}
		if current != nil && current.Architecture != "" && st.Architecture != current.Architecture {
			continue
		}
		fits = append(fits, st)
	}
	if len(fits) == 0 {
		return nil
	}
	sort.SliceStable(fits, func(i, j int) bool {
		if fits[i].Cores != fits[j].Cores {
			return fits[i].Cores < fits[j].Cores
		}
		return fits[i].Memory < fits[j].Memory
	})
	return fits[0]
}
