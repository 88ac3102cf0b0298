package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

var errClosed = errors.New("session closed")

type session struct {
	sim    *Sim
	closed atomic.Bool
}

var _ controlplane.Session = (*session)(nil)

func (c *session) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.sim.mu.Lock()
	c.sim.openSessions--
	c.sim.mu.Unlock()
	return nil
}

// lock acquires the simulator for one call.
func (c *session) lock(ctx context.Context) (func(), error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	return c.sim.mu.Unlock, nil
}

func (c *session) Endpoint() locator.Endpoint { return c.sim.ep }

func (c *session) FetchResource(ctx context.Context, href string) (*controlplane.Resource, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := c.sim.observe(); err != nil {
		return nil, err
	}
	return c.sim.snapshot(href), nil
}

func (c *session) FetchTemplate(ctx context.Context, href string) (*controlplane.Resource, error) {
	r, err := c.FetchResource(ctx, href)
	if err != nil || r == nil {
		return nil, err
	}
	if r.Kind != controlplane.KindTemplate {
		return nil, fmt.Errorf("%s is a %s, not a template", href, r.Kind)
	}
	return r, nil
}

func (c *session) FetchTask(ctx context.Context, href string) (*controlplane.Task, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := c.sim.observe(); err != nil {
		return nil, err
	}
	t, ok := c.sim.tasks[href]
	if !ok {
		return nil, nil
	}
	snap := t.snap
	return &snap, nil
}

func (c *session) ListChildTasks(ctx context.Context, r *controlplane.Resource) ([]*controlplane.Task, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, ok := c.sim.nodes[r.Locator]
	if !ok {
		return nil, nil
	}
	var out []*controlplane.Task
	var walk func(children []string)
	walk = func(children []string) {
		for _, ch := range children {
			cn, ok := c.sim.nodes[ch]
			if !ok {
				continue
			}
			for _, th := range cn.tasks {
				snap := c.sim.tasks[th].snap
				out = append(out, &snap)
			}
			walk(cn.children)
		}
	}
	walk(n.children)
	return out, nil
}

func (c *session) Submit(ctx context.Context, href string, op controlplane.Operation) (*controlplane.Task, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.sim.submit(ctx, href, op)
}

func (c *session) ListNetworks(ctx context.Context) ([]controlplane.Network, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return append([]controlplane.Network(nil), c.sim.networks...), nil
}

func (c *session) FetchNetwork(ctx context.Context, href string) (*controlplane.Network, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, n := range c.sim.networks {
		if n.Locator == href {
			found := n
			return &found, nil
		}
	}
	return nil, nil
}

func (c *session) ListCatalogs(ctx context.Context) ([]controlplane.Catalog, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return append([]controlplane.Catalog(nil), c.sim.catalogs...), nil
}

func (c *session) Probe(ctx context.Context) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if c.sim.deny {
		return &controlplane.AuthorizationError{Err: errors.New("organization has no compute subscription")}
	}
	return nil
}
