package provisioning

import (
	"context"
	"time"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// AwaitIdle blocks until r and every child of r have no queued or running
// task, and returns the snapshot that showed it idle.
//
// The resource is fetched immediately and then every IdleInterval while it is
// busy; an idle resource costs one fetch and no sleep. A nil r, or a resource
// that no longer exists, yields (nil, nil). Failed fetches are logged and
// retried. When ctx or IdleTimeout expires first the result is a
// *TimeoutError.
func (o *Orchestrator) AwaitIdle(ctx context.Context, r *controlplane.Resource) (*controlplane.Resource, error) {
	if r == nil {
		return nil, nil
	}

	ctx, cancel := withOptionalTimeout(ctx, o.timeouts.IdleTimeout)
	defer cancel()

	log := o.logger(ctx).WithValues("resource", r.Locator)
	started := time.Now()
	defer func() { o.metrics.recordIdleWait(time.Since(started).Seconds()) }()

	for {
		fresh, busy, err := o.observeIdle(ctx, r.Locator)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, waitError("idle", r.Locator, started, ctx.Err())
		case err != nil:
			log.Info("Resource re-fetch failed, still waiting", "error", err.Error())
			o.metrics.recordTransient("idle")
		case fresh == nil:
			log.V(1).Info("Resource no longer exists")
			return nil, nil
		case !busy:
			return fresh, nil
		}

		if err := sleep(ctx, o.timeouts.IdleInterval); err != nil {
			return nil, waitError("idle", r.Locator, started, err)
		}
	}
}

// observeIdle fetches href and reports whether it or any descendant is busy.
func (o *Orchestrator) observeIdle(ctx context.Context, href string) (*controlplane.Resource, bool, error) {
	type observation struct {
		res  *controlplane.Resource
		busy bool
	}
	obs, err := withClient(ctx, o, func(c controlplane.Client) (observation, error) {
		res, err := c.FetchResource(ctx, href)
		if err != nil || res == nil {
			return observation{}, err
		}
		if res.Busy() {
			return observation{res: res, busy: true}, nil
		}
		if !res.HasChildren() {
			return observation{res: res}, nil
		}
		tasks, err := c.ListChildTasks(ctx, res)
		if err != nil {
			return observation{}, err
		}
		for _, t := range tasks {
			if t.Pending() {
				return observation{res: res, busy: true}, nil
			}
		}
		return observation{res: res}, nil
	})
	return obs.res, obs.busy, err
}
