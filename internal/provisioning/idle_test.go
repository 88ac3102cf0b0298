package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/sim"
	cptest "github.com/imamik/vcdflow/internal/testing"
)

func TestAwaitIdle_IdleResourceReturnsOnFirstFetch(t *testing.T) {
	t.Parallel()
	s := sim.New()
	group, _ := s.AddGroup("g", controlplane.KindGroup, controlplane.StatusPoweredOn,
		sim.MachineSpec{Name: "a"}, sim.MachineSpec{Name: "b"})
	o := newTestOrchestrator(t, s, WithTimeouts(fastTimeouts(func(t *config.Timeouts) {
		t.IdleInterval = time.Hour
	})))

	started := time.Now()
	fresh, err := o.AwaitIdle(cptest.TestContext(t), s.Resource(group))
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, group, fresh.Locator)
	assert.Equal(t, 1, s.Fetches())
	assert.Less(t, time.Since(started), time.Minute)
}

func TestAwaitIdle_WaitsForChildTasks(t *testing.T) {
	t.Parallel()
	s := sim.New()
	group, machines := s.AddGroup("g", controlplane.KindGroup, controlplane.StatusPoweredOn, sim.MachineSpec{Name: "a"})
	s.AttachTask(machines[0], "custom", 3)
	o := newTestOrchestrator(t, s)

	fresh, err := o.AwaitIdle(cptest.TestContext(t), s.Resource(group))
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.False(t, fresh.Busy())
	assert.Equal(t, controlplane.TaskSuccess, s.Resource(machines[0]).Tasks[0].Status)
	assert.GreaterOrEqual(t, s.Fetches(), 3)
}

func TestAwaitIdle_WaitsForOwnTask(t *testing.T) {
	t.Parallel()
	s := sim.New()
	_, machines := s.AddGroup("g", controlplane.KindContainer, controlplane.StatusPoweredOn, sim.MachineSpec{Name: "a"})
	s.AttachTask(machines[0], "custom", 2)
	o := newTestOrchestrator(t, s)

	fresh, err := o.AwaitIdle(cptest.TestContext(t), s.Resource(machines[0]))
	require.NoError(t, err)
	assert.False(t, fresh.Busy())
}

func TestAwaitIdle_AbsentResource(t *testing.T) {
	t.Parallel()
	s := sim.New()
	o := newTestOrchestrator(t, s)
	ctx := cptest.TestContext(t)

	fresh, err := o.AwaitIdle(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, fresh)

	fresh, err = o.AwaitIdle(ctx, &controlplane.Resource{Locator: "https://sim.vcdflow.local/api/v1.5/vApp/vapp-404"})
	require.NoError(t, err)
	assert.Nil(t, fresh)
}

func TestAwaitIdle_TransientFetchErrors(t *testing.T) {
	t.Parallel()
	s := sim.New()
	group, _ := s.AddGroup("g", controlplane.KindGroup, controlplane.StatusPoweredOn)
	s.FailFetches(2)
	m := NewMetrics(prometheus.NewRegistry())
	o := newTestOrchestrator(t, s, WithMetrics(m))

	fresh, err := o.AwaitIdle(cptest.TestContext(t), s.Resource(group))
	require.NoError(t, err)
	assert.NotNil(t, fresh)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.transientErrors.WithLabelValues("idle")))
}

func TestAwaitIdle_Timeout(t *testing.T) {
	t.Parallel()
	s := sim.New()
	group, _ := s.AddGroup("g", controlplane.KindGroup, controlplane.StatusPoweredOn)
	s.AttachTask(group, "custom", 1_000_000)
	o := newTestOrchestrator(t, s, WithTimeouts(fastTimeouts(func(t *config.Timeouts) {
		t.IdleTimeout = 30 * time.Millisecond
	})))

	_, err := o.AwaitIdle(cptest.TestContext(t), s.Resource(group))
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "idle", timeout.Wait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
