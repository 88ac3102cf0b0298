package hcloud

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func TestTaskRegistry_PrunesFinishedTasks(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTaskRegistry()
	r.now = func() time.Time { return now }

	newTask := func(href, target string) *compositeTask {
		return &compositeTask{snap: controlplane.Task{Locator: href}, targets: []string{target}}
	}

	old := newTask("/tasks/old", "/servers/1")
	old.finished.Store(now.Add(-defaultTaskRetention - time.Second).UnixNano())
	recent := newTask("/tasks/recent", "/servers/1")
	recent.finished.Store(now.Add(-time.Second).UnixNano())
	running := newTask("/tasks/running", "/servers/1")
	r.tasks[old.snap.Locator] = old
	r.tasks[recent.snap.Locator] = recent
	r.tasks[running.snap.Locator] = running

	r.add(newTask("/tasks/new", "/servers/2"))

	assert.Nil(t, r.get("/tasks/old"))
	assert.Same(t, recent, r.get("/tasks/recent"))
	assert.Len(t, r.tasks, 3)

	got := r.targeting("/servers/1")
	require.Len(t, got, 1)
	assert.Same(t, running, got[0])
}

func TestAdapter_FinishedTaskExpires(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "web", "off"))
	ts.handleFunc("/servers/1/actions/poweron", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusCreated, schema.ServerActionPoweronResponse{
			Action: schema.Action{ID: 10, Command: "start_server", Status: "success"},
		})
	})

	sess, a, _ := ts.session(t)
	now := time.Now()
	a.tasks.now = func() time.Time { return now }
	ctx := context.Background()
	href := a.href(pathServers, 1)

	first, err := sess.Submit(ctx, href, controlplane.PowerOn{})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, first.Status)

	got, err := sess.FetchTask(ctx, first.Locator)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, controlplane.TaskSuccess, got.Status)

	pending, err := a.pending(ctx, href)
	require.NoError(t, err)
	assert.Empty(t, pending)

	now = now.Add(defaultTaskRetention + time.Minute)
	second, err := sess.Submit(ctx, href, controlplane.PowerOn{})
	require.NoError(t, err)

	got, err = sess.FetchTask(ctx, first.Locator)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NotNil(t, a.tasks.get(second.Locator))
	assert.Len(t, a.tasks.tasks, 1)
}
