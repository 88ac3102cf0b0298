package hcloud

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func TestAdapter_PowerOnTask(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "web", "off"))
	ts.handleFunc("/servers/1/actions/poweron", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusCreated, schema.ServerActionPoweronResponse{
			Action: schema.Action{ID: 10, Command: "start_server", Status: "running"},
		})
	})
	var polls atomic.Int32
	ts.handleFunc("/actions/10", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 3 {
			actionResponse(w, 10, "start_server", "running")
			return
		}
		actionResponse(w, 10, "start_server", "success")
	})

	sess, a, reg := ts.session(t)
	ctx := context.Background()
	href := a.href(pathServers, 1)

	task, err := sess.Submit(ctx, href, controlplane.PowerOn{})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "power-on", task.Kind)
	assert.Equal(t, controlplane.TaskRunning, task.Status)
	assert.Equal(t, 1, ts.count("GET /actions/10"))

	res, err := sess.FetchResource(ctx, href)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, task.Locator, res.Tasks[0].Locator)
	assert.True(t, res.Busy())

	got, err := sess.FetchTask(ctx, task.Locator)
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, got.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.actions.WithLabelValues("start_server", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(a.metrics.tasksAlive))
	n, err := testutil.GatherAndCount(reg, "vcdflow_hcloud_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdapter_FailedAction(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "web", "running"))
	ts.handleFunc("/servers/1/actions/reboot", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusCreated, schema.ServerActionRebootResponse{
			Action: schema.Action{ID: 11, Command: "reboot_server", Status: "running"},
		})
	})
	ts.handleFunc("/actions/11", func(w http.ResponseWriter, _ *http.Request) {
		actionResponse(w, 11, "reboot_server", "error")
	})

	sess, a, _ := ts.session(t)
	task, err := sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.Reboot{})
	require.NoError(t, err)

	assert.Equal(t, controlplane.TaskError, task.Status)
	assert.Contains(t, task.ErrorMessage, "reboot_server")
	assert.Contains(t, task.ErrorMessage, "hypervisor unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.actions.WithLabelValues("reboot_server", "error")))
}

func TestAdapter_RebootRequiresRunningServer(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "web", "off"))

	sess, a, _ := ts.session(t)
	_, err := sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.Reboot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
	assert.Equal(t, 0, ts.count("POST /servers/1/actions/reboot"))
}

func TestAdapter_LockedSubmissionIsSpuriousRejection(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "web", "running"))
	ts.handleFunc("/servers/1/actions/poweroff", func(w http.ResponseWriter, _ *http.Request) {
		errorResponse(w, http.StatusLocked, "locked", "server is locked by another action")
	})

	sess, a, _ := ts.session(t)
	_, err := sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.PowerOff{})
	require.Error(t, err)
	assert.True(t, controlplane.IsSpuriousRejection(err))
	assert.Contains(t, err.Error(), "power-off rejected")
}

func TestAdapter_Probe(t *testing.T) {
	t.Parallel()

	t.Run("authorized", func(t *testing.T) {
		ts := newTestServer()
		defer ts.close()
		ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("per_page"))
			jsonResponse(w, http.StatusOK, schema.ServerListResponse{Servers: []schema.Server{}})
		})

		sess, _, _ := ts.session(t)
		require.NoError(t, sess.Probe(context.Background()))
	})

	t.Run("unauthorized", func(t *testing.T) {
		ts := newTestServer()
		defer ts.close()
		ts.handleFunc("/servers", func(w http.ResponseWriter, _ *http.Request) {
			errorResponse(w, http.StatusUnauthorized, "unauthorized", "unable to authenticate")
		})

		sess, _, _ := ts.session(t)
		err := sess.Probe(context.Background())
		require.Error(t, err)
		assert.True(t, controlplane.IsAuthorization(err))
	})
}

func TestAdapter_FetchGroup(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	pg := &schema.PlacementGroup{ID: 5, Name: "web"}
	web1 := serverSchema(1, "web-1", "running")
	web1.PlacementGroup = pg
	web1.PrivateNet = []schema.ServerPrivateNet{{Network: 3, IP: "10.0.0.2"}}
	web2 := serverSchema(2, "web-2", "off")
	web2.PlacementGroup = pg
	serveServer(ts, web1)
	serveServer(ts, web2)
	ts.handleFunc("/placement_groups/5", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.PlacementGroupGetResponse{
			PlacementGroup: schema.PlacementGroup{
				ID:      5,
				Name:    "web",
				Labels:  map[string]string{labelImage: "42"},
				Servers: []int64{1, 2},
				Type:    "spread",
			},
		})
	})

	sess, a, _ := ts.session(t)
	group, err := sess.FetchResource(context.Background(), a.href(pathPlacementGroups, 5))
	require.NoError(t, err)
	require.NotNil(t, group)

	assert.Equal(t, controlplane.KindGroup, group.Kind)
	assert.Equal(t, "/images/42", group.Description)
	assert.Equal(t, controlplane.StatusPoweredOn, group.Status)
	require.Len(t, group.Children, 2)

	m := group.Children[0]
	assert.Equal(t, controlplane.KindMachine, m.Kind)
	assert.Equal(t, group.Locator, m.Parent)
	assert.Equal(t, 2, m.CPU)
	assert.Equal(t, 4096, m.MemoryMB)
	assert.Equal(t, "web-1", m.Guest.Hostname)
	require.Len(t, m.Network, 1)
	assert.Equal(t, a.href(pathNetworks, 3), m.Network[0].Network)
	assert.Equal(t, "10.0.0.2", m.Network[0].IP)
	assert.True(t, m.Network[0].Connected)
	assert.Equal(t, controlplane.StatusPoweredOff, group.Children[1].Status)
	assert.False(t, group.Busy())

	rec, err := controlplane.DefaultTranslator{}.ToMachine(a.Endpoint(), group, m)
	require.NoError(t, err)
	assert.Equal(t, "/servers/1", rec.ID)
	assert.Equal(t, "/images/42", rec.ImageID)
	assert.Equal(t, "4096:2", rec.ShapeID)
}

func TestAdapter_FetchMissingAndContainer(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	srv := serverSchema(1, "solo", "starting")
	srv.Locked = true
	serveServer(ts, srv)
	ts.handleFunc("/servers/9", func(w http.ResponseWriter, _ *http.Request) {
		errorResponse(w, http.StatusNotFound, "not_found", "server not found")
	})

	sess, a, _ := ts.session(t)
	ctx := context.Background()

	missing, err := sess.FetchResource(ctx, a.href(pathServers, 9))
	require.NoError(t, err)
	assert.Nil(t, missing)

	container, err := sess.FetchResource(ctx, a.href(pathContainers, 1))
	require.NoError(t, err)
	require.NotNil(t, container)
	assert.Equal(t, controlplane.KindContainer, container.Kind)
	require.Len(t, container.Children, 1)
	assert.Equal(t, container.Locator, container.Children[0].Parent)
	assert.True(t, container.Busy(), "a locked server reports a running task")

	_, err = sess.FetchResource(ctx, a.href(pathCatalogs, 1))
	assert.Error(t, err)
}

func TestAdapter_Instantiate(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	ts.handleFunc("/images/42", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"image": map[string]any{"id": 42, "type": "snapshot", "status": "available", "description": "base"},
		})
	})
	ts.handleFunc("/placement_groups", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "web", body["name"])
		assert.Equal(t, "spread", body["type"])
		jsonResponse(w, http.StatusCreated, schema.PlacementGroupCreateResponse{
			PlacementGroup: schema.PlacementGroup{ID: 5, Name: "web", Type: "spread"},
		})
	})
	ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "web", body["name"])
		assert.Equal(t, "cx32", body["server_type"])
		assert.Equal(t, "fsn1", body["location"])
		assert.EqualValues(t, 5, body["placement_group"])
		assert.Equal(t, false, body["start_after_create"])
		assert.Equal(t, []any{float64(3)}, body["networks"])
		jsonResponse(w, http.StatusCreated, schema.ServerCreateResponse{
			Server: schema.Server{ID: 1, Name: "web"},
			Action: schema.Action{ID: 20, Command: "create_server", Status: "running"},
		})
	})
	ts.handleFunc("/actions/20", func(w http.ResponseWriter, _ *http.Request) {
		actionResponse(w, 20, "create_server", "running")
	})

	sess, a, _ := ts.session(t, WithServerType("cx32"), WithLocation("nbg1"))
	task, err := sess.Submit(context.Background(), a.href(pathImages, 42), controlplane.Instantiate{
		Name:        "web",
		Description: "/images/42",
		Network:     a.href(pathNetworks, 3),
		Location:    "/locations/fsn1",
	})
	require.NoError(t, err)
	assert.Equal(t, a.href(pathPlacementGroups, 5), task.Result)
	assert.Equal(t, controlplane.TaskRunning, task.Status)

	pending, err := a.pending(context.Background(), task.Result)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAdapter_InstantiateRequiresTemplate(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	sess, a, _ := ts.session(t)
	_, err := sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.Instantiate{Name: "web"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a template")
}

func TestAdapter_DeployResizesThenPowersOn(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	srv := serverSchema(1, "db", "off")
	srv.Labels = map[string]string{labelCPU: "4", labelMemoryMB: "8192"}
	serveServer(ts, srv)
	ts.handleFunc("/server_types", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerTypeListResponse{ServerTypes: []schema.ServerType{
			{ID: 1, Name: "cx22", Cores: 2, Memory: 4, Architecture: "x86"},
			{ID: 3, Name: "cx42", Cores: 8, Memory: 16, Architecture: "x86"},
			{ID: 2, Name: "cx32", Cores: 4, Memory: 8, Architecture: "x86"},
			{ID: 4, Name: "cax21", Cores: 4, Memory: 8, Architecture: "arm"},
		}})
	})
	ts.handleFunc("/servers/1/actions/change_type", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "cx32", body["server_type"])
		assert.Equal(t, false, body["upgrade_disk"])
		jsonResponse(w, http.StatusCreated, schema.ServerActionChangeTypeResponse{
			Action: schema.Action{ID: 30, Command: "change_server_type", Status: "running"},
		})
	})
	ts.handleFunc("/actions/30", func(w http.ResponseWriter, _ *http.Request) {
		actionResponse(w, 30, "change_server_type", "success")
	})
	ts.handleFunc("/servers/1/actions/poweron", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusCreated, schema.ServerActionPoweronResponse{
			Action: schema.Action{ID: 31, Command: "start_server", Status: "running"},
		})
	})
	var polls atomic.Int32
	ts.handleFunc("/actions/31", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 2 {
			actionResponse(w, 31, "start_server", "running")
			return
		}
		actionResponse(w, 31, "start_server", "success")
	})

	sess, a, _ := ts.session(t)
	ctx := context.Background()

	// The resize finishes on the first refresh, which starts the power-on.
	task, err := sess.Submit(ctx, a.href(pathServers, 1), controlplane.Deploy{PowerOn: true})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskRunning, task.Status)
	assert.Equal(t, 1, ts.count("POST /servers/1/actions/poweron"))

	got, err := sess.FetchTask(ctx, task.Locator)
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, got.Status)
	assert.Equal(t, 1, ts.count("POST /servers/1/actions/change_type"))
	assert.Equal(t, 1, ts.count("POST /servers/1/actions/poweron"))
}

func TestAdapter_SetCPURecordsLabel(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	srv := serverSchema(1, "db", "off")
	srv.Labels = map[string]string{"team": "data"}
	ts.handleFunc("/servers/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body := decodeBody(t, r)
			assert.Equal(t, map[string]any{"team": "data", labelCPU: "4"}, body["labels"])
			jsonResponse(w, http.StatusOK, schema.ServerUpdateResponse{Server: srv})
			return
		}
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: srv})
	})

	sess, a, _ := ts.session(t)
	task, err := sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.SetCPU{Count: 4})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, task.Status)
	assert.Equal(t, 1, ts.count("PUT /servers/1"))

	_, err = sess.Submit(context.Background(), a.href(pathServers, 1), controlplane.SetMemory{MB: 0})
	assert.Error(t, err)
}

func TestAdapter_CaptureAndCatalog(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	srv := serverSchema(1, "web", "off")
	srv.PlacementGroup = &schema.PlacementGroup{ID: 5}
	serveServer(ts, srv)
	ts.handleFunc("/placement_groups/5", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.PlacementGroupGetResponse{
			PlacementGroup: schema.PlacementGroup{ID: 5, Name: "web", Servers: []int64{1}},
		})
	})
	ts.handleFunc("/servers/1/actions/create_image", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "snapshot", body["type"])
		assert.Equal(t, "nightly", body["description"])
		jsonResponse(w, http.StatusCreated, map[string]any{
			"image":  map[string]any{"id": 99, "type": "snapshot", "status": "creating"},
			"action": schema.Action{ID: 40, Command: "create_image", Status: "running"},
		})
	})
	ts.handleFunc("/actions/40", func(w http.ResponseWriter, _ *http.Request) {
		actionResponse(w, 40, "create_image", "success")
	})
	ts.handleFunc("/images/99", func(w http.ResponseWriter, r *http.Request) {
		image := map[string]any{
			"id": 99, "type": "snapshot", "status": "available", "description": "nightly",
			"labels": map[string]string{labelName: "golden"},
		}
		if r.Method == http.MethodPut {
			body := decodeBody(t, r)
			assert.Equal(t, map[string]any{labelName: "golden", "vcdflow.io/catalog": "private"}, body["labels"])
		}
		jsonResponse(w, http.StatusOK, map[string]any{"image": image})
	})

	sess, a, _ := ts.session(t)
	ctx := context.Background()

	task, err := sess.Submit(ctx, a.href(pathPlacementGroups, 5), controlplane.CaptureTemplate{Name: "golden", Description: "nightly"})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, task.Status)
	assert.Equal(t, a.href(pathImages, 99), task.Result)

	tpl, err := sess.FetchTemplate(ctx, task.Result)
	require.NoError(t, err)
	assert.Equal(t, "golden", tpl.Name)
	assert.Equal(t, controlplane.StatusResolved, tpl.Status)

	catalogs, err := sess.ListCatalogs(ctx)
	require.NoError(t, err)
	require.Len(t, catalogs, 1)
	assert.False(t, catalogs[0].Published)

	task, err = sess.Submit(ctx, catalogs[0].Locator, controlplane.AddToCatalog{Template: task.Result, Name: "golden"})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, task.Status)
	assert.Equal(t, 1, ts.count("PUT /images/99"))

	_, err = sess.Submit(ctx, a.hrefKey(pathCatalogs, "public"), controlplane.AddToCatalog{Template: tpl.Locator})
	assert.Error(t, err)
}

func TestAdapter_CaptureNeedsSingleServer(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	serveServer(ts, serverSchema(1, "a", "off"))
	serveServer(ts, serverSchema(2, "b", "off"))
	ts.handleFunc("/placement_groups/5", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.PlacementGroupGetResponse{
			PlacementGroup: schema.PlacementGroup{ID: 5, Servers: []int64{1, 2}},
		})
	})

	sess, a, _ := ts.session(t)
	_, err := sess.Submit(context.Background(), a.href(pathPlacementGroups, 5), controlplane.CaptureTemplate{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestAdapter_DeleteGroup(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	srv := serverSchema(1, "web", "off")
	srv.PlacementGroup = &schema.PlacementGroup{ID: 5}
	serveServer(ts, srv)
	ts.handleFunc("/placement_groups/5", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonResponse(w, http.StatusOK, schema.PlacementGroupGetResponse{
			PlacementGroup: schema.PlacementGroup{ID: 5, Servers: []int64{1}},
		})
	})
	ts.handleFunc("/actions/901", func(w http.ResponseWriter, _ *http.Request) {
		actionResponse(w, 901, "delete_server", "success")
	})

	sess, a, _ := ts.session(t)
	ctx := context.Background()
	task, err := sess.Submit(ctx, a.href(pathPlacementGroups, 5), controlplane.DeleteGroup{})
	require.NoError(t, err)
	assert.Equal(t, controlplane.TaskSuccess, task.Status)
	assert.Equal(t, 1, ts.count("DELETE /servers/1"))
	assert.Equal(t, 1, ts.count("DELETE /placement_groups/5"))

	_, err = sess.Submit(ctx, a.href(pathServers, 1), controlplane.DeleteGroup{})
	assert.Error(t, err)
}

func TestAdapter_Networks(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	ts.handleFunc("/networks", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.NetworkListResponse{Networks: []schema.Network{{ID: 3, Name: "lan"}}})
	})
	ts.handleFunc("/networks/3", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.NetworkGetResponse{Network: schema.Network{ID: 3, Name: "lan"}})
	})

	sess, a, _ := ts.session(t)
	ctx := context.Background()

	nets, err := sess.ListNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.Equal(t, a.href(pathNetworks, 3), nets[0].Locator)

	n, err := sess.FetchNetwork(ctx, nets[0].Locator)
	require.NoError(t, err)
	assert.Equal(t, "lan", n.Name)

	_, err = sess.FetchNetwork(ctx, a.href(pathServers, 3))
	assert.Error(t, err)
}

func TestAdapter_ClosedSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer()
	defer ts.close()

	sess, a, _ := ts.session(t)
	require.NoError(t, sess.Close())

	_, err := sess.FetchResource(context.Background(), a.href(pathServers, 1))
	assert.ErrorIs(t, err, errClosed)
	assert.ErrorIs(t, sess.Probe(context.Background()), errClosed)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	a := NewFromConfig(config.HCloudConfig{
		Token:        "token",
		Location:     "hel1",
		ServerType:   "cx32",
		CatalogLabel: "example.com/catalog",
		Catalogs:     []string{"team", "shared"},
		PollWorkers:  8,
	}, nil)

	assert.Equal(t, "hel1", a.location)
	assert.Equal(t, "cx32", a.serverType)
	assert.Equal(t, "example.com/catalog", a.catalogLabel)
	assert.Equal(t, []string{"team", "shared"}, a.catalogs)
	assert.Equal(t, 8, a.workers)
	assert.Equal(t, DefaultEndpoint, a.Endpoint())
}
