package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// testServer creates an httptest server that can be used to mock Hetzner Cloud API responses.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu    sync.Mutex
	calls []string
}

// newTestServer creates a new test server for mocking the Hetzner Cloud API.
func newTestServer() *testServer {
	ts := &testServer{mux: http.NewServeMux()}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.calls = append(ts.calls, r.Method+" "+r.URL.Path)
		ts.mu.Unlock()
		ts.mux.ServeHTTP(w, r)
	}))
	return ts
}

// close shuts down the test server.
func (ts *testServer) close() {
	ts.server.Close()
}

// client returns an hcloud.Client configured to use the test server.
func (ts *testServer) client() *hcloud.Client {
	return hcloud.NewClient(
		hcloud.WithToken("test-token"),
		hcloud.WithEndpoint(ts.server.URL),
	)
}

// adapter returns an Adapter talking to the test server with its collectors
// registered on reg.
func (ts *testServer) adapter(reg *prometheus.Registry, opts ...Option) *Adapter {
	base := []Option{
		WithHCloudClient(ts.client()),
		WithMetrics(NewMetrics(reg)),
		WithPollWorkers(2),
	}
	return New("test-token", append(base, opts...)...)
}

// session opens a session on a fresh adapter.
func (ts *testServer) session(t *testing.T, opts ...Option) (controlplane.Session, *Adapter, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	a := ts.adapter(reg, opts...)
	sess, err := a.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess, a, reg
}

// handleFunc registers a handler for a specific path.
func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

// count returns how often method and path were requested.
func (ts *testServer) count(call string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := 0
	for _, c := range ts.calls {
		if c == call {
			n++
		}
	}
	return n
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse writes an hcloud API error.
func errorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	jsonResponse(w, statusCode, schema.ErrorResponse{
		Error: schema.Error{Code: code, Message: message},
	})
}

// decodeBody decodes a request body into a generic map.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

// actionResponse answers GET /actions/<id> with status, optionally failing.
func actionResponse(w http.ResponseWriter, id int64, command, status string) {
	act := schema.Action{ID: id, Command: command, Status: status, Progress: 100}
	if status == "error" {
		act.Error = &schema.ActionError{Code: "action_failed", Message: "hypervisor unavailable"}
	}
	jsonResponse(w, http.StatusOK, schema.ActionGetResponse{Action: act})
}

// serverSchema returns a server of type cx22.
func serverSchema(id int64, name, status string) schema.Server {
	return schema.Server{
		ID:     id,
		Name:   name,
		Status: status,
		ServerType: schema.ServerType{
			ID:           1,
			Name:         "cx22",
			Cores:        2,
			Memory:       4,
			Architecture: "x86",
		},
		Labels: map[string]string{},
	}
}

func serveServer(ts *testServer, srv schema.Server) {
	ts.handleFunc("/servers/"+strconv.FormatInt(srv.ID, 10), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: srv})
		case http.MethodPut:
			jsonResponse(w, http.StatusOK, schema.ServerUpdateResponse{Server: srv})
		case http.MethodDelete:
			jsonResponse(w, http.StatusOK, schema.ServerDeleteResponse{
				Action: schema.Action{ID: 900 + srv.ID, Command: "delete_server", Status: "running"},
			})
		}
	})
}
