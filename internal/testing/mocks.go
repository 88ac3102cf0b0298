package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

// MockDialer is a mock implementation of controlplane.Dialer.
type MockDialer struct {
	mock.Mock
}

// Open opens a mock session.
func (m *MockDialer) Open(ctx context.Context) (controlplane.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(controlplane.Session), args.Error(1)
}

// MockSession is a mock implementation of controlplane.Session.
type MockSession struct {
	mock.Mock
}

// Endpoint returns the mock endpoint.
func (m *MockSession) Endpoint() locator.Endpoint {
	args := m.Called()
	return args.Get(0).(locator.Endpoint)
}

// FetchResource returns a mock resource.
func (m *MockSession) FetchResource(ctx context.Context, href string) (*controlplane.Resource, error) {
	args := m.Called(ctx, href)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controlplane.Resource), args.Error(1)
}

// FetchTask returns a mock task.
func (m *MockSession) FetchTask(ctx context.Context, href string) (*controlplane.Task, error) {
	args := m.Called(ctx, href)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controlplane.Task), args.Error(1)
}

// ListChildTasks returns mock child tasks.
func (m *MockSession) ListChildTasks(ctx context.Context, r *controlplane.Resource) ([]*controlplane.Task, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*controlplane.Task), args.Error(1)
}

// Submit submits a mock operation.
func (m *MockSession) Submit(ctx context.Context, href string, op controlplane.Operation) (*controlplane.Task, error) {
	args := m.Called(ctx, href, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controlplane.Task), args.Error(1)
}

// FetchTemplate returns a mock template.
func (m *MockSession) FetchTemplate(ctx context.Context, href string) (*controlplane.Resource, error) {
	args := m.Called(ctx, href)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controlplane.Resource), args.Error(1)
}

// ListNetworks returns mock networks.
func (m *MockSession) ListNetworks(ctx context.Context) ([]controlplane.Network, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]controlplane.Network), args.Error(1)
}

// FetchNetwork returns a mock network.
func (m *MockSession) FetchNetwork(ctx context.Context, href string) (*controlplane.Network, error) {
	args := m.Called(ctx, href)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controlplane.Network), args.Error(1)
}

// ListCatalogs returns mock catalogs.
func (m *MockSession) ListCatalogs(ctx context.Context) ([]controlplane.Catalog, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]controlplane.Catalog), args.Error(1)
}

// Probe checks mock access.
func (m *MockSession) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close closes the mock session.
func (m *MockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}
