package controlplane

import (
	"context"

	"github.com/imamik/vcdflow/internal/platform/locator"
)

// Client is a session-scoped view of the control plane.
//
// Fetch methods return (nil, nil) when the addressed entity does not exist.
// Submit returns a nil task when the operation completed synchronously.
type Client interface {
	// Endpoint returns the endpoint hrefs are issued against.
	Endpoint() locator.Endpoint

	// FetchResource returns a machine, group or container with its attached
	// tasks and, for groups and containers, its children.
	FetchResource(ctx context.Context, href string) (*Resource, error)
	// FetchTask returns the current state of a task.
	FetchTask(ctx context.Context, href string) (*Task, error)
	// ListChildTasks returns the tasks attached to any descendant of r,
	// including ones r's snapshot does not embed.
	ListChildTasks(ctx context.Context, r *Resource) ([]*Task, error)
	// Submit starts op against the resource at href.
	Submit(ctx context.Context, href string, op Operation) (*Task, error)

	FetchTemplate(ctx context.Context, href string) (*Resource, error)
	ListNetworks(ctx context.Context) ([]Network, error)
	FetchNetwork(ctx context.Context, href string) (*Network, error)
	ListCatalogs(ctx context.Context) ([]Catalog, error)

	// Probe checks that the credentials may use the service. It returns an
	// *AuthorizationError when they may not.
	Probe(ctx context.Context) error
}

// Session is a Client that holds connection state until closed.
type Session interface {
	Client
	Close() error
}

// Dialer opens sessions. Each workflow step opens its own.
type Dialer interface {
	Open(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f DialerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}
