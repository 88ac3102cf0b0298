package hcloud

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

// DefaultEndpoint is the endpoint resource hrefs are issued against.
var DefaultEndpoint = locator.Endpoint{URL: "https://api.hetzner.cloud", APIVersion: "1"}

var errClosed = errors.New("session closed")

// Adapter implements controlplane.Dialer over the Hetzner Cloud API. Sessions
// opened from one Adapter share its task registry.
type Adapter struct {
	client *hcloud.Client
	ep     locator.Endpoint

	location     string
	serverType   string
	catalogLabel string
	catalogs     []string
	workers      int

	metrics *Metrics
	tasks   *taskRegistry
}

var _ controlplane.Dialer = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(a *Adapter) {
		a.client = hc
	}
}

// WithEndpoint sets the endpoint hrefs are issued against.
func WithEndpoint(ep locator.Endpoint) Option {
	return func(a *Adapter) {
		a.ep = ep
	}
}

// WithLocation sets the location servers are created in when the request
// names none.
func WithLocation(name string) Option {
	return func(a *Adapter) {
		a.location = name
	}
}

// WithServerType sets the type new servers are created with.
func WithServerType(name string) Option {
	return func(a *Adapter) {
		a.serverType = name
	}
}

// WithCatalogs sets the image label marking catalog membership and the
// catalogs offered, in order of preference.
func WithCatalogs(label string, names ...string) Option {
	return func(a *Adapter) {
		a.catalogLabel = label
		a.catalogs = append([]string(nil), names...)
	}
}

// WithPollWorkers bounds how many actions are refreshed concurrently.
func WithPollWorkers(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithMetrics sets the adapter collectors.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// New creates an Adapter authenticating with token.
func New(token string, opts ...Option) *Adapter {
	a := &Adapter{
		client:       hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("vcdflow", "")),
		ep:           DefaultEndpoint,
		serverType:   "cx22",
		catalogLabel: "vcdflow.io/catalog",
		catalogs:     []string{"private"},
		workers:      4,
		tasks:        newTaskRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = NewMetrics(nil)
	}
	return a
}

// NewFromConfig creates an Adapter from the hcloud section of the config.
// API request metrics are registered with reg when it is not nil.
func NewFromConfig(cfg config.HCloudConfig, reg prometheus.Registerer, opts ...Option) *Adapter {
	clientOpts := []hcloud.ClientOption{
		hcloud.WithToken(cfg.Token),
		hcloud.WithApplication("vcdflow", ""),
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, hcloud.WithEndpoint(cfg.Endpoint))
	}
	if reg != nil {
		clientOpts = append(clientOpts, hcloud.WithInstrumentation(reg))
	}

	base := []Option{
		WithHCloudClient(hcloud.NewClient(clientOpts...)),
		WithMetrics(NewMetrics(reg)),
		WithPollWorkers(cfg.PollWorkers),
	}
	if cfg.Location != "" {
		base = append(base, WithLocation(cfg.Location))
	}
	if cfg.ServerType != "" {
		base = append(base, WithServerType(cfg.ServerType))
	}
	if cfg.CatalogLabel != "" && len(cfg.Catalogs) > 0 {
		base = append(base, WithCatalogs(cfg.CatalogLabel, cfg.Catalogs...))
	}
	return New(cfg.Token, append(base, opts...)...)
}

// Endpoint returns the endpoint hrefs are issued against.
func (a *Adapter) Endpoint() locator.Endpoint { return a.ep }

// Open implements controlplane.Dialer. The hcloud API is stateless, so a
// session only guards against use after Close.
func (a *Adapter) Open(ctx context.Context) (controlplane.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{a: a}, nil
}

type session struct {
	a      *Adapter
	closed atomic.Bool
}

var _ controlplane.Session = (*session)(nil)

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *session) check(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}
	return ctx.Err()
}

func (s *session) Endpoint() locator.Endpoint { return s.a.ep }
