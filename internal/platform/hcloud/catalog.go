package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func (s *session) ListNetworks(ctx context.Context) ([]controlplane.Network, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	networks, err := s.a.client.Network.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", classify("", err))
	}
	out := make([]controlplane.Network, 0, len(networks))
	for _, n := range networks {
		out = append(out, controlplane.Network{Locator: s.a.href(pathNetworks, n.ID), Name: n.Name})
	}
	return out, nil
}

func (s *session) FetchNetwork(ctx context.Context, href string) (*controlplane.Network, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	id, err := s.a.parseNum(href, pathNetworks)
	if err != nil {
		return nil, err
	}
	n, _, err := s.a.client.Network.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get network %d: %w", id, classify("", err))
	}
	if n == nil {
		return nil, nil
	}
	return &controlplane.Network{Locator: s.a.href(pathNetworks, n.ID), Name: n.Name}, nil
}

// ListCatalogs returns the configured catalogs. Label-based catalogs are
// never published.
func (s *session) ListCatalogs(ctx context.Context) ([]controlplane.Catalog, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]controlplane.Catalog, 0, len(s.a.catalogs))
	for _, name := range s.a.catalogs {
		out = append(out, controlplane.Catalog{Locator: s.a.hrefKey(pathCatalogs, name), Name: name})
	}
	return out, nil
}

// Probe issues the cheapest authenticated call the API offers.
func (s *session) Probe(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	_, _, err := s.a.client.Server.List(ctx, hcloud.ServerListOpts{ListOpts: hcloud.ListOpts{PerPage: 1}})
	if err != nil {
		return fmt.Errorf("probe: %w", classify("", err))
	}
	return nil
}
