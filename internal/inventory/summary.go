package inventory

import (
	"context"
	"fmt"

	"github.com/layneYoo/vms/internal/provider"
)

// Summary describes the provider endpoint and its inventory. It backs the
// inventory command.
type Summary struct {
	Address       string              `json:"address" yaml:"address"`
	Kind          string              `json:"kind" yaml:"kind"`
	Server        provider.ServerInfo `json:"server" yaml:"server"`
	Datacenters   []provider.Item     `json:"datacenters" yaml:"datacenters"`
	Hosts         []provider.Item     `json:"hosts" yaml:"hosts"`
	Datastores    []provider.Item     `json:"datastores" yaml:"datastores"`
	ResourcePools []provider.Item     `json:"resourcePools" yaml:"resourcePools"`
	VMs           []provider.Item     `json:"vms" yaml:"vms"`
}

// Describe collects a Summary from the session and an already built catalog.
func Describe(ctx context.Context, s *provider.Session, c *Catalog) (*Summary, error) {
	conn, err := s.Conn()
	if err != nil {
		return nil, err
	}

	info, err := conn.ServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	dcs, err := conn.ListDatacenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datacenters: %w", err)
	}
	pools, err := conn.ListResourcePools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resource pools: %w", err)
	}

	return &Summary{
		Address:       s.Address(),
		Kind:          s.Kind().String(),
		Server:        info,
		Datacenters:   dcs,
		Hosts:         c.Hosts,
		Datastores:    c.Datastores,
		ResourcePools: pools,
		VMs:           c.VMs,
	}, nil
}
