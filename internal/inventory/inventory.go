// Package inventory builds the read-only catalog of VMs, hosts and datastores
// reported by the provider at the start of a run.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/layneYoo/vms/internal/provider"
)

var (
	// ErrEmptyInventory is reported when a catalog category has no entries.
	// It is a warning; the run continues.
	ErrEmptyInventory = errors.New("inventory is empty")

	// ErrNotFound is returned when a host or datastore label is absent.
	ErrNotFound = errors.New("label not found in inventory")
)

// Category names an inventory category.
type Category string

const (
	VMs        Category = "vms"
	Hosts      Category = "hosts"
	Datastores Category = "datastores"
)

// Catalog is a snapshot of the provider inventory. VMs keep the provider
// listing order, which is also the order selection results are reported in.
type Catalog struct {
	VMs        []provider.Item
	Hosts      []provider.Item
	Datastores []provider.Item
}

// Build lists VMs, hosts and datastores from the session. Listing failures
// are returned; an empty category is logged with ErrEmptyInventory and the
// returned catalog is still usable.
func Build(ctx context.Context, s *provider.Session, log logr.Logger) (*Catalog, error) {
	conn, err := s.Conn()
	if err != nil {
		return nil, err
	}

	vms, err := conn.ListVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vms: %w", err)
	}
	hosts, err := conn.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	datastores, err := conn.ListDatastores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datastores: %w", err)
	}

	c := &Catalog{VMs: vms, Hosts: hosts, Datastores: datastores}
	for _, cat := range c.Empty() {
		log.Error(ErrEmptyInventory, "inventory category is empty", "category", string(cat))
	}

	log.V(1).Info("inventory built", "vms", len(vms), "hosts", len(hosts), "datastores", len(datastores))
	return c, nil
}

// Len returns the number of entries in a category.
func (c *Catalog) Len(cat Category) int {
	switch cat {
	case VMs:
		return len(c.VMs)
	case Hosts:
		return len(c.Hosts)
	case Datastores:
		return len(c.Datastores)
	}
	return 0
}

// Empty reports which categories have no entries, in VM/host/datastore order.
func (c *Catalog) Empty() []Category {
	var empty []Category
	for _, cat := range []Category{VMs, Hosts, Datastores} {
		if c.Len(cat) == 0 {
			empty = append(empty, cat)
		}
	}
	return empty
}

// ResolveHost returns the id of the first host whose label equals label.
func (c *Catalog) ResolveHost(label string) (string, error) {
	return resolve(c.Hosts, Hosts, label)
}

// ResolveDatastore returns the id of the first datastore whose label equals label.
func (c *Catalog) ResolveDatastore(label string) (string, error) {
	return resolve(c.Datastores, Datastores, label)
}

// Duplicate labels resolve to the first id in provider listing order.
func resolve(items []provider.Item, cat Category, label string) (string, error) {
	for _, it := range items {
		if it.Name == label {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q", ErrNotFound, cat, label)
}
