package libvirt

import (
	"context"
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/layneYoo/vms/internal/naming"
	"github.com/layneYoo/vms/internal/provider"
	"github.com/layneYoo/vms/internal/storage"
)

// defaultPartition is the resource partition libvirt assigns to domains
// that do not name one.
const defaultPartition = "/machine"

// Provider opens libvirt connections. It implements provider.Provider.
type Provider struct {
	// Options is the connection template; address, principal and credential
	// come from the endpoint passed to Connect.
	Options Options
	// Kind is reported by every connection. libvirt has no notion of a
	// management cluster, so this is configuration.
	Kind  provider.Kind
	Guest GuestOptions
	Log   logr.Logger
}

// Connect implements provider.Provider.
func (p *Provider) Connect(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
	opts := p.Options
	opts.Address = ep.Address
	opts.Principal = ep.Principal
	opts.Credential = ep.Credential

	client, err := Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	l := client.Libvirt()
	c := newConn(l, storage.NewManager(l), client, p.Kind, p.Guest, p.Log)
	c.alive = client.Ping
	return c, nil
}

// conn is an open libvirt connection. It implements provider.Conn.
type conn struct {
	lv      libvirtClient
	storage storageManager
	closer  io.Closer
	kind    provider.Kind
	agent   *agentTransport
	guest   guestTransport
	alive   func() error
	log     logr.Logger
}

func newConn(lv libvirtClient, sm storageManager, closer io.Closer, kind provider.Kind, guest GuestOptions, log logr.Logger) *conn {
	agent := newAgentTransport(lv)
	var gt guestTransport = agent
	if guest.Transport == TransportSSH {
		gt = newSSHTransport(lv, guest)
	}

	return &conn{
		lv:      lv,
		storage: sm,
		closer:  closer,
		kind:    kind,
		agent:   agent,
		guest:   gt,
		alive: func() error {
			_, err := lv.ConnectGetLibVersion()
			return err
		},
		log: log,
	}
}

func (c *conn) Kind() provider.Kind { return c.kind }

func (c *conn) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Ping checks that the daemon still answers on this connection.
func (c *conn) Ping(ctx context.Context) error {
	return callErr(ctx, c.alive)
}

// ServerInfo reports the hypervisor driver and libvirt version.
func (c *conn) ServerInfo(ctx context.Context) (provider.ServerInfo, error) {
	driver, err := call(ctx, c.lv.ConnectGetType)
	if err != nil {
		return provider.ServerInfo{}, fmt.Errorf("failed to get hypervisor type: %w", err)
	}

	version, err := call(ctx, c.lv.ConnectGetLibVersion)
	if err != nil {
		return provider.ServerInfo{}, fmt.Errorf("failed to get libvirt version: %w", err)
	}

	return provider.ServerInfo{
		Type:    driver,
		Version: FormatVersion(version),
		APIType: "libvirt",
	}, nil
}

// ListVMs lists defined domains. The display string is "name (uuid)" and
// the path is the domain UUID.
func (c *conn) ListVMs(ctx context.Context) ([]provider.Item, error) {
	domains, err := c.domains(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]provider.Item, 0, len(domains))
	for _, d := range domains {
		id := domainID(d)
		items = append(items, provider.Item{ID: id, Name: naming.DisplayName(d.Name, id)})
	}
	return items, nil
}

// ListHosts returns the connected hypervisor, identified by its host UUID.
func (c *conn) ListHosts(ctx context.Context) ([]provider.Item, error) {
	id, err := c.hostID(ctx)
	if err != nil {
		return nil, err
	}

	hostname, err := call(ctx, c.lv.ConnectGetHostname)
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	return []provider.Item{{ID: id, Name: hostname}}, nil
}

// ListDatastores lists storage pools, keyed by pool UUID.
func (c *conn) ListDatastores(ctx context.Context) ([]provider.Item, error) {
	pools, err := call(ctx, func() ([]storage.PoolInfo, error) { return c.storage.ListPools(ctx) })
	if err != nil {
		return nil, err
	}

	items := make([]provider.Item, 0, len(pools))
	for _, p := range pools {
		items = append(items, provider.Item{ID: p.UUID, Name: p.Name})
	}
	return items, nil
}

// ListDatacenters returns the connection itself: its URI labelled with the
// hypervisor hostname.
func (c *conn) ListDatacenters(ctx context.Context) ([]provider.Item, error) {
	uri, err := call(ctx, c.lv.ConnectGetUri)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection URI: %w", err)
	}

	hostname, err := call(ctx, c.lv.ConnectGetHostname)
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	return []provider.Item{{ID: uri, Name: hostname}}, nil
}

// ListResourcePools lists the distinct resource partitions of all domains
// in first-seen order.
func (c *conn) ListResourcePools(ctx context.Context) ([]provider.Item, error) {
	domains, err := c.domains(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var items []provider.Item
	for _, d := range domains {
		partition, err := c.partition(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.log.V(1).Info("skipping domain partition", "domain", d.Name, "err", err)
			continue
		}
		if seen[partition] {
			continue
		}
		seen[partition] = true
		items = append(items, provider.Item{ID: partition, Name: partition})
	}
	return items, nil
}

// VMByPath looks a domain up by UUID.
func (c *conn) VMByPath(ctx context.Context, path string) (provider.VM, error) {
	id, err := uuid.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrVMNotFound, path)
	}

	dom, err := call(ctx, func() (libvirt.Domain, error) { return c.lv.DomainLookupByUUID(libvirt.UUID(id)) })
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", provider.ErrVMNotFound, path, err)
	}

	return newDomainVM(c, dom), nil
}

func (c *conn) domains(ctx context.Context) ([]libvirt.Domain, error) {
	// NeedResults: 1 means populate the domains slice
	// Flags: 0 means all domains (active and inactive)
	domains, err := call(ctx, func() ([]libvirt.Domain, error) {
		domains, _, err := c.lv.ConnectListAllDomains(1, 0)
		return domains, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// hostID returns the host UUID from the capabilities XML.
func (c *conn) hostID(ctx context.Context) (string, error) {
	capsXML, err := call(ctx, c.lv.ConnectGetCapabilities)
	if err != nil {
		return "", fmt.Errorf("failed to get capabilities: %w", err)
	}

	var caps libvirtxml.Caps
	if err := caps.Unmarshal(capsXML); err != nil {
		return "", fmt.Errorf("failed to parse capabilities XML: %w", err)
	}
	if caps.Host.UUID == "" {
		return "", fmt.Errorf("capabilities report no host UUID")
	}
	return caps.Host.UUID, nil
}

// partition returns the domain's resource partition.
func (c *conn) partition(ctx context.Context, d libvirt.Domain) (string, error) {
	def, err := c.definition(ctx, d, 0)
	if err != nil {
		return "", err
	}
	if def.Resource != nil && def.Resource.Partition != "" {
		return def.Resource.Partition, nil
	}
	return defaultPartition, nil
}

func (c *conn) definition(ctx context.Context, d libvirt.Domain, flags libvirt.DomainXMLFlags) (*libvirtxml.Domain, error) {
	xmlDesc, err := call(ctx, func() (string, error) { return c.lv.DomainGetXMLDesc(d, flags) })
	if err != nil {
		return nil, fmt.Errorf("failed to get domain XML: %w", err)
	}

	var def libvirtxml.Domain
	if err := def.Unmarshal(xmlDesc); err != nil {
		return nil, fmt.Errorf("failed to parse domain XML: %w", err)
	}
	return &def, nil
}

// state returns the raw virDomainState of d.
func (c *conn) state(ctx context.Context, d libvirt.Domain) (int32, error) {
	state, err := call(ctx, func() (int32, error) {
		state, _, err := c.lv.DomainGetState(d, 0)
		return state, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get domain state: %w", err)
	}
	return state, nil
}

func domainID(d libvirt.Domain) string {
	return uuid.UUID(d.UUID).String()
}
