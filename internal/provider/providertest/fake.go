// Package providertest provides in-memory fakes of the provider capability
// interface for use in tests of the orchestration packages.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/layneYoo/vms/internal/provider"
)

// Provider is a fake provider.Provider.
type Provider struct {
	ConnectFunc  func(ctx context.Context, ep provider.Endpoint) (provider.Conn, error)
	ConnectCalls []provider.Endpoint
}

// Connect records the endpoint and calls ConnectFunc.
func (p *Provider) Connect(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
	p.ConnectCalls = append(p.ConnectCalls, ep)
	if p.ConnectFunc == nil {
		return NewConn(provider.SingleHost), nil
	}
	return p.ConnectFunc(ctx, ep)
}

// Conn is a fake provider.Conn backed by static inventories and a map of VMs
// keyed by provider path.
type Conn struct {
	mu sync.Mutex

	ConnKind        provider.Kind
	Info            provider.ServerInfo
	VMItems         []provider.Item
	HostItems       []provider.Item
	DatastoreItems  []provider.Item
	DatacenterItems []provider.Item
	PoolItems       []provider.Item
	VMs             map[string]*VM

	ListErr  error
	CloseErr error

	CloseCalls    int
	VMByPathCalls []string
}

// NewConn returns an empty fake connection of the given kind.
func NewConn(kind provider.Kind) *Conn {
	return &Conn{ConnKind: kind, VMs: map[string]*VM{}}
}

// AddVM registers a VM under path and appends it to the VM listing.
func (c *Conn) AddVM(display, path string, vm *VM) *VM {
	c.mu.Lock()
	defer c.mu.Unlock()
	if vm == nil {
		vm = NewVM(display)
	}
	c.VMItems = append(c.VMItems, provider.Item{ID: path, Name: display})
	c.VMs[path] = vm
	return vm
}

func (c *Conn) Kind() provider.Kind { return c.ConnKind }

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return c.CloseErr
}

func (c *Conn) ServerInfo(ctx context.Context) (provider.ServerInfo, error) {
	return c.Info, c.ListErr
}

func (c *Conn) ListVMs(ctx context.Context) ([]provider.Item, error) {
	return c.VMItems, c.ListErr
}

func (c *Conn) ListHosts(ctx context.Context) ([]provider.Item, error) {
	return c.HostItems, c.ListErr
}

func (c *Conn) ListDatastores(ctx context.Context) ([]provider.Item, error) {
	return c.DatastoreItems, c.ListErr
}

func (c *Conn) ListDatacenters(ctx context.Context) ([]provider.Item, error) {
	return c.DatacenterItems, c.ListErr
}

func (c *Conn) ListResourcePools(ctx context.Context) ([]provider.Item, error) {
	return c.PoolItems, c.ListErr
}

func (c *Conn) VMByPath(ctx context.Context, path string) (provider.VM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VMByPathCalls = append(c.VMByPathCalls, path)
	vm, ok := c.VMs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrVMNotFound, path)
	}
	return vm, nil
}

// Process records one StartProcess call.
type Process struct {
	Program string
	Args    []string
}

// VM is a fake provider.VM. By default power operations move State to the
// expected value, guest login succeeds and processes exit 0.
type VM struct {
	mu sync.Mutex

	VMName       string
	State        provider.PowerState
	Tools        string
	ResourcePool string
	Source       string
	SourceErr    error

	PowerOnFunc      func(ctx context.Context) error
	PowerOffFunc     func(ctx context.Context) error
	RebootGuestFunc  func(ctx context.Context) error
	StatusFunc       func(ctx context.Context) (provider.PowerState, error)
	LoginInGuestFunc func(ctx context.Context, principal, credential string) error
	StartProcessFunc func(ctx context.Context, program string, args []string) (provider.ProcessResult, error)
	CloneFunc        func(ctx context.Context, spec provider.CloneSpec) (provider.VM, error)

	PowerOnCalls      int
	PowerOffCalls     int
	RebootGuestCalls  int
	StatusCalls       int
	LoginInGuestCalls []string
	StartProcessCalls []Process
	CloneCalls        []provider.CloneSpec

	loggedIn bool
}

// NewVM returns a powered-off fake VM.
func NewVM(name string) *VM {
	return &VM{
		VMName:       name,
		State:        provider.PoweredOff,
		Tools:        "NOT RUNNING",
		ResourcePool: "/machine",
	}
}

func (v *VM) Name() string { return v.VMName }

func (v *VM) PowerOn(ctx context.Context) error {
	v.mu.Lock()
	v.PowerOnCalls++
	fn := v.PowerOnFunc
	v.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	v.mu.Lock()
	v.State = provider.PoweredOn
	v.mu.Unlock()
	return nil
}

func (v *VM) PowerOff(ctx context.Context) error {
	v.mu.Lock()
	v.PowerOffCalls++
	fn := v.PowerOffFunc
	v.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	v.mu.Lock()
	v.State = provider.PoweredOff
	v.mu.Unlock()
	return nil
}

func (v *VM) RebootGuest(ctx context.Context) error {
	v.mu.Lock()
	v.RebootGuestCalls++
	fn := v.RebootGuestFunc
	v.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (v *VM) Status(ctx context.Context) (provider.PowerState, error) {
	v.mu.Lock()
	v.StatusCalls++
	fn := v.StatusFunc
	state := v.State
	v.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return state, nil
}

func (v *VM) ToolsStatus(ctx context.Context) (string, error) {
	return v.Tools, nil
}

func (v *VM) ResourcePoolName(ctx context.Context) (string, error) {
	return v.ResourcePool, nil
}

func (v *VM) ClonedFrom(ctx context.Context) (string, error) {
	return v.Source, v.SourceErr
}

func (v *VM) LoginInGuest(ctx context.Context, principal, credential string) error {
	v.mu.Lock()
	v.LoginInGuestCalls = append(v.LoginInGuestCalls, principal)
	fn := v.LoginInGuestFunc
	v.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, principal, credential); err != nil {
			return err
		}
	}
	v.mu.Lock()
	v.loggedIn = true
	v.mu.Unlock()
	return nil
}

func (v *VM) StartProcess(ctx context.Context, program string, args []string) (provider.ProcessResult, error) {
	v.mu.Lock()
	v.StartProcessCalls = append(v.StartProcessCalls, Process{Program: program, Args: args})
	fn := v.StartProcessFunc
	loggedIn := v.loggedIn
	v.mu.Unlock()
	if !loggedIn {
		return provider.ProcessResult{}, provider.ErrGuestNotLoggedIn
	}
	if fn != nil {
		return fn(ctx, program, args)
	}
	return provider.ProcessResult{PID: int64(len(v.StartProcessCalls)), ExitCode: 0}, nil
}

func (v *VM) Clone(ctx context.Context, spec provider.CloneSpec) (provider.VM, error) {
	v.mu.Lock()
	v.CloneCalls = append(v.CloneCalls, spec)
	fn := v.CloneFunc
	v.mu.Unlock()
	if fn != nil {
		return fn(ctx, spec)
	}
	clone := NewVM(spec.Name)
	if spec.PowerOn {
		clone.State = provider.PoweredOn
	}
	return clone, nil
}
