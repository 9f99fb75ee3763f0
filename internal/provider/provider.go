// Package provider defines the capability interface the orchestration layer
// consumes from a virtualization provider, plus the Session that owns the
// single provider connection of a run.
//
// Concrete providers (see internal/libvirt) implement Provider, Conn and VM.
// Everything above this package talks only to these interfaces.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection is returned when the provider endpoint cannot be reached or
	// rejects the supplied principal/credential. It is fatal to a run.
	ErrConnection = errors.New("provider connection failed")

	// ErrNotConnected is returned for any inventory or VM operation attempted
	// while the session is not connected.
	ErrNotConnected = errors.New("provider session is not connected")

	// ErrVMNotFound is returned when a provider path does not resolve to a VM.
	ErrVMNotFound = errors.New("vm not found")

	// ErrGuestAuth is returned when logging into a guest fails.
	ErrGuestAuth = errors.New("guest authentication failed")

	// ErrGuestNotLoggedIn is returned when a guest process is started before
	// a successful LoginInGuest on the same handle.
	ErrGuestNotLoggedIn = errors.New("not logged into guest")

	// ErrNotImplemented marks operations whose vocabulary entry exists but
	// which have no behavior yet (migrate, batch rename).
	ErrNotImplemented = errors.New("not implemented")
)

// Kind is the type of provider endpoint a session is connected to.
type Kind int

const (
	// SingleHost is a standalone hypervisor host.
	SingleHost Kind = iota
	// ManagementCluster is a controller managing several hosts.
	ManagementCluster
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case SingleHost:
		return "single-host"
	case ManagementCluster:
		return "management-cluster"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind parses a kind name. Short forms "host" and "cluster" are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "single-host", "singlehost":
		return SingleHost, nil
	case "cluster", "management-cluster", "managementcluster":
		return ManagementCluster, nil
	default:
		return 0, fmt.Errorf("invalid provider kind: %q (valid: host, cluster)", s)
	}
}

// PowerState is the power state reported by the provider for a VM.
type PowerState string

const (
	PoweredOn  PowerState = "POWERED ON"
	PoweredOff PowerState = "POWERED OFF"
	Suspended  PowerState = "SUSPENDED"
	Unknown    PowerState = "UNKNOWN"
)

// Endpoint identifies the provider to connect to.
type Endpoint struct {
	Address    string
	Principal  string
	Credential string
}

// Item is one inventory entry. For VMs Name is the display string and ID the
// provider path; for hosts and datastores Name is the friendly label.
type Item struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ServerInfo describes the provider endpoint.
type ServerInfo struct {
	Type    string `json:"type" yaml:"type"`
	Version string `json:"version" yaml:"version"`
	APIType string `json:"apiType" yaml:"apiType"`
}

// ProcessResult is what the provider returns for a started guest process.
type ProcessResult struct {
	PID      int64  `json:"pid" yaml:"pid"`
	ExitCode int    `json:"exitCode" yaml:"exitCode"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
}

// CloneSpec describes a clone request against a resolved host/datastore pair.
type CloneSpec struct {
	Name        string
	HostID      string
	DatastoreID string
	// GuestIP is advisory; providers may use it to derive NIC addressing.
	GuestIP string
	PowerOn bool
}

// Provider opens connections to a virtualization endpoint.
type Provider interface {
	Connect(ctx context.Context, ep Endpoint) (Conn, error)
}

// Conn is an open provider connection.
type Conn interface {
	Kind() Kind
	Close() error
	ServerInfo(ctx context.Context) (ServerInfo, error)
	ListVMs(ctx context.Context) ([]Item, error)
	ListHosts(ctx context.Context) ([]Item, error)
	ListDatastores(ctx context.Context) ([]Item, error)
	ListDatacenters(ctx context.Context) ([]Item, error)
	ListResourcePools(ctx context.Context) ([]Item, error)
	// VMByPath returns a fresh handle, or ErrVMNotFound.
	VMByPath(ctx context.Context, path string) (VM, error)
}

// Pinger is implemented by connections that can check they are still alive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CloneSourceReporter is implemented by VMs that record the template they
// were cloned from. ClonedFrom returns "" for VMs without such a record.
type CloneSourceReporter interface {
	ClonedFrom(ctx context.Context) (string, error)
}

// VM is a handle on one inventory VM. Handles are valid only while the
// session that produced them is connected and should not be cached across
// actions.
type VM interface {
	Name() string
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	RebootGuest(ctx context.Context) error
	Status(ctx context.Context) (PowerState, error)
	ToolsStatus(ctx context.Context) (string, error)
	ResourcePoolName(ctx context.Context) (string, error)
	LoginInGuest(ctx context.Context, principal, credential string) error
	StartProcess(ctx context.Context, program string, args []string) (ProcessResult, error)
	Clone(ctx context.Context, spec CloneSpec) (VM, error)
}
