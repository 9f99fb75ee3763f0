package libvirt

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/layneYoo/vms/internal/metadata"
	"github.com/layneYoo/vms/internal/storage"
)

// libvirtClient defines the libvirt operations needed by the provider.
// This wraps operations from *libvirt.Libvirt to allow for testing.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	metadata.LibvirtClient

	// ConnectListAllDomains lists defined domains (running and stopped)
	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// ConnectGetCapabilities returns the host capabilities XML
	ConnectGetCapabilities() (string, error)

	// ConnectGetHostname returns the hypervisor hostname
	ConnectGetHostname() (string, error)

	// ConnectGetUri returns the connection URI
	ConnectGetUri() (string, error)

	// ConnectGetType returns the hypervisor driver name (e.g. QEMU)
	ConnectGetType() (string, error)

	// ConnectGetLibVersion returns the libvirt version number
	ConnectGetLibVersion() (uint64, error)

	// DomainLookupByUUID looks up a domain by UUID
	DomainLookupByUUID(UUID libvirt.UUID) (libvirt.Domain, error)

	// DomainGetXMLDesc returns the domain XML
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)

	// DomainGetState gets the state of a domain
	DomainGetState(Dom libvirt.Domain, Flags uint32) (rState int32, rReason int32, err error)

	// DomainCreate starts a domain
	DomainCreate(Dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(Dom libvirt.Domain) error

	// DomainReboot asks the guest to reboot
	DomainReboot(Dom libvirt.Domain, Flags libvirt.DomainRebootFlagValues) error

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(XML string) (libvirt.Domain, error)

	// DomainUndefine undefines a domain
	DomainUndefine(Dom libvirt.Domain) error

	// DomainInterfaceAddresses reports guest addresses
	DomainInterfaceAddresses(Dom libvirt.Domain, Source uint32, Flags uint32) ([]libvirt.DomainInterface, error)

	// QEMUDomainAgentCommand sends a raw command to the QEMU guest agent
	QEMUDomainAgentCommand(Dom libvirt.Domain, Cmd string, Timeout int32, Flags uint32) (libvirt.OptString, error)
}

// storageManager defines the storage operations needed by the provider.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type storageManager interface {
	// ListPools lists storage pools, which are the host's datastores
	ListPools(ctx context.Context) ([]storage.PoolInfo, error)

	// CloneVolume copies a volume into the pool with the given UUID
	CloneVolume(ctx context.Context, poolID, sourcePath, name string) (*storage.VolumeInfo, error)

	// DeleteVolumeByPath removes a volume, used to roll back a failed clone
	DeleteVolumeByPath(ctx context.Context, path string) error
}
