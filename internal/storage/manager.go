// Package storage lists libvirt storage pools and clones volumes between
// them. Pools are exposed as the datastores of a host; a clone copies each
// source disk into the chosen pool with StorageVolCreateXMLFrom.
package storage

import (
	"github.com/digitalocean/go-libvirt"
)

// LibvirtClient is the interface for libvirt operations.
// This allows for dependency injection and testing.
type LibvirtClient interface {
	ConnectListAllStoragePools(NeedResults int32, Flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
	StoragePoolLookupByUUID(UUID libvirt.UUID) (libvirt.StoragePool, error)
	StoragePoolGetInfo(Pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error)
	StoragePoolGetXMLDesc(Pool libvirt.StoragePool, Flags libvirt.StorageXMLFlags) (string, error)
	StorageVolLookupByPath(Path string) (libvirt.StorageVol, error)
	StorageVolGetXMLDesc(Vol libvirt.StorageVol, Flags uint32) (string, error)
	StorageVolCreateXMLFrom(Pool libvirt.StoragePool, XML string, Clonevol libvirt.StorageVol, Flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolGetPath(Vol libvirt.StorageVol) (string, error)
	StorageVolDelete(Vol libvirt.StorageVol, Flags libvirt.StorageVolDeleteFlags) error
}

// Manager coordinates storage operations for pools and volumes.
type Manager struct {
	client LibvirtClient
}

// NewManager creates a new storage manager.
func NewManager(client LibvirtClient) *Manager {
	return &Manager{
		client: client,
	}
}
