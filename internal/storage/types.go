package storage

import "errors"

var (
	// ErrPoolNotFound is returned when no storage pool matches an id.
	ErrPoolNotFound = errors.New("storage pool not found")

	// ErrVolumeNotFound is returned when no volume lives at a path.
	ErrVolumeNotFound = errors.New("storage volume not found")
)

// PoolType represents the type of storage pool backend.
type PoolType string

const (
	PoolTypeDir     PoolType = "dir"     // Directory-based storage
	PoolTypeLVM     PoolType = "logical" // LVM volume group
	PoolTypeZFS     PoolType = "zfs"     // ZFS pool
	PoolTypeNFS     PoolType = "netfs"   // NFS mount
	PoolTypeCeph    PoolType = "rbd"     // Ceph RBD
	PoolTypeISCSI   PoolType = "iscsi"   // iSCSI target
	PoolTypeGluster PoolType = "gluster" // GlusterFS
)

// VolumeFormat represents the disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2" // QCOW2 format
	VolumeFormatRaw   VolumeFormat = "raw"   // Raw format
)

// PoolInfo contains information about a storage pool. Pools are the
// datastores of a libvirt host.
type PoolInfo struct {
	Name       string   // Pool name
	UUID       string   // Pool UUID, canonical 8-4-4-4-12 form
	Type       PoolType // Pool type
	Path       string   // Target path (for dir-based pools)
	State      string   // Pool state (running, inactive, etc.)
	Capacity   uint64   // Total capacity in bytes
	Allocation uint64   // Allocated space in bytes
	Available  uint64   // Available space in bytes
}

// CapacityGB returns the pool capacity in GB.
func (p *PoolInfo) CapacityGB() float64 {
	return float64(p.Capacity) / (1024 * 1024 * 1024)
}

// AvailableGB returns the pool available space in GB.
func (p *PoolInfo) AvailableGB() float64 {
	return float64(p.Available) / (1024 * 1024 * 1024)
}

// VolumeInfo describes a volume created by CloneVolume.
type VolumeInfo struct {
	Name   string       // Volume name
	Pool   string       // Pool name
	Path   string       // Full path to volume
	Format VolumeFormat // Disk format, copied from the source volume
}
