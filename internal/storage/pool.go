package storage

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// ListPools lists all storage pools in libvirt listing order.
// Pools whose details cannot be read are skipped.
func (m *Manager) ListPools(ctx context.Context) ([]PoolInfo, error) {
	pools, _, err := m.client.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	infos := make([]PoolInfo, 0, len(pools))
	for _, pool := range pools {
		info, err := m.poolInfo(pool)
		if err != nil {
			continue
		}
		infos = append(infos, *info)
	}

	return infos, nil
}

// PoolByID returns the pool with the given UUID.
func (m *Manager) PoolByID(ctx context.Context, id string) (*PoolInfo, error) {
	pool, err := m.lookupPool(id)
	if err != nil {
		return nil, err
	}
	return m.poolInfo(pool)
}

func (m *Manager) lookupPool(id string) (libvirt.StoragePool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("%w: invalid pool id %q: %w", ErrPoolNotFound, id, err)
	}

	pool, err := m.client.StoragePoolLookupByUUID(libvirt.UUID(parsed))
	if err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("%w: %s: %w", ErrPoolNotFound, id, err)
	}
	return pool, nil
}

// poolInfo gets detailed information about a storage pool.
func (m *Manager) poolInfo(pool libvirt.StoragePool) (*PoolInfo, error) {
	poolState, capacity, allocation, available, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool info: %w", err)
	}

	xmlDesc, err := m.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool XML: %w", err)
	}

	var poolDef libvirtxml.StoragePool
	if err := poolDef.Unmarshal(xmlDesc); err != nil {
		return nil, fmt.Errorf("failed to parse pool XML: %w", err)
	}

	poolPath := ""
	if poolDef.Target != nil {
		poolPath = poolDef.Target.Path
	}

	return &PoolInfo{
		Name:       pool.Name,
		UUID:       uuid.UUID(pool.UUID).String(),
		Type:       PoolType(poolDef.Type),
		Path:       poolPath,
		State:      poolStateName(libvirt.StoragePoolState(poolState)),
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}, nil
}

func poolStateName(state libvirt.StoragePoolState) string {
	switch state {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}
