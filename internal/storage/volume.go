package storage

import (
	"context"
	"fmt"
	"strings"

	libvirtxml "libvirt.org/go/libvirtxml"
)

// CloneVolume copies the volume at sourcePath into the pool identified by
// poolID under name. The new volume keeps the source format and capacity.
func (m *Manager) CloneVolume(ctx context.Context, poolID, sourcePath, name string) (*VolumeInfo, error) {
	// Look up the target pool
	pool, err := m.lookupPool(poolID)
	if err != nil {
		return nil, err
	}

	// Look up the source volume
	source, err := m.client.StorageVolLookupByPath(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrVolumeNotFound, sourcePath, err)
	}

	sourceXML, err := m.client.StorageVolGetXMLDesc(source, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get source volume XML: %w", err)
	}

	var sourceDef libvirtxml.StorageVolume
	if err := sourceDef.Unmarshal(sourceXML); err != nil {
		return nil, fmt.Errorf("failed to parse source volume XML: %w", err)
	}

	volumeXML, format, err := generateCloneXML(name, &sourceDef)
	if err != nil {
		return nil, fmt.Errorf("failed to generate volume XML: %w", err)
	}

	// Copy the data; this blocks until libvirt has finished
	vol, err := m.client.StorageVolCreateXMLFrom(pool, volumeXML, source, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to clone volume %s: %w", sourcePath, err)
	}

	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		_ = m.client.StorageVolDelete(vol, 0)
		return nil, fmt.Errorf("failed to get volume path: %w", err)
	}

	return &VolumeInfo{
		Name:   vol.Name,
		Pool:   pool.Name,
		Path:   path,
		Format: format,
	}, nil
}

// DeleteVolumeByPath deletes the volume at path.
func (m *Manager) DeleteVolumeByPath(ctx context.Context, path string) error {
	vol, err := m.client.StorageVolLookupByPath(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVolumeNotFound, path, err)
	}

	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	return nil
}

// generateCloneXML generates XML for a volume cloned from source.
func generateCloneXML(name string, source *libvirtxml.StorageVolume) (string, VolumeFormat, error) {
	format := VolumeFormatRaw
	if source.Target != nil && source.Target.Format != nil && source.Target.Format.Type != "" {
		format = VolumeFormat(source.Target.Format.Type)
	}

	vol := &libvirtxml.StorageVolume{
		Type:     "file",
		Name:     name,
		Capacity: source.Capacity,
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: string(format),
			},
			Permissions: &libvirtxml.StorageVolumeTargetPermissions{
				Owner: "107", // qemu user
				Group: "107", // qemu group
				Mode:  "0644",
			},
		},
	}

	xmlBytes, err := vol.Marshal()
	if err != nil {
		return "", "", err
	}

	// Clean up the XML: remove standalone attribute
	xml := string(xmlBytes)
	xml = strings.TrimPrefix(xml, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	xml = strings.TrimSpace(xml)

	return xml, format, nil
}
