package storage

import (
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
type mockLibvirtClient struct {
	pools   []*mockPool
	volumes map[string]*mockVolume // path -> volume

	listErr   error
	cloneErr  error
	deleteErr error

	cloneCalls  []string // volume XML passed to StorageVolCreateXMLFrom
	deleteCalls []string // volume names
}

type mockPool struct {
	name      string
	uuid      uuid.UUID
	state     libvirt.StoragePoolState
	capacity  uint64
	allocated uint64
	available uint64
	xmlDesc   string
	infoErr   error
}

type mockVolume struct {
	name    string
	pool    string
	path    string
	xmlDesc string
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		volumes: make(map[string]*mockVolume),
	}
}

// addPool registers a running dir pool rooted at /pools/<name>.
func (m *mockLibvirtClient) addPool(name, id string) *mockPool {
	p := &mockPool{
		name:      name,
		uuid:      uuid.MustParse(id),
		state:     libvirt.StoragePoolRunning,
		capacity:  1024 * 1024 * 1024 * 1024,
		available: 1024 * 1024 * 1024 * 1024,
		xmlDesc:   fmt.Sprintf("<pool type='dir'><name>%s</name><target><path>/pools/%s</path></target></pool>", name, name),
	}
	m.pools = append(m.pools, p)
	return p
}

func (m *mockLibvirtClient) addVolume(pool, name, format string) *mockVolume {
	path := "/pools/" + pool + "/" + name
	v := &mockVolume{
		name: name,
		pool: pool,
		path: path,
		xmlDesc: fmt.Sprintf("<volume type='file'><name>%s</name><capacity unit='bytes'>21474836480</capacity>"+
			"<target><path>%s</path><format type='%s'/></target></volume>", name, path, format),
	}
	m.volumes[path] = v
	return v
}

func (m *mockLibvirtClient) findPool(name string) (*mockPool, error) {
	for _, p := range m.pools {
		if p.name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("storage pool not found: %s", name)
}

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var result []libvirt.StoragePool
	for _, p := range m.pools {
		result = append(result, libvirt.StoragePool{Name: p.name, UUID: libvirt.UUID(p.uuid)})
	}
	return result, uint32(len(result)), nil
}

func (m *mockLibvirtClient) StoragePoolLookupByUUID(id libvirt.UUID) (libvirt.StoragePool, error) {
	for _, p := range m.pools {
		if libvirt.UUID(p.uuid) == id {
			return libvirt.StoragePool{Name: p.name, UUID: id}, nil
		}
	}
	return libvirt.StoragePool{}, fmt.Errorf("no storage pool with matching uuid")
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	p, err := m.findPool(pool.Name)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if p.infoErr != nil {
		return 0, 0, 0, 0, p.infoErr
	}
	return uint8(p.state), p.capacity, p.allocated, p.available, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, err := m.findPool(pool.Name)
	if err != nil {
		return "", err
	}
	return p.xmlDesc, nil
}

func (m *mockLibvirtClient) StorageVolLookupByPath(path string) (libvirt.StorageVol, error) {
	v, ok := m.volumes[path]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("no storage vol with matching path '%s'", path)
	}
	return libvirt.StorageVol{Pool: v.pool, Name: v.name, Key: v.path}, nil
}

func (m *mockLibvirtClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, ok := m.volumes[vol.Key]
	if !ok {
		return "", fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v.xmlDesc, nil
}

func (m *mockLibvirtClient) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, clonevol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	m.cloneCalls = append(m.cloneCalls, xml)
	if m.cloneErr != nil {
		return libvirt.StorageVol{}, m.cloneErr
	}

	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: missing name")
	}

	path := "/pools/" + pool.Name + "/" + name
	if _, ok := m.volumes[path]; ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume already exists: %s", name)
	}
	m.volumes[path] = &mockVolume{name: name, pool: pool.Name, path: path}

	return libvirt.StorageVol{Pool: pool.Name, Name: name, Key: path}, nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, ok := m.volumes[vol.Key]
	if !ok {
		return "", fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	m.deleteCalls = append(m.deleteCalls, vol.Name)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.volumes[vol.Key]; !ok {
		return fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	delete(m.volumes, vol.Key)
	return nil
}

// extractTagValue extracts the value of an XML tag (simple parser for testing).
func extractTagValue(xml, tag string) string {
	_, rest, ok := strings.Cut(xml, "<"+tag+">")
	if !ok {
		return ""
	}
	value, _, ok := strings.Cut(rest, "</"+tag+">")
	if !ok {
		return ""
	}
	return value
}
