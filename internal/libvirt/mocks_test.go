package libvirt

import (
	"context"
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/layneYoo/vms/internal/storage"
)

const (
	testHostUUID   = "0f6a3a52-7c1e-4d4b-9a61-3c0e2b8f9d10"
	testSourceUUID = "4b1c8d2e-1111-2222-3333-444455556666"
	testPoolUUID   = "8a6b3c1e-2f4d-4e5a-9b7c-0d1e2f3a4b5c"

	testCapsXML = `<capabilities><host><uuid>` + testHostUUID + `</uuid></host></capabilities>`

	testSourceXML = `<domain type="kvm">
  <name>centos6.7</name>
  <uuid>` + testSourceUUID + `</uuid>
  <resource><partition>/machine/web</partition></resource>
  <devices>
    <disk type="file" device="disk"><source file="/pools/default/centos.qcow2"/><target dev="vda" bus="virtio"/></disk>
    <disk type="file" device="disk"><source file="/pools/default/centos-data.raw"/><target dev="vdb" bus="virtio"/></disk>
    <disk type="file" device="cdrom"><source file="/iso/tools.iso"/><target dev="hdc" bus="ide"/></disk>
    <interface type="network"><mac address="52:54:00:aa:bb:cc"/><source network="default"/></interface>
    <interface type="network"><mac address="52:54:00:aa:bb:dd"/><source network="default"/></interface>
  </devices>
</domain>`
)

func mustUUID(s string) libvirt.UUID {
	return libvirt.UUID(uuid.MustParse(s))
}

func testDomain(name, id string) libvirt.Domain {
	return libvirt.Domain{Name: name, UUID: mustUUID(id)}
}

// mockLibvirtClient is a mock implementation of the libvirtClient interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	connectListAllDomainsFunc    func() ([]libvirt.Domain, error)
	connectGetCapabilitiesFunc   func() (string, error)
	connectGetHostnameFunc       func() (string, error)
	connectGetURIFunc            func() (string, error)
	connectGetTypeFunc           func() (string, error)
	connectGetLibVersionFunc     func() (uint64, error)
	domainLookupByUUIDFunc       func(id libvirt.UUID) (libvirt.Domain, error)
	domainGetXMLDescFunc         func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainGetStateFunc           func(dom libvirt.Domain) (int32, error)
	domainCreateFunc             func(dom libvirt.Domain) error
	domainDestroyFunc            func(dom libvirt.Domain) error
	domainRebootFunc             func(dom libvirt.Domain) error
	domainDefineXMLFunc          func(xml string) (libvirt.Domain, error)
	domainUndefineFunc           func(dom libvirt.Domain) error
	domainInterfaceAddressesFunc func(dom libvirt.Domain, source uint32) ([]libvirt.DomainInterface, error)
	agentCommandFunc             func(dom libvirt.Domain, cmd string) (libvirt.OptString, error)
	domainSetMetadataFunc        func(dom libvirt.Domain, md string) error
	domainGetMetadataFunc        func(dom libvirt.Domain) (string, error)

	// Call tracking
	domainCreateCalls    []libvirt.Domain
	domainDestroyCalls   []libvirt.Domain
	domainRebootCalls    []libvirt.Domain
	domainDefineXMLCalls []string
	domainUndefineCalls  []libvirt.Domain
	domainXMLFlags       []libvirt.DomainXMLFlags
	agentCommandCalls    []string
	setMetadataCalls     []string
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior:
// one shut off source domain on a host with known capabilities.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	m.connectListAllDomainsFunc = func() ([]libvirt.Domain, error) {
		return []libvirt.Domain{testDomain("centos6.7", testSourceUUID)}, nil
	}
	m.connectGetCapabilitiesFunc = func() (string, error) { return testCapsXML, nil }
	m.connectGetHostnameFunc = func() (string, error) { return "kvm01.example.com", nil }
	m.connectGetURIFunc = func() (string, error) { return "qemu:///system", nil }
	m.connectGetTypeFunc = func() (string, error) { return "QEMU", nil }
	m.connectGetLibVersionFunc = func() (uint64, error) { return 10000000, nil }
	m.domainLookupByUUIDFunc = func(id libvirt.UUID) (libvirt.Domain, error) {
		if id == mustUUID(testSourceUUID) {
			return testDomain("centos6.7", testSourceUUID), nil
		}
		return libvirt.Domain{}, fmt.Errorf("Domain not found: no domain with matching uuid")
	}
	m.domainGetXMLDescFunc = func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
		return testSourceXML, nil
	}
	m.domainGetStateFunc = func(dom libvirt.Domain) (int32, error) {
		return domainStateShutoff, nil
	}
	m.domainCreateFunc = func(dom libvirt.Domain) error { return nil }
	m.domainDestroyFunc = func(dom libvirt.Domain) error { return nil }
	m.domainRebootFunc = func(dom libvirt.Domain) error { return nil }
	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return testDomain("centos6.7(10.0.0.5)", "9e0c7a44-5555-6666-7777-888899990000"), nil
	}
	m.domainUndefineFunc = func(dom libvirt.Domain) error { return nil }
	m.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32) ([]libvirt.DomainInterface, error) {
		return nil, fmt.Errorf("guest agent is not connected")
	}
	m.agentCommandFunc = func(dom libvirt.Domain, cmd string) (libvirt.OptString, error) {
		return libvirt.OptString{`{"return":{}}`}, nil
	}
	m.domainSetMetadataFunc = func(dom libvirt.Domain, md string) error { return nil }
	m.domainGetMetadataFunc = func(dom libvirt.Domain) (string, error) {
		return "", libvirt.Error{Code: uint32(libvirt.ErrNoDomainMetadata), Message: "metadata not found: Requested metadata element is not present"}
	}

	return m
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	domains, err := m.connectListAllDomainsFunc()
	return domains, uint32(len(domains)), err
}

func (m *mockLibvirtClient) ConnectGetCapabilities() (string, error) {
	return m.connectGetCapabilitiesFunc()
}

func (m *mockLibvirtClient) ConnectGetHostname() (string, error) {
	return m.connectGetHostnameFunc()
}

func (m *mockLibvirtClient) ConnectGetUri() (string, error) {
	return m.connectGetURIFunc()
}

func (m *mockLibvirtClient) ConnectGetType() (string, error) {
	return m.connectGetTypeFunc()
}

func (m *mockLibvirtClient) ConnectGetLibVersion() (uint64, error) {
	return m.connectGetLibVersionFunc()
}

func (m *mockLibvirtClient) DomainLookupByUUID(id libvirt.UUID) (libvirt.Domain, error) {
	return m.domainLookupByUUIDFunc(id)
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	m.domainXMLFlags = append(m.domainXMLFlags, flags)
	m.mu.Unlock()
	return m.domainGetXMLDescFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	state, err := m.domainGetStateFunc(dom)
	return state, 0, err
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	m.mu.Unlock()
	return m.domainCreateFunc(dom)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	m.mu.Unlock()
	return m.domainDestroyFunc(dom)
}

func (m *mockLibvirtClient) DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error {
	m.mu.Lock()
	m.domainRebootCalls = append(m.domainRebootCalls, dom)
	m.mu.Unlock()
	return m.domainRebootFunc(dom)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	m.mu.Unlock()
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainUndefine(dom libvirt.Domain) error {
	m.mu.Lock()
	m.domainUndefineCalls = append(m.domainUndefineCalls, dom)
	m.mu.Unlock()
	return m.domainUndefineFunc(dom)
}

func (m *mockLibvirtClient) DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
	return m.domainInterfaceAddressesFunc(dom, source)
}

func (m *mockLibvirtClient) QEMUDomainAgentCommand(dom libvirt.Domain, cmd string, timeout int32, flags uint32) (libvirt.OptString, error) {
	m.mu.Lock()
	m.agentCommandCalls = append(m.agentCommandCalls, cmd)
	m.mu.Unlock()
	return m.agentCommandFunc(dom, cmd)
}

func (m *mockLibvirtClient) DomainSetMetadata(dom libvirt.Domain, typ int32, md libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
	value := ""
	if len(md) > 0 {
		value = md[0]
	}
	m.mu.Lock()
	m.setMetadataCalls = append(m.setMetadataCalls, value)
	m.mu.Unlock()
	return m.domainSetMetadataFunc(dom, value)
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	return m.domainGetMetadataFunc(dom)
}

// mockStorageManager is a mock implementation of the storageManager interface for testing.
type mockStorageManager struct {
	mu sync.Mutex

	// Configurable behavior
	listPoolsFunc   func() ([]storage.PoolInfo, error)
	cloneVolumeFunc func(poolID, sourcePath, name string) (*storage.VolumeInfo, error)
	deleteFunc      func(path string) error

	// Call tracking
	cloneVolumeCalls []string // names
	deleteCalls      []string // paths
}

func newMockStorageManager() *mockStorageManager {
	m := &mockStorageManager{}

	m.listPoolsFunc = func() ([]storage.PoolInfo, error) {
		return []storage.PoolInfo{
			{Name: "default", UUID: testPoolUUID},
			{Name: "fast", UUID: "11111111-2222-3333-4444-555555555555"},
		}, nil
	}
	m.cloneVolumeFunc = func(poolID, sourcePath, name string) (*storage.VolumeInfo, error) {
		return &storage.VolumeInfo{Name: name, Pool: "default", Path: "/pools/default/" + name}, nil
	}
	m.deleteFunc = func(path string) error { return nil }

	return m
}

func (m *mockStorageManager) ListPools(ctx context.Context) ([]storage.PoolInfo, error) {
	return m.listPoolsFunc()
}

func (m *mockStorageManager) CloneVolume(ctx context.Context, poolID, sourcePath, name string) (*storage.VolumeInfo, error) {
	m.mu.Lock()
	m.cloneVolumeCalls = append(m.cloneVolumeCalls, name)
	m.mu.Unlock()
	return m.cloneVolumeFunc(poolID, sourcePath, name)
}

func (m *mockStorageManager) DeleteVolumeByPath(ctx context.Context, path string) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, path)
	m.mu.Unlock()
	return m.deleteFunc(path)
}

// mockCloser counts Close calls.
type mockCloser struct {
	calls int
	err   error
}

func (c *mockCloser) Close() error {
	c.calls++
	return c.err
}
