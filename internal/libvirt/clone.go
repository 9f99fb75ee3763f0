package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/layneYoo/vms/internal/metadata"
	"github.com/layneYoo/vms/internal/naming"
	"github.com/layneYoo/vms/internal/provider"
)

// Clone copies the domain onto the datastore in spec and defines it under
// spec.Name.
//
// This orchestrates the clone:
//  1. Check the target host is the connected host
//  2. Check the source is not running
//  3. Read the inactive source definition
//  4. Clone every file-backed disk into the target pool
//  5. Assign a new UUID and NIC MACs
//  6. Define the new domain and record its provenance
//  7. Start it when spec.PowerOn is set
//
// On any failure, cloned volumes and the new definition are removed.
func (v *domainVM) Clone(ctx context.Context, spec provider.CloneSpec) (provider.VM, error) {
	c := v.conn
	log := c.log.WithValues("source", v.dom.Name, "clone", spec.Name)

	// State tracking for cleanup
	var (
		volumes  []string
		defined  *libvirt.Domain
		cloneErr error
	)
	defer func() {
		if cloneErr != nil {
			v.cleanupClone(ctx, defined, volumes)
		}
	}()

	// Step 1: Check the target host
	hostID, err := c.hostID(ctx)
	if err != nil {
		cloneErr = err
		return nil, cloneErr
	}
	if spec.HostID != hostID {
		cloneErr = fmt.Errorf("host %s is not the connected host %s", spec.HostID, hostID)
		return nil, cloneErr
	}

	// Step 2: Check the source state
	state, err := c.state(ctx, v.dom)
	if err != nil {
		cloneErr = err
		return nil, cloneErr
	}
	if state != domainStateShutoff && state != domainStateCrashed {
		cloneErr = fmt.Errorf("source domain %s must be shut off to clone", v.dom.Name)
		return nil, cloneErr
	}

	// Step 3: Read the source definition
	def, err := c.definition(ctx, v.dom, libvirt.DomainXMLInactive)
	if err != nil {
		cloneErr = err
		return nil, cloneErr
	}

	// Step 4: Clone disks
	if def.Devices != nil {
		for i := range def.Devices.Disks {
			disk := &def.Devices.Disks[i]
			if disk.Device != "" && disk.Device != "disk" {
				continue
			}
			if disk.Source == nil || disk.Source.File == nil || disk.Source.File.File == "" {
				cloneErr = fmt.Errorf("disk %d of %s is not file-backed", i, v.dom.Name)
				return nil, cloneErr
			}

			device := fmt.Sprintf("disk%d", i)
			if disk.Target != nil && disk.Target.Dev != "" {
				device = disk.Target.Dev
			}

			source := disk.Source.File.File
			log.V(1).Info("cloning volume", "device", device, "path", source)
			vol, err := c.storage.CloneVolume(ctx, spec.DatastoreID, source, naming.VolumeNameClone(spec.Name, device, source))
			if err != nil {
				cloneErr = err
				return nil, cloneErr
			}
			volumes = append(volumes, vol.Path)
			disk.Source.File.File = vol.Path
		}
	}

	// Step 5: Identity
	if err := assignIdentity(def, spec); err != nil {
		cloneErr = err
		return nil, cloneErr
	}

	// Step 6: Define
	domainXML, err := def.Marshal()
	if err != nil {
		cloneErr = fmt.Errorf("failed to generate domain XML: %w", err)
		return nil, cloneErr
	}

	dom, err := call(ctx, func() (libvirt.Domain, error) { return c.lv.DomainDefineXML(domainXML) })
	if err != nil {
		cloneErr = fmt.Errorf("failed to define domain: %w", err)
		return nil, cloneErr
	}
	defined = &dom

	err = metadata.Store(c.lv, dom, &metadata.Provenance{
		SourceName: v.dom.Name,
		SourceUUID: domainID(v.dom),
		Datastore:  spec.DatastoreID,
		GuestIP:    spec.GuestIP,
		ClonedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.Error(err, "failed to record clone provenance")
	}

	// Step 7: Start
	if spec.PowerOn {
		if err := callErr(ctx, func() error { return c.lv.DomainCreate(dom) }); err != nil {
			cloneErr = fmt.Errorf("failed to start domain %s: %w", spec.Name, err)
			return nil, cloneErr
		}
	}

	log.V(1).Info("domain cloned", "uuid", domainID(dom), "volumes", len(volumes))
	return newDomainVM(c, dom), nil
}

// assignIdentity renames def and gives it a fresh UUID. The first NIC gets
// the MAC derived from the guest IP; all others are cleared so libvirt
// generates new ones.
func assignIdentity(def *libvirtxml.Domain, spec provider.CloneSpec) error {
	def.Name = spec.Name
	def.UUID = uuid.NewString()
	def.ID = nil

	if def.Devices == nil {
		return nil
	}
	for i := range def.Devices.Interfaces {
		iface := &def.Devices.Interfaces[i]
		iface.MAC = nil
		if i == 0 && spec.GuestIP != "" {
			mac, err := naming.MACFromIP(spec.GuestIP)
			if err != nil {
				return fmt.Errorf("failed to derive MAC address: %w", err)
			}
			iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: mac}
		}
	}
	return nil
}

// cleanupClone removes what a failed clone left behind. Errors are logged,
// not returned. Cleanup runs even when ctx was cancelled.
func (v *domainVM) cleanupClone(ctx context.Context, defined *libvirt.Domain, volumes []string) {
	c := v.conn
	ctx = context.WithoutCancel(ctx)
	if defined != nil {
		if err := c.lv.DomainUndefine(*defined); err != nil {
			c.log.Error(err, "failed to undefine partial clone", "domain", defined.Name)
		}
	}
	for _, path := range volumes {
		if err := c.storage.DeleteVolumeByPath(ctx, path); err != nil {
			c.log.Error(err, "failed to delete cloned volume", "path", path)
		}
	}
}
