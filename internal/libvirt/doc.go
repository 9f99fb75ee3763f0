// Package libvirt implements the provider interfaces over
// github.com/digitalocean/go-libvirt.
//
// Connections go to the local libvirt socket, or through an SSH tunnel to
// the socket of a remote hypervisor when an address is configured:
//
//	client, err := libvirt.Connect(ctx, libvirt.Options{Address: "kvm01", Principal: "root", Credential: pw})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Inventory mapping:
//   - VMs are domains, addressed by UUID and displayed as "name (uuid)"
//   - the host is the hypervisor, identified by the capabilities host UUID
//   - datastores are storage pools (see internal/storage)
//   - resource pools are domain resource partitions
//
// In-guest commands use the QEMU guest agent (guest-exec) or SSH. Clones
// copy every file-backed disk with StorageVolCreateXMLFrom and record their
// provenance as domain metadata (see internal/metadata).
package libvirt
