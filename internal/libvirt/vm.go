package libvirt

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/layneYoo/vms/internal/metadata"
	"github.com/layneYoo/vms/internal/provider"
)

// Domain states from virDomainState.
const (
	domainStateNoState     = 0
	domainStateRunning     = 1
	domainStateBlocked     = 2
	domainStatePaused      = 3
	domainStateShutdown    = 4
	domainStateShutoff     = 5
	domainStateCrashed     = 6
	domainStatePMSuspended = 7
)

// Guest tools states reported by ToolsStatus.
const (
	ToolsRunning    = "RUNNING"
	ToolsNotRunning = "NOT RUNNING"
)

// domainVM is a handle on one libvirt domain. It implements provider.VM.
type domainVM struct {
	conn    *conn
	dom     libvirt.Domain
	session guestSession
}

func newDomainVM(c *conn, dom libvirt.Domain) *domainVM {
	return &domainVM{conn: c, dom: dom}
}

func (v *domainVM) Name() string { return v.dom.Name }

// PowerOn starts the domain.
func (v *domainVM) PowerOn(ctx context.Context) error {
	if err := callErr(ctx, func() error { return v.conn.lv.DomainCreate(v.dom) }); err != nil {
		return fmt.Errorf("failed to start domain %s: %w", v.dom.Name, err)
	}
	return nil
}

// PowerOff force-stops the domain, like pulling the power cord.
func (v *domainVM) PowerOff(ctx context.Context) error {
	if err := callErr(ctx, func() error { return v.conn.lv.DomainDestroy(v.dom) }); err != nil {
		return fmt.Errorf("failed to stop domain %s: %w", v.dom.Name, err)
	}
	return nil
}

// RebootGuest asks the guest OS to reboot.
func (v *domainVM) RebootGuest(ctx context.Context) error {
	err := callErr(ctx, func() error { return v.conn.lv.DomainReboot(v.dom, libvirt.DomainRebootDefault) })
	if err != nil {
		return fmt.Errorf("failed to reboot domain %s: %w", v.dom.Name, err)
	}
	return nil
}

// Status maps the domain state onto a power state.
func (v *domainVM) Status(ctx context.Context) (provider.PowerState, error) {
	state, err := v.conn.state(ctx, v.dom)
	if err != nil {
		return provider.Unknown, err
	}
	return powerState(state), nil
}

func powerState(state int32) provider.PowerState {
	switch state {
	case domainStateRunning, domainStateBlocked, domainStateShutdown:
		return provider.PoweredOn
	case domainStatePaused, domainStatePMSuspended:
		return provider.Suspended
	case domainStateShutoff, domainStateCrashed:
		return provider.PoweredOff
	default:
		return provider.Unknown
	}
}

// ToolsStatus reports whether the QEMU guest agent answers a ping.
func (v *domainVM) ToolsStatus(ctx context.Context) (string, error) {
	state, err := v.Status(ctx)
	if err != nil {
		return "", err
	}
	if state != provider.PoweredOn {
		return ToolsNotRunning, nil
	}
	if err := v.conn.agent.ping(ctx, v.dom); err != nil {
		return ToolsNotRunning, nil
	}
	return ToolsRunning, nil
}

// ResourcePoolName returns the domain's resource partition.
func (v *domainVM) ResourcePoolName(ctx context.Context) (string, error) {
	return v.conn.partition(ctx, v.dom)
}

// ClonedFrom returns the source domain recorded in the clone metadata, or ""
// when the domain was not cloned by this tool.
func (v *domainVM) ClonedFrom(ctx context.Context) (string, error) {
	p, err := call(ctx, func() (*metadata.Provenance, error) {
		return metadata.Load(v.conn.lv, v.dom)
	})
	if err != nil {
		if noMetadata(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read clone metadata of %s: %w", v.dom.Name, err)
	}
	return p.SourceName, nil
}

func noMetadata(err error) bool {
	var lerr libvirt.Error
	return errors.As(err, &lerr) && lerr.Code == uint32(libvirt.ErrNoDomainMetadata)
}

// LoginInGuest opens a guest session on the configured transport. Commands
// started afterwards run in that session.
func (v *domainVM) LoginInGuest(ctx context.Context, principal, credential string) error {
	v.session = nil
	session, err := v.conn.guest.Login(ctx, v.dom, principal, credential)
	if err != nil {
		return err
	}
	v.session = session
	return nil
}

// StartProcess runs program in the guest and waits for it to exit.
func (v *domainVM) StartProcess(ctx context.Context, program string, args []string) (provider.ProcessResult, error) {
	if v.session == nil {
		return provider.ProcessResult{}, provider.ErrGuestNotLoggedIn
	}
	return v.session.Run(ctx, program, args)
}
