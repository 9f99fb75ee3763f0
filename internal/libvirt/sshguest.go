package libvirt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"golang.org/x/crypto/ssh"

	"github.com/layneYoo/vms/internal/provider"
)

// ipAddrTypeIPv4 is VIR_IP_ADDR_TYPE_IPV4.
const ipAddrTypeIPv4 = 0

// sshTransport runs guest commands over SSH with password authentication.
// The guest address is discovered from the guest agent, falling back to
// DHCP leases.
type sshTransport struct {
	lv   libvirtClient
	opts GuestOptions
	dial func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

func newSSHTransport(lv libvirtClient, opts GuestOptions) *sshTransport {
	if opts.SSHPort == 0 {
		opts.SSHPort = DefaultSSHPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &sshTransport{lv: lv, opts: opts, dial: ssh.Dial}
}

// Login verifies the credentials with one SSH handshake.
func (t *sshTransport) Login(ctx context.Context, dom libvirt.Domain, principal, credential string) (guestSession, error) {
	ip, err := guestAddress(ctx, t.lv, dom)
	if err != nil {
		return nil, err
	}

	s := &sshSession{
		transport: t,
		address:   net.JoinHostPort(ip, strconv.Itoa(t.opts.SSHPort)),
		config: &ssh.ClientConfig{
			User:            principal,
			Auth:            []ssh.AuthMethod{ssh.Password(credential)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         t.opts.Timeout,
		},
	}

	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	_ = client.Close()
	return s, nil
}

// guestAddress returns the first non-loopback IPv4 address of the guest.
func guestAddress(ctx context.Context, lv libvirtClient, dom libvirt.Domain) (string, error) {
	sources := []libvirt.DomainInterfaceAddressesSource{
		libvirt.DomainInterfaceAddressesSrcAgent,
		libvirt.DomainInterfaceAddressesSrcLease,
	}

	var lastErr error
	for _, src := range sources {
		ifaces, err := call(ctx, func() ([]libvirt.DomainInterface, error) {
			return lv.DomainInterfaceAddresses(dom, uint32(src), 0)
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			lastErr = err
			continue
		}
		for _, iface := range ifaces {
			for _, addr := range iface.Addrs {
				if addr.Type != ipAddrTypeIPv4 {
					continue
				}
				if ip := net.ParseIP(addr.Addr); ip != nil && !ip.IsLoopback() {
					return addr.Addr, nil
				}
			}
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to find guest address of %s: %w", dom.Name, lastErr)
	}
	return "", fmt.Errorf("failed to find guest address of %s: no IPv4 address reported", dom.Name)
}

// sshSession dials a fresh connection for every process so no connection
// outlives the VM handle.
type sshSession struct {
	transport *sshTransport
	address   string
	config    *ssh.ClientConfig
}

func (s *sshSession) connect() (*ssh.Client, error) {
	client, err := s.transport.dial("tcp", s.address, s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh connection to %s: %w", s.address, err)
	}
	return client, nil
}

// Run executes program through the guest's shell and waits for it.
func (s *sshSession) Run(ctx context.Context, program string, args []string) (provider.ProcessResult, error) {
	client, err := s.connect()
	if err != nil {
		return provider.ProcessResult{}, err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return provider.ProcessResult{}, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		out []byte
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(shellCommand(program, args))
		resultCh <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return provider.ProcessResult{}, fmt.Errorf("waiting for guest command: %w", ctx.Err())
	case res := <-resultCh:
		pr := provider.ProcessResult{Output: string(res.out)}
		var exitErr *ssh.ExitError
		switch {
		case res.err == nil:
		case errors.As(res.err, &exitErr):
			pr.ExitCode = exitErr.ExitStatus()
		default:
			return pr, fmt.Errorf("guest command failed: %w", res.err)
		}
		return pr, nil
	}
}

// shellCommand quotes program and args for a POSIX shell.
func shellCommand(program string, args []string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{program}, args...) {
		words = append(words, "'"+strings.ReplaceAll(w, "'", `'\''`)+"'")
	}
	return strings.Join(words, " ")
}
