package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocket is the qemu:///system libvirt socket.
	DefaultSocket = "/var/run/libvirt/libvirt-sock"

	// DefaultTimeout bounds dialing the libvirt socket.
	DefaultTimeout = 5 * time.Second

	// DefaultSSHPort is used when Options.Address carries no port.
	DefaultSSHPort = 22
)

// Options describe how to reach a libvirt daemon.
type Options struct {
	// Address of a remote hypervisor reached over SSH. Empty means the
	// local socket.
	Address string
	// Socket is the libvirt socket path, local or on the remote host.
	Socket string
	// Principal and Credential authenticate the SSH tunnel.
	Principal  string
	Credential string
	SSHPort    int
	// HostKey pins the remote host key in authorized_keys format.
	// Empty accepts any host key.
	HostKey string
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Socket == "" {
		o.Socket = DefaultSocket
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SSHPort == 0 {
		o.SSHPort = DefaultSSHPort
	}
	return o
}

// target describes the endpoint for error messages.
func (o Options) target() string {
	if o.Address == "" {
		return o.Socket
	}
	return o.Address + ":" + o.Socket
}

// dialer picks the local socket dialer or the SSH tunnel.
func (o Options) dialer() (socket.Dialer, error) {
	if o.Address == "" {
		return dialers.NewLocal(
			dialers.WithSocket(o.Socket),
			dialers.WithLocalTimeout(o.Timeout),
		), nil
	}
	return newSSHDialer(o)
}

// Client wraps a go-libvirt connection.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect establishes a connection to a libvirt daemon. It returns a Client
// that must be closed via Close() when done.
//
// With an empty Address the local socket is used; otherwise the socket on
// the remote host is reached through an SSH tunnel authenticated with
// Principal and Credential.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	// Attempt connection in a goroutine
	go func() {
		c, err := connect(opts)
		resultCh <- result{client: c, err: err}
	}()

	// Wait for either context cancellation or connection completion
	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

func connect(opts Options) (*Client, error) {
	d, err := opts.dialer()
	if err != nil {
		return nil, err
	}

	l := libvirt.NewWithDialer(d)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", opts.target(), err)
	}

	return &Client{libvirt: l}, nil
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping verifies the connection is still alive by calling a simple libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}

// FormatVersion renders a libvirt version number such as 8006000 as 8.6.0.
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v%1000000)/1000, v%1000)
}
