package libvirt

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/crypto/ssh"
)

// sshDialer reaches a remote libvirt socket through an SSH connection, the
// same transport as a qemu+ssh:// URI.
type sshDialer struct {
	address string
	socket  string
	config  *ssh.ClientConfig
}

func newSSHDialer(o Options) (*sshDialer, error) {
	hostKey, err := hostKeyCallback(o.HostKey)
	if err != nil {
		return nil, err
	}

	return &sshDialer{
		address: sshAddress(o.Address, o.SSHPort),
		socket:  o.Socket,
		config: &ssh.ClientConfig{
			User:            o.Principal,
			Auth:            []ssh.AuthMethod{ssh.Password(o.Credential)},
			HostKeyCallback: hostKey,
			Timeout:         o.Timeout,
		},
	}, nil
}

// Dial implements socket.Dialer.
func (d *sshDialer) Dial() (net.Conn, error) {
	client, err := ssh.Dial("tcp", d.address, d.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh connection to %s: %w", d.address, err)
	}

	conn, err := client.Dial("unix", d.socket)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach %s on %s: %w", d.socket, d.address, err)
	}

	return &tunnelConn{Conn: conn, client: client}, nil
}

// tunnelConn closes the SSH client together with the forwarded stream.
type tunnelConn struct {
	net.Conn
	client *ssh.Client
}

func (c *tunnelConn) Close() error {
	err := c.Conn.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// sshAddress appends port to address unless it already has one.
func sshAddress(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// hostKeyCallback pins key when set. Without a key any host key is accepted.
func hostKeyCallback(key string) (ssh.HostKeyCallback, error) {
	if key == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("invalid host key: %w", err)
	}
	return ssh.FixedHostKey(pub), nil
}
