package libvirt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/digitalocean/go-libvirt"
	"golang.org/x/crypto/ssh"
)

func TestGuestAddress(t *testing.T) {
	dom := testDomain("web01", testSourceUUID)

	tests := []struct {
		name    string
		reply   func(source uint32) ([]libvirt.DomainInterface, error)
		want    string
		wantErr bool
	}{
		{
			name: "agent reports address",
			reply: func(source uint32) ([]libvirt.DomainInterface, error) {
				return []libvirt.DomainInterface{
					{Name: "lo", Addrs: []libvirt.DomainIPAddr{{Type: ipAddrTypeIPv4, Addr: "127.0.0.1", Prefix: 8}}},
					{Name: "eth0", Addrs: []libvirt.DomainIPAddr{
						{Type: 1, Addr: "fe80::1", Prefix: 64},
						{Type: ipAddrTypeIPv4, Addr: "10.0.0.5", Prefix: 24},
					}},
				}, nil
			},
			want: "10.0.0.5",
		},
		{
			name: "falls back to leases",
			reply: func(source uint32) ([]libvirt.DomainInterface, error) {
				if source == uint32(libvirt.DomainInterfaceAddressesSrcAgent) {
					return nil, errors.New("guest agent is not connected")
				}
				return []libvirt.DomainInterface{
					{Name: "vnet0", Addrs: []libvirt.DomainIPAddr{{Type: ipAddrTypeIPv4, Addr: "192.168.122.40", Prefix: 24}}},
				}, nil
			},
			want: "192.168.122.40",
		},
		{
			name: "no address",
			reply: func(source uint32) ([]libvirt.DomainInterface, error) {
				return nil, nil
			},
			wantErr: true,
		},
		{
			name: "all sources fail",
			reply: func(source uint32) ([]libvirt.DomainInterface, error) {
				return nil, errors.New("unsupported")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lv := newMockLibvirtClient()
			lv.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32) ([]libvirt.DomainInterface, error) {
				return tt.reply(source)
			}

			got, err := guestAddress(context.Background(), lv, dom)
			if tt.wantErr {
				if err == nil {
					t.Errorf("guestAddress() = %s, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("guestAddress() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("guestAddress() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSSHTransport_Login(t *testing.T) {
	lv := newMockLibvirtClient()
	lv.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32) ([]libvirt.DomainInterface, error) {
		return []libvirt.DomainInterface{
			{Name: "eth0", Addrs: []libvirt.DomainIPAddr{{Type: ipAddrTypeIPv4, Addr: "10.0.0.5", Prefix: 24}}},
		}, nil
	}

	tr := newSSHTransport(lv, GuestOptions{Transport: TransportSSH, SSHPort: 2222})
	var dialed []string
	var users []string
	tr.dial = func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		dialed = append(dialed, addr)
		users = append(users, config.User)
		return nil, errors.New("ssh: handshake failed: ssh: unable to authenticate")
	}

	_, err := tr.Login(context.Background(), testDomain("web01", testSourceUUID), "root", "wrong")
	if err == nil || !strings.Contains(err.Error(), "unable to authenticate") {
		t.Fatalf("Login() error = %v", err)
	}
	if len(dialed) != 1 || dialed[0] != "10.0.0.5:2222" {
		t.Errorf("dialed = %v, want [10.0.0.5:2222]", dialed)
	}
	if users[0] != "root" {
		t.Errorf("user = %s, want root", users[0])
	}
}

func TestSSHTransport_Defaults(t *testing.T) {
	tr := newSSHTransport(newMockLibvirtClient(), GuestOptions{})
	if tr.opts.SSHPort != DefaultSSHPort || tr.opts.Timeout != DefaultTimeout {
		t.Errorf("opts = %+v", tr.opts)
	}
}

func TestShellCommand(t *testing.T) {
	got := shellCommand("/bin/sh", []string{"-c", "echo 'DEVICE=eth0' > /etc/sysconfig/network-scripts/ifcfg-eth0"})
	want := `'/bin/sh' '-c' 'echo '\''DEVICE=eth0'\'' > /etc/sysconfig/network-scripts/ifcfg-eth0'`
	if got != want {
		t.Errorf("shellCommand() =\n%s\nwant\n%s", got, want)
	}

	if got := shellCommand("uptime", nil); got != "'uptime'" {
		t.Errorf("shellCommand(uptime) = %s", got)
	}
}
