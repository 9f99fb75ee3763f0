package clone

import (
	"fmt"
	"path"
)

const (
	defaultDevice    = "eth0"
	defaultNetmask   = "255.255.255.0"
	networkScriptDir = "/etc/sysconfig/network-scripts"
	shell            = "/bin/sh"
)

// NetworkTemplate describes the primary interface configuration written into
// a cloned guest.
type NetworkTemplate struct {
	Device  string
	Netmask string
	// ConfigPath defaults to the ifcfg file of Device.
	ConfigPath string
}

// DefaultNetworkTemplate returns the eth0 /24 static template.
func DefaultNetworkTemplate() NetworkTemplate {
	return NetworkTemplate{Device: defaultDevice, Netmask: defaultNetmask}
}

func (n NetworkTemplate) device() string {
	if n.Device == "" {
		return defaultDevice
	}
	return n.Device
}

// Path returns the interface config file rewritten in the guest.
func (n NetworkTemplate) Path() string {
	if n.ConfigPath != "" {
		return n.ConfigPath
	}
	return path.Join(networkScriptDir, "ifcfg-"+n.device())
}

// Lines returns the interface config for ip in write order.
func (n NetworkTemplate) Lines(ip string) []string {
	netmask := n.Netmask
	if netmask == "" {
		netmask = defaultNetmask
	}
	return []string{
		"DEVICE=" + n.device(),
		"BOOTPROTO=static",
		"IPADDR=" + ip,
		"NETMASK=" + netmask,
		"ONBOOT=yes",
		"TYPE=Ethernet",
	}
}

// Command is one guest process invocation.
type Command struct {
	Program string
	Args    []string
}

// Commands returns the guest processes that rewrite the config file, one per
// line. The first truncates the file and the rest append.
func (n NetworkTemplate) Commands(ip string) []Command {
	lines := n.Lines(ip)
	cmds := make([]Command, 0, len(lines))
	for i, line := range lines {
		redirect := ">>"
		if i == 0 {
			redirect = ">"
		}
		cmds = append(cmds, Command{
			Program: shell,
			Args:    []string{"-c", fmt.Sprintf("echo '%s' %s %s", line, redirect, n.Path())},
		})
	}
	return cmds
}
