// Package naming provides naming conventions for cloned VMs and their
// libvirt resources: replica names from batch jobs, display strings,
// deterministic NIC MAC addresses and cloned volume names.
package naming

import (
	"fmt"
	"net"
	"path"
	"strings"
)

// DefaultReplicaTemplate names a replica after its template and fragment.
const DefaultReplicaTemplate = "{template}({fragment})"

// ReplicaName expands a batch name template. Supported placeholders are
// {template}, {fragment} and {version}. An empty pattern uses
// DefaultReplicaTemplate.
//
// Example: "centos6.7({fragment})_web" with fragment 10.0.0.5 → centos6.7(10.0.0.5)_web
func ReplicaName(pattern, template, fragment, version string) string {
	if pattern == "" {
		pattern = DefaultReplicaTemplate
	}
	r := strings.NewReplacer(
		"{template}", template,
		"{fragment}", fragment,
		"{version}", version,
	)
	return r.Replace(pattern)
}

// DisplayName returns the catalog display string for a VM.
// Format: {name} ({path})
func DisplayName(name, path string) string {
	return fmt.Sprintf("%s (%s)", name, path)
}

// MACFromIP calculates a deterministic MAC address from an IP address.
// Uses the locally administered prefix be:ef.
//
// Example: IP 10.55.22.22 → MAC be:ef:0a:37:16:16
func MACFromIP(ip string) (string, error) {
	ipv4, err := parseIPv4(ip)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		ipv4[0], ipv4[1], ipv4[2], ipv4[3]), nil
}

// parseIPv4 accepts "10.1.2.3" and "10.1.2.3/24".
func parseIPv4(ip string) (net.IP, error) {
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return nil, fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsed := net.ParseIP(ipStr)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipStr)
	}
	ipv4 := parsed.To4()
	if ipv4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ipStr)
	}
	return ipv4, nil
}

// VolumeNameClone returns the volume name for a cloned disk, keeping the
// source volume's extension.
// Format: {vmName}_{device}{ext} (e.g., "web05_vda.qcow2")
func VolumeNameClone(vmName, device, sourcePath string) string {
	return fmt.Sprintf("%s_%s%s", sanitize(vmName), device, path.Ext(sourcePath))
}

// sanitize replaces characters that are awkward in file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ' ', '(', ')', '\\', ':':
			return '_'
		}
		return r
	}, s)
}
