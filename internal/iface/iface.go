// Package iface resolves a network interface name to its IPv4 address,
// netmask, broadcast address and hardware address. This stands in for
// the external interface-enumeration collaborator named in spec.md §1
// ("returns address/netmask/broadcast for a named NIC"); we implement
// it directly since Go's standard library makes this straightforward.
package iface

import (
	"fmt"
	"net"
)

// Descriptor is the immutable interface descriptor from spec.md §3.
type Descriptor struct {
	Name      string
	Address   net.IP // IPv4
	Netmask   net.IPMask
	Broadcast net.IP
	HWAddr    net.HardwareAddr
}

// Resolve looks up name and returns its first IPv4 address, netmask and
// computed broadcast address. A ConfigError-class failure (unknown
// interface, no IPv4 address) is returned as a plain error; callers
// treat resolution failures as fatal startup errors per spec.md §7.
func Resolve(name string) (*Descriptor, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("iface: unknown interface %q: %w", name, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("iface: reading addresses for %q: %w", name, err)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue // skip IPv6
		}

		mask := ipNet.Mask
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}

		bcast := make(net.IP, 4)
		for i := range bcast {
			bcast[i] = ip4[i] | ^mask[i]
		}

		return &Descriptor{
			Name:      name,
			Address:   ip4,
			Netmask:   mask,
			Broadcast: bcast,
			HWAddr:    ifi.HardwareAddr,
		}, nil
	}

	return nil, fmt.Errorf("iface: %q has no IPv4 address", name)
}
