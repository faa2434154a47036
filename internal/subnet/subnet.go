// Package subnet implements the native-subnet predicate shared by the
// collector and emitter loops (spec.md §4.1).
package subnet

import (
	"net"

	"github.com/NSLS-II/epics-relay/internal/iface"
)

// IsNative reports whether ip belongs to the same subnet as desc, i.e.
// ip & desc.Netmask == desc.Address & desc.Netmask.
func IsNative(ip net.IP, desc *iface.Descriptor) bool {
	ip4 := ip.To4()
	if ip4 == nil || desc == nil || desc.Address == nil {
		return false
	}

	mask := desc.Netmask
	addr := desc.Address.To4()
	for i := 0; i < 4; i++ {
		if ip4[i]&mask[i] != addr[i]&mask[i] {
			return false
		}
	}
	return true
}
