package iface

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_UnknownInterface(t *testing.T) {
	t.Parallel()

	_, err := Resolve("definitely-not-a-real-nic-0")
	assert.Error(t, err)
}

func TestBroadcastComputation(t *testing.T) {
	t.Parallel()

	// Exercises the same masking arithmetic Resolve uses, without
	// requiring a specific NIC to exist in the test environment.
	ip := net.IPv4(10, 0, 0, 7).To4()
	mask := net.CIDRMask(24, 32)

	bcast := make(net.IP, 4)
	for i := range bcast {
		bcast[i] = ip[i] | ^mask[i]
	}

	assert.Equal(t, net.IPv4(10, 0, 0, 255).To4(), bcast)
}
