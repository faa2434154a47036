package collector

import (
	"net"
	"testing"

	"github.com/NSLS-II/epics-relay/internal/caproto"
	"github.com/NSLS-II/epics-relay/internal/frame"
	"github.com/NSLS-II/epics-relay/internal/iface"
	"github.com/NSLS-II/epics-relay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func epicsDesc() *iface.Descriptor {
	return &iface.Descriptor{
		Name:      "eth0",
		Address:   net.ParseIP("10.0.0.1").To4(),
		Netmask:   net.CIDRMask(24, 32),
		Broadcast: net.ParseIP("10.0.0.255").To4(),
	}
}

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	f, err := caproto.NewFilter(false, false, nil)
	require.NoError(t, err)

	return &Collector{
		cfg: Config{
			Logger:      logging.New(false),
			EpicsIface:  epicsDesc(),
			LocalIface:  epicsDesc(),
			Filter:      f,
			EmitterPort: 4000,
		},
		log: logging.New(false),
	}
}

func TestHandle_DropsNonNativeSource(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	// A source outside 10.0.0.0/24 must be dropped before any peer
	// send is attempted; with zero configured peers this just needs to
	// not panic.
	c.handle(rawDatagram{
		listenPort: 5065,
		srcIP:      net.ParseIP("192.168.1.1"),
		srcPort:    5065,
		payload:    []byte{0, 13, 0, 0, 0, 0, 0, 1, 0, 0, 0, 42, 10, 0, 0, 7},
	})
}

func TestHandle_FramesNativeBeacon(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)

	// A loopback UDP pair stands in for one emitter peer so handle's
	// fan-out path is exercised end to end.
	peerConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer peerConn.Close()

	sendConn, err := net.DialUDP("udp4", nil, peerConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sendConn.Close()

	c.peers = []*emitterPeer{{name: "peer0", addr: peerConn.LocalAddr().(*net.UDPAddr), conn: sendConn}}
	c.cfg.SendTimeout = 0
	c.cfg.SendTimeout = 1e9 // 1s, avoid zero-deadline meaning "no deadline" ambiguity in some runtimes

	beacon := []byte{0, 13, 0, 0, 0, 0, 0, 1, 0, 0, 0, 42, 10, 0, 0, 7}
	c.handle(rawDatagram{
		listenPort: 5065,
		srcIP:      net.ParseIP("10.0.0.7"),
		srcPort:    5065,
		payload:    beacon,
	})

	buf := make([]byte, 2048)
	n, _, err := peerConn.ReadFromUDP(buf)
	require.NoError(t, err)

	h, payload, err := frame.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, beacon, payload)
	assert.Equal(t, uint16(5065), h.SrcPort)
	assert.Equal(t, uint16(5065), h.DstPort)
}
