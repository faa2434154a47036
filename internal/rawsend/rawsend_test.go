package rawsend

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIPv4UDP_RawIPMode(t *testing.T) {
	t.Parallel()

	payload := []byte("CA SEARCH payload")
	out, err := buildIPv4UDP(nil, net.ParseIP("10.0.0.7"), net.ParseIP("10.0.0.255"), 5064, 5065, 1, payload)
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeIPv4, gopacket.Default)
	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, ipLayer)
	ip := ipLayer.(*layers.IPv4)

	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, layers.IPProtocolUDP, ip.Protocol)
	assert.Equal(t, net.ParseIP("10.0.0.7").To4(), ip.SrcIP)
	assert.Equal(t, net.ParseIP("10.0.0.255").To4(), ip.DstIP)
	assert.True(t, ip.Checksum != 0)

	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	require.NotNil(t, udpLayer)
	udp := udpLayer.(*layers.UDP)
	assert.Equal(t, layers.UDPPort(5064), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(5065), udp.DstPort)

	appLayer := pkt.ApplicationLayer()
	require.NotNil(t, appLayer)
	assert.Equal(t, payload, appLayer.Payload())
}

func TestBuildIPv4UDP_LinkLayerMode(t *testing.T) {
	t.Parallel()

	srcMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	out, err := buildIPv4UDP(eth, net.ParseIP("10.0.0.7"), net.ParseIP("10.0.0.255"), 5064, 5065, 2, []byte("x"))
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeEthernet, gopacket.Default)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	require.NotNil(t, ethLayer)
	gotEth := ethLayer.(*layers.Ethernet)
	assert.Equal(t, broadcastMAC, gotEth.DstMAC)
	assert.Equal(t, srcMAC, gotEth.SrcMAC)

	require.NotNil(t, pkt.Layer(layers.LayerTypeIPv4))
}

func TestBuildIPv4UDP_EmptyPayloadStillSerializes(t *testing.T) {
	t.Parallel()

	out, err := buildIPv4UDP(nil, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.255"), 1, 2, 3, nil)
	require.NoError(t, err)
	assert.True(t, len(out) >= ipv4HeaderLen+8) // IPv4 header + UDP header, no payload
}
