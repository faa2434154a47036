// Package rawsend builds and transmits the emitter's forged broadcast
// packet: an IPv4/UDP datagram carrying the original sender's source
// IP (spec.md §4.5). Two modes are supported, mirroring the link-layer
// vs raw-IP split in spec.md §4.5 and §9: a link-layer Sender that
// also forges the Ethernet header (destination broadcast MAC, EPICS
// interface's own hardware address as source), and a raw-IP Sender
// that lets the kernel fill in the link layer. Both are built the way
// client/doublezerod/internal/pim/{pim,server}.go construct and
// checksum packets with gopacket, adapted from a single IPv4-protocol
// payload (PIM) to IPv4/UDP.
package rawsend

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Sender transmits a forged broadcast UDP datagram onto the configured
// EPICS-side interface. srcIP is the spoofed original sender; dstIP is
// the subnet broadcast address.
type Sender interface {
	Send(srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) error
	Close() error
}

// New opens a Sender for ifaceName. When wantLinkLayer is true it tries
// the libpcap link-layer injector first and falls back to the raw-IPv4
// sender (logging, not failing, per spec.md §4.5) if that doesn't work
// — e.g. missing CAP_NET_RAW for pcap, or no libpcap on the host.
func New(log *slog.Logger, ifaceName string, srcMAC net.HardwareAddr, wantLinkLayer bool) (Sender, error) {
	if wantLinkLayer {
		s, err := NewLinkLayerSender(ifaceName, srcMAC)
		if err == nil {
			return s, nil
		}
		log.Warn("link-layer sender unavailable, falling back to raw IPv4", "interface", ifaceName, "error", err)
	}

	return NewRawIPSender(ifaceName)
}

// buildIPv4UDP serializes the IPv4+UDP layers (and, if eth is non-nil,
// a prepended Ethernet layer) with computed checksums and lengths.
// packetID is a caller-supplied 16-bit IPv4 identification value.
func buildIPv4UDP(eth *layers.Ethernet, srcIP, dstIP net.IP, srcPort, dstPort uint16, packetID uint16, payload []byte) ([]byte, error) {
	ip := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TOS:        0,
		Id:         packetID,
		Flags:      layers.IPv4DontFragment,
		TTL:        64,
		Protocol:   layers.IPProtocolUDP,
		SrcIP:      srcIP.To4(),
		DstIP:      dstIP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, fmt.Errorf("rawsend: set checksum network layer: %w", err)
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	buf := gopacket.NewSerializeBuffer()

	layersToSerialize := []gopacket.SerializableLayer{}
	if eth != nil {
		layersToSerialize = append(layersToSerialize, eth)
	}
	layersToSerialize = append(layersToSerialize, ip, udp, gopacket.Payload(payload))

	if err := gopacket.SerializeLayers(buf, opts, layersToSerialize...); err != nil {
		return nil, fmt.Errorf("rawsend: serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}
