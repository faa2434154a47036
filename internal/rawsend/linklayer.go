package rawsend

import (
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// broadcastMAC is the Ethernet broadcast destination address used for
// every emitted frame (spec.md §4.5).
var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// LinkLayerSender injects a full Ethernet frame (forged source IP,
// broadcast destination MAC) onto ifaceName via libpcap. This is the
// "link-layer mode" described in spec.md §4.5 and §9's note that
// implementations "may use OS raw sockets, BPF, or a libpcap-style
// injector."
type LinkLayerSender struct {
	handle *pcap.Handle
	srcMAC net.HardwareAddr
	nextID uint16
}

// NewLinkLayerSender opens a live capture handle on ifaceName purely
// for packet injection (snaplen/promisc are irrelevant to writes, but
// required by the pcap API). srcMAC is the EPICS-side interface's own
// hardware address, used as the forged frame's Ethernet source.
func NewLinkLayerSender(ifaceName string, srcMAC net.HardwareAddr) (*LinkLayerSender, error) {
	handle, err := pcap.OpenLive(ifaceName, 2048, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("rawsend: open pcap handle on %s: %w", ifaceName, err)
	}
	return &LinkLayerSender{handle: handle, srcMAC: srcMAC}, nil
}

// Send builds and writes one forged Ethernet/IPv4/UDP frame. No 802.1Q
// tag is added here: if ifaceName is itself a VLAN sub-interface, the
// kernel's vlan driver tags the frame on egress.
func (s *LinkLayerSender) Send(srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       s.srcMAC,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	s.nextID++
	raw, err := buildIPv4UDP(eth, srcIP, dstIP, srcPort, dstPort, s.nextID, payload)
	if err != nil {
		return err
	}

	if err := s.handle.WritePacketData(raw); err != nil {
		return fmt.Errorf("rawsend: write packet: %w", err)
	}
	return nil
}

// Close releases the underlying pcap handle.
func (s *LinkLayerSender) Close() error {
	s.handle.Close()
	return nil
}
