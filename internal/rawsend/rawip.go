package rawsend

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// RawIPSender emits a raw IPv4 datagram (source IP forged, destination
// the subnet broadcast) without constructing an Ethernet header,
// letting the kernel fill in the link layer on egress. This is the
// fallback path described in spec.md §4.5: "If link-layer mode is not
// available, the emitter falls back to raw-IPv4 mode... broadcast
// delivery still works because the destination IP is the subnet
// broadcast." Grounded on
// client/doublezerod/internal/pim/cmd/send/send.go's
// net.ListenPacket("ip4:...") + ipv4.NewRawConn + RawConn.WriteTo
// pattern.
type RawIPSender struct {
	conn    *ipv4.RawConn
	ifIndex int
	nextID  uint16
}

// NewRawIPSender opens a raw IPv4 socket (protocol UDP, IP_HDRINCL via
// ipv4.NewRawConn) bound for sending on ifaceName.
func NewRawIPSender(ifaceName string) (*RawIPSender, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("rawsend: interface %s: %w", ifaceName, err)
	}

	pc, err := net.ListenPacket("ip4:udp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("rawsend: open raw IPv4 socket: %w", err)
	}

	raw, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("rawsend: wrap raw conn: %w", err)
	}

	return &RawIPSender{conn: raw, ifIndex: ifi.Index}, nil
}

// Send builds the UDP segment (checksummed against a pseudo IPv4
// header) and writes it behind a hand-built IPv4 header with the
// forged source address.
func (s *RawIPSender) Send(srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) error {
	udpSegment, err := buildIPv4UDP(nil, srcIP, dstIP, srcPort, dstPort, 0, payload)
	if err != nil {
		return err
	}
	// buildIPv4UDP always prepends the IPv4 header it serialized for
	// checksum purposes; strip it back off since ipv4.RawConn.WriteTo
	// supplies its own IPv4 header separately.
	udpSegment = udpSegment[ipv4HeaderLen:]

	s.nextID++
	iph := &ipv4.Header{
		Version:  4,
		Len:      ipv4HeaderLen,
		TOS:      0,
		TotalLen: ipv4HeaderLen + len(udpSegment),
		ID:       int(s.nextID),
		Flags:    ipv4.DontFragment,
		TTL:      64,
		Protocol: 17, // UDP
		Dst:      dstIP.To4(),
		Src:      srcIP.To4(),
	}
	cm := &ipv4.ControlMessage{IfIndex: s.ifIndex}

	if err := s.conn.WriteTo(iph, udpSegment, cm); err != nil {
		return fmt.Errorf("rawsend: write raw IPv4 datagram: %w", err)
	}
	return nil
}

// Close releases the underlying raw socket.
func (s *RawIPSender) Close() error {
	return s.conn.Close()
}

const ipv4HeaderLen = 20
