// Package collector implements the collector loop of spec.md §4.4: it
// listens on the three EPICS broadcast ports, filters and frames CA
// traffic, and fans the framed datagrams out to every configured
// emitter.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/NSLS-II/epics-relay/internal/caproto"
	"github.com/NSLS-II/epics-relay/internal/frame"
	"github.com/NSLS-II/epics-relay/internal/iface"
	"github.com/NSLS-II/epics-relay/internal/subnet"
	"github.com/NSLS-II/epics-relay/internal/udpsock"
)

// DefaultListenPorts are the EPICS broadcast ports the collector reads
// from: name-server search, beacons, and the repeater (spec.md §4.4).
var DefaultListenPorts = []int{5064, 5065, 5076}

// scratchBufferSize is the maximum datagram the collector will read
// (spec.md §5). The framing buffer in handle is frame.HeaderSize bytes
// larger, so the 28-byte frame header is prefixed ahead of the parsed
// CA payload without reducing this limit.
const scratchBufferSize = 2048

// Config configures a Collector.
type Config struct {
	Logger *slog.Logger

	// LocalIface is bound for outbound sockets to each emitter.
	LocalIface *iface.Descriptor
	// EpicsIface supplies the broadcast address collector listen
	// sockets bind to, and the subnet used to reject non-native
	// traffic.
	EpicsIface *iface.Descriptor

	Filter *caproto.Filter

	// Emitters are the configured peer hostnames, each resolved once
	// at startup and given its own outbound UDP socket.
	Emitters []string
	// EmitterPort is the well-known frame port on every emitter
	// (spec.md §3, §6): 4000.
	EmitterPort int

	ListenPorts []int

	// SendTimeout bounds each per-emitter sendto call so one slow peer
	// doesn't stall fan-out to the others (spec.md §9's suggested
	// SO_SNDTIMEO, decided in SPEC_FULL.md §13).
	SendTimeout time.Duration
}

type emitterPeer struct {
	name string
	addr *net.UDPAddr
	conn *net.UDPConn
}

// Collector runs the collector loop.
type Collector struct {
	cfg     Config
	log     *slog.Logger
	peers   []*emitterPeer
	sockets []*net.UDPConn
}

// New resolves every emitter hostname and opens outbound sockets.
// Hostname resolution failure is a ConfigError-class fatal startup
// error per spec.md §7.
func New(cfg Config) (*Collector, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("collector: logger is required")
	}
	if cfg.EpicsIface == nil || cfg.LocalIface == nil {
		return nil, fmt.Errorf("collector: both interfaces are required")
	}
	if cfg.Filter == nil {
		return nil, fmt.Errorf("collector: filter is required")
	}
	if len(cfg.ListenPorts) == 0 {
		cfg.ListenPorts = DefaultListenPorts
	}
	if cfg.EmitterPort == 0 {
		cfg.EmitterPort = 4000
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 500 * time.Millisecond
	}
	if len(cfg.ListenPorts) > 50 {
		return nil, fmt.Errorf("collector: too many listen ports (max 50)")
	}

	c := &Collector{cfg: cfg, log: cfg.Logger}

	for _, name := range cfg.Emitters {
		resolved, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", name, cfg.EmitterPort))
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("collector: resolving emitter %s: %w", name, err)
		}

		conn, err := udpsock.DialOutbound(context.Background(), cfg.LocalIface.Address, resolved)
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("collector: dialing emitter %s: %w", name, err)
		}

		c.peers = append(c.peers, &emitterPeer{name: name, addr: resolved, conn: conn})
	}

	return c, nil
}

func (c *Collector) closeAll() {
	for _, p := range c.peers {
		if p.conn != nil {
			p.conn.Close()
		}
	}
	for _, s := range c.sockets {
		s.Close()
	}
}

// rawDatagram is one datagram read off a listen socket, tagged with the
// port it arrived on.
type rawDatagram struct {
	listenPort int
	srcIP      net.IP
	srcPort    int
	payload    []byte
}

// Run binds every listen socket and relays datagrams until ctx is
// cancelled. Listen-socket bind failures are fatal (SetupError);
// everything after that point is logged and skipped so the loop never
// terminates on a per-datagram error (spec.md §7).
func (c *Collector) Run(ctx context.Context) error {
	datagrams := make(chan rawDatagram, 64)

	var wg sync.WaitGroup
	for _, port := range c.cfg.ListenPorts {
		conn, err := udpsock.Listen(ctx, c.cfg.EpicsIface.Broadcast, port, udpsock.Options{ReuseAddr: true, Broadcast: true})
		if err != nil {
			c.closeAll()
			return fmt.Errorf("collector: setup: %w", err)
		}
		c.sockets = append(c.sockets, conn)

		wg.Add(1)
		go func(port int, conn *net.UDPConn) {
			defer wg.Done()
			c.readLoop(ctx, port, conn, datagrams)
		}(port, conn)
	}

	c.log.Info("collector started",
		"epics_interface", c.cfg.EpicsIface.Name,
		"listen_ports", c.cfg.ListenPorts,
		"emitters", len(c.peers),
	)

	go func() {
		<-ctx.Done()
		for _, s := range c.sockets {
			s.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			c.closeAll()
			return ctx.Err()
		case dg := <-datagrams:
			c.handle(dg)
		}
	}
}

// readLoop is the per-listen-socket reader goroutine; it replaces the
// single-threaded select(2) multiplex of spec.md §4.4/§5 with Go's
// idiomatic one-goroutine-per-socket-plus-channel pattern (see
// SPEC_FULL.md §5), grounded on
// mcastrelay/internal/multicast.Listener.Run's read-deadline-and-
// context-check loop.
func (c *Collector) readLoop(ctx context.Context, port int, conn *net.UDPConn, out chan<- rawDatagram) {
	buf := make([]byte, scratchBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			c.log.Error("failed to set read deadline", "port", port, "error", err)
			continue
		}

		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Error("recvfrom failed", "port", port, "error", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		select {
		case out <- rawDatagram{listenPort: port, srcIP: srcAddr.IP, srcPort: srcAddr.Port, payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

// handle applies the native-subnet check, parses/filters, frames, and
// fans the result out to every emitter (spec.md §4.4 steps 3-8).
func (c *Collector) handle(dg rawDatagram) {
	if !subnet.IsNative(dg.srcIP, c.cfg.EpicsIface) {
		c.log.Debug("dropping non-native datagram", "src", dg.srcIP, "port", dg.listenPort)
		return
	}

	scratch := make([]byte, frame.HeaderSize+scratchBufferSize)
	n := caproto.Parse(scratch[frame.HeaderSize:], dg.payload, c.cfg.Filter, c.log)
	if n == 0 {
		return
	}

	var srcIP4, dstIP4 [4]byte
	copy(srcIP4[:], dg.srcIP.To4())
	copy(dstIP4[:], c.cfg.EpicsIface.Broadcast.To4())

	hdr := frame.Header{
		Version:    frame.Version,
		PayloadLen: uint16(n),
		SrcIP:      srcIP4,
		DstIP:      dstIP4,
		SrcPort:    uint16(dg.srcPort),
		DstPort:    uint16(dg.listenPort),
	}

	total, err := frame.Encode(scratch, hdr, scratch[frame.HeaderSize:frame.HeaderSize+n])
	if err != nil {
		c.log.Error("failed to encode frame", "error", err)
		return
	}

	for _, p := range c.peers {
		if err := p.conn.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout)); err != nil {
			c.log.Error("failed to set write deadline", "emitter", p.name, "error", err)
			continue
		}
		if _, err := p.conn.Write(scratch[:total]); err != nil {
			c.log.Error("sendto emitter failed", "emitter", p.name, "error", err)
			continue
		}
	}
}
