// Package emitter implements the emitter loop of spec.md §4.5: it
// receives framed datagrams from the collector, validates them against
// loop/source policy, and re-synthesizes a forged broadcast UDP
// datagram on the local EPICS subnet.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/NSLS-II/epics-relay/internal/frame"
	"github.com/NSLS-II/epics-relay/internal/iface"
	"github.com/NSLS-II/epics-relay/internal/rawsend"
	"github.com/NSLS-II/epics-relay/internal/subnet"
	"github.com/NSLS-II/epics-relay/internal/udpsock"
)

// FramePort is the well-known UDP port the emitter listens on for
// framed datagrams from the collector (spec.md §3, §6).
const FramePort = 4000

const scratchBufferSize = 2048

// Config configures an Emitter.
type Config struct {
	Logger *slog.Logger

	// LocalIface is the interface the frame-receiving socket binds to.
	LocalIface *iface.Descriptor
	// EpicsIface supplies the broadcast destination and (in link-layer
	// mode) the hardware address used to forge the outgoing frame, and
	// the subnet used for loop prevention.
	EpicsIface *iface.Descriptor

	Sender rawsend.Sender
}

// Emitter runs the emitter loop.
type Emitter struct {
	cfg  Config
	log  *slog.Logger
	conn *net.UDPConn
}

// New validates cfg. The caller is responsible for constructing Sender
// (via rawsend.New) since its failure modes are SetupError-class fatal
// conditions distinct from the emitter loop itself.
func New(cfg Config) (*Emitter, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("emitter: logger is required")
	}
	if cfg.LocalIface == nil || cfg.EpicsIface == nil {
		return nil, fmt.Errorf("emitter: both interfaces are required")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("emitter: sender is required")
	}
	return &Emitter{cfg: cfg, log: cfg.Logger}, nil
}

// Run binds the frame-receiving socket and relays until ctx is
// cancelled.
func (e *Emitter) Run(ctx context.Context) error {
	conn, err := udpsock.Listen(ctx, e.cfg.LocalIface.Address, FramePort, udpsock.Options{ReuseAddr: true})
	if err != nil {
		return fmt.Errorf("emitter: setup: %w", err)
	}
	e.conn = conn

	e.log.Info("emitter started",
		"local_interface", e.cfg.LocalIface.Name,
		"epics_interface", e.cfg.EpicsIface.Name,
		"frame_port", FramePort,
	)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, scratchBufferSize)
	for {
		select {
		case <-ctx.Done():
			e.cfg.Sender.Close()
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			e.log.Error("failed to set read deadline", "error", err)
			continue
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				e.cfg.Sender.Close()
				return ctx.Err()
			}
			e.log.Error("recvfrom failed", "error", err)
			continue
		}

		e.handle(buf[:n])
	}
}

// handle validates and re-broadcasts one received frame (spec.md §4.5
// steps 1-4).
func (e *Emitter) handle(raw []byte) {
	if len(raw) <= frame.HeaderSize {
		e.log.Debug("dropping short datagram", "len", len(raw))
		return
	}

	h, payload, err := frame.Decode(raw)
	if err != nil {
		e.log.Debug("dropping invalid frame", "error", err)
		return
	}

	srcIP := net.IP(h.SrcIP[:])
	if subnet.IsNative(srcIP, e.cfg.EpicsIface) {
		e.log.Debug("dropping frame with already-native source (loop prevention)", "src", srcIP)
		return
	}

	if err := e.cfg.Sender.Send(srcIP, e.cfg.EpicsIface.Broadcast, h.SrcPort, h.DstPort, payload); err != nil {
		e.log.Error("failed to emit broadcast packet", "error", err)
		return
	}
}
