// Package udpsock binds broadcast-capable UDP sockets. It stands in
// for the "socket primitive" external collaborator of spec.md §2
// ("binds a UDP socket to (address, port) with optional REUSEADDR and
// BROADCAST"), following the net.ListenConfig.Control +
// golang.org/x/sys/unix.SetsockoptInt pattern used elsewhere in the
// pack for socket-option plumbing the standard net package doesn't
// expose directly.
package udpsock

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Options selects which socket options to apply before bind(2).
type Options struct {
	ReuseAddr bool
	Broadcast bool
}

// Listen binds a UDP socket to addr:port with the requested options
// applied via SO_REUSEADDR/SO_BROADCAST before bind. This is a
// SetupError-class failure per spec.md §7 if it returns an error.
func Listen(ctx context.Context, addr net.IP, port int, opts Options) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				if opts.ReuseAddr {
					if setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); setErr != nil {
						return
					}
				}
				if opts.Broadcast {
					setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
				}
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}

	hostPort := net.JoinHostPort(addr.String(), fmt.Sprintf("%d", port))
	pc, err := lc.ListenPacket(ctx, "udp4", hostPort)
	if err != nil {
		return nil, fmt.Errorf("udpsock: listen %s: %w", hostPort, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("udpsock: unexpected packet conn type %T", pc)
	}
	return conn, nil
}

// DialOutbound opens an outbound UDP socket bound to the local
// interface address, source port chosen by the OS, used by the
// collector to send framed datagrams to one emitter peer.
func DialOutbound(ctx context.Context, localAddr net.IP, remote *net.UDPAddr) (*net.UDPConn, error) {
	dialer := net.Dialer{
		LocalAddr: &net.UDPAddr{IP: localAddr},
	}
	conn, err := dialer.DialContext(ctx, "udp4", remote.String())
	if err != nil {
		return nil, fmt.Errorf("udpsock: dial %s: %w", remote, err)
	}
	return conn.(*net.UDPConn), nil
}
