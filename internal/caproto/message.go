// Package caproto decodes the EPICS Channel Access UDP broadcast wire
// format (name search, beacon, and version messages) and applies a
// regex-based PV name filter to search requests.
package caproto

import "encoding/binary"

// Command header layout: command(2) payload_size(2) data(2) count(2)
// param1(4) param2(4), all big-endian.
const (
	HeaderSize = 16

	// MaxPVNameLen bounds the PV name buffer (including the terminating
	// NUL); a SEARCH payload at or above this size is skipped rather
	// than filtered.
	MaxPVNameLen = 128
)

// Command IDs recognized by the parser. Everything else halts parsing
// for the current datagram.
const (
	CmdVersion = 0
	CmdSearch  = 6
	CmdBeacon  = 13 // CA_PROTO_RSRV_IS_UP
)

// Header is the 16-byte common header shared by every CA message.
type Header struct {
	Command     uint16
	PayloadSize uint16
	Data        uint16
	Count       uint16
	Param1      uint32
	Param2      uint32
}

// decodeHeader reads a Header from the front of buf. Caller must ensure
// len(buf) >= HeaderSize.
func decodeHeader(buf []byte) Header {
	return Header{
		Command:     binary.BigEndian.Uint16(buf[0:2]),
		PayloadSize: binary.BigEndian.Uint16(buf[2:4]),
		Data:        binary.BigEndian.Uint16(buf[4:6]),
		Count:       binary.BigEndian.Uint16(buf[6:8]),
		Param1:      binary.BigEndian.Uint32(buf[8:12]),
		Param2:      binary.BigEndian.Uint32(buf[12:16]),
	}
}

// versionCommand reports whether a header byte sequence is a VERSION
// message. The original C collector compares the raw command field
// without a byte-swap for this one case; CA VERSION headers happen to
// begin with a zero high byte, so the native-endian compare against 0
// is indistinguishable from the byte-swapped compare on both little-
// and big-endian hosts. We always byte-swap (via decodeHeader) and
// compare against the canonical id instead of reproducing the quirk.
func versionCommand(h Header) bool { return h.Command == CmdVersion }
