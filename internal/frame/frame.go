// Package frame implements the private 28-byte header used on the wire
// between the collector and emitter processes (spec.md §3, §4.3, §6).
package frame

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a valid frame header.
const Magic uint32 = 0x42375AC1

// Version is the only frame header version this implementation emits
// or accepts.
const Version uint8 = 0x01

// HeaderSize is the fixed, packed size of a Header on the wire.
const HeaderSize = 28

// Header is the private frame header carried in front of every relayed
// CA payload. All multi-byte fields are big-endian ("network byte
// order") on the wire; SrcIP/DstIP/SrcPort/DstPort are carried exactly
// as captured from the original broadcast (already network order at
// the point they were read off the wire).
type Header struct {
	Version    uint8
	Type       uint8
	PayloadLen uint16
	SrcIP      [4]byte
	DstIP      [4]byte
	SrcPort    uint16
	DstPort    uint16
}

// Encode serializes header and payload into dst, which must be at least
// HeaderSize+len(payload) bytes. Returns the total number of bytes
// written.
func Encode(dst []byte, h Header, payload []byte) (int, error) {
	if len(dst) < HeaderSize+len(payload) {
		return 0, fmt.Errorf("frame: destination buffer too small: have %d, need %d", len(dst), HeaderSize+len(payload))
	}
	if int(h.PayloadLen) != len(payload) {
		return 0, fmt.Errorf("frame: payload_len %d does not match payload length %d", h.PayloadLen, len(payload))
	}

	binary.BigEndian.PutUint32(dst[0:4], Magic)
	dst[4] = Version
	dst[5] = h.Type
	binary.BigEndian.PutUint16(dst[6:8], h.PayloadLen)
	copy(dst[8:12], h.SrcIP[:])
	copy(dst[12:16], h.DstIP[:])
	binary.BigEndian.PutUint16(dst[16:18], h.SrcPort)
	binary.BigEndian.PutUint16(dst[18:20], h.DstPort)
	// bytes [20:24) and [24:28) are the reserved _pad2/_pad3 fields and
	// stay zero.
	for i := 20; i < HeaderSize; i++ {
		dst[i] = 0
	}

	n := copy(dst[HeaderSize:], payload)
	return HeaderSize + n, nil
}

// Decode parses a Header and its trailing CA payload out of src.
// Returns ErrTooShort, ErrBadMagic, or ErrTruncatedPayload on
// malformed input (spec.md §4.3, §8 property 2).
func Decode(src []byte) (Header, []byte, error) {
	var h Header
	if len(src) < HeaderSize {
		return h, nil, ErrTooShort
	}

	magic := binary.BigEndian.Uint32(src[0:4])
	if magic != Magic {
		return h, nil, ErrBadMagic
	}

	h.Version = src[4]
	h.Type = src[5]
	h.PayloadLen = binary.BigEndian.Uint16(src[6:8])
	copy(h.SrcIP[:], src[8:12])
	copy(h.DstIP[:], src[12:16])
	h.SrcPort = binary.BigEndian.Uint16(src[16:18])
	h.DstPort = binary.BigEndian.Uint16(src[18:20])

	if HeaderSize+int(h.PayloadLen) > len(src) {
		return h, nil, ErrTruncatedPayload
	}

	payload := src[HeaderSize : HeaderSize+int(h.PayloadLen)]
	return h, payload, nil
}
