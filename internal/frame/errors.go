package frame

import "errors"

var (
	// ErrTooShort is returned when a received datagram is shorter than
	// HeaderSize.
	ErrTooShort = errors.New("frame: datagram shorter than header")
	// ErrBadMagic is returned when the first four bytes don't match Magic.
	ErrBadMagic = errors.New("frame: bad magic")
	// ErrTruncatedPayload is returned when payload_len claims more bytes
	// than the datagram actually carries.
	ErrTruncatedPayload = errors.New("frame: payload_len exceeds datagram length")
)
