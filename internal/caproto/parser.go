package caproto

import "log/slog"

// Parse scans one or more concatenated CA messages in src, copies the
// messages the filter lets through into dst, and returns the number of
// bytes written. dst must be at least len(src) bytes; the parser never
// writes more than it read. See spec.md §4.2.
//
// log may be nil; if provided, it receives debug-level notices for
// dropped messages (RuntimeDropped, per spec.md §7).
func Parse(dst, src []byte, filter *Filter, log *slog.Logger) int {
	pos := 0
	dstPos := 0
	sawSearch := false
	acceptedSearch := 0

	for pos+HeaderSize <= len(src) {
		h := decodeHeader(src[pos:])

		switch {
		case versionCommand(h):
			dstPos += copy(dst[dstPos:], src[pos:pos+HeaderSize])
			pos += HeaderSize

		case h.Command == CmdSearch:
			sawSearch = true
			msgLen := HeaderSize + int(h.PayloadSize)
			if pos+msgLen > len(src) {
				// Truncated message; nothing more can be parsed.
				logDrop(log, "truncated SEARCH message", "pos", pos, "payload_size", h.PayloadSize)
				return dstPos
			}

			if h.PayloadSize >= MaxPVNameLen {
				logDrop(log, "SEARCH PV name exceeds buffer", "payload_size", h.PayloadSize)
				pos += msgLen
				continue
			}

			pv := extractPVName(src[pos+HeaderSize : pos+msgLen])
			if filter.Accept(pv) {
				dstPos += copy(dst[dstPos:], src[pos:pos+msgLen])
				acceptedSearch++
			} else {
				logDrop(log, "SEARCH rejected by filter", "pv", pv)
			}
			pos += msgLen

		case h.Command == CmdBeacon:
			if pos+HeaderSize > len(src) {
				return dstPos
			}
			dstPos += copy(dst[dstPos:], src[pos:pos+HeaderSize])
			pos += HeaderSize

		default:
			// Unknown command: stop parsing, keep what's produced so far.
			logDrop(log, "unknown CA command, stopping parse", "command", h.Command)
			pos = len(src)
		}
	}

	if sawSearch && acceptedSearch == 0 {
		// All SEARCH PVs were filtered out: the whole datagram must be
		// dropped, even if it also carried a VERSION prefix, so the
		// remote side doesn't re-trigger searches for filtered PVs.
		logDrop(log, "all SEARCH messages filtered, dropping datagram")
		return 0
	}

	return dstPos
}

// extractPVName returns the PV name from a SEARCH payload: the bytes up
// to (not including) the first NUL, or the whole payload if unterminated.
func extractPVName(payload []byte) string {
	for i, b := range payload {
		if b == 0 {
			return string(payload[:i])
		}
	}
	return string(payload)
}

func logDrop(log *slog.Logger, msg string, args ...any) {
	if log != nil {
		log.Debug(msg, args...)
	}
}
