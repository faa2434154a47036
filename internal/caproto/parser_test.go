package caproto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeHeader(command, payloadSize, data, count uint16, param1, param2 uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], command)
	binary.BigEndian.PutUint16(buf[2:4], payloadSize)
	binary.BigEndian.PutUint16(buf[4:6], data)
	binary.BigEndian.PutUint16(buf[6:8], count)
	binary.BigEndian.PutUint32(buf[8:12], param1)
	binary.BigEndian.PutUint32(buf[12:16], param2)
	return buf
}

func searchMessage(pv string) []byte {
	padded := padTo8(pv)
	msg := encodeHeader(CmdSearch, uint16(len(padded)), 0, 1, 1, 2)
	return append(msg, padded...)
}

func padTo8(pv string) []byte {
	raw := append([]byte(pv), 0)
	for len(raw)%8 != 0 {
		raw = append(raw, 0)
	}
	return raw
}

func beaconMessage() []byte {
	return encodeHeader(CmdBeacon, 0, 0, 1, 42, 0x0A000007)
}

func versionMessage() []byte {
	return encodeHeader(CmdVersion, 0, 3, 13, 0, 0)
}

func TestParse_BeaconPassthrough(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, nil)
	require.NoError(t, err)

	src := beaconMessage()
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dst[:n])
}

func TestParse_AllowedSearch(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, []string{"^OK:"})
	require.NoError(t, err)

	src := searchMessage("OK:MOTOR1")
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dst[:n])
}

func TestParse_RejectedSearch(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, []string{"^OK:"})
	require.NoError(t, err)

	src := searchMessage("BAD:MOTOR")
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, 0, n)
}

func TestParse_MixedVersionSearchAllRejected(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, []string{"^OK:"})
	require.NoError(t, err)

	src := append(versionMessage(), searchMessage("BAD:MOTOR")...)
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, 0, n, "VERSION-only remnant must not survive when the SEARCH it preceded was fully filtered")
}

func TestParse_MixedVersionSearchAccepted(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, []string{"^OK:"})
	require.NoError(t, err)

	version := versionMessage()
	search := searchMessage("OK:MOTOR1")
	src := append(append([]byte{}, version...), search...)
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dst[:n])
}

func TestParse_LengthCapSkipsOversizedSearch(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, nil)
	require.NoError(t, err)

	longPV := make([]byte, MaxPVNameLen) // >= MaxPVNameLen triggers the cap
	oversized := encodeHeader(CmdSearch, uint16(len(longPV)), 0, 1, 1, 2)
	oversized = append(oversized, longPV...)

	trailingBeacon := beaconMessage()
	src := append(oversized, trailingBeacon...)

	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	// The oversized SEARCH is skipped (bytes consumed, nothing written),
	// but parsing continues and the trailing beacon is still copied into
	// dst. The datagram as a whole is then dropped: it carried a SEARCH
	// and none was accepted.
	assert.Equal(t, trailingBeacon, dst[:len(trailingBeacon)])
	assert.Equal(t, 0, n)
}

func TestParse_EmptyFilterAcceptsAll(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(false, false, nil)
	require.NoError(t, err)

	src := searchMessage("ANYTHING:AT:ALL")
	dst := make([]byte, len(src))
	n := Parse(dst, src, f, nil)

	assert.Equal(t, src, dst[:n])
}

func TestFilter_Algebra(t *testing.T) {
	t.Parallel()

	rules := []string{"^A:", "^B:"}

	cases := []struct {
		name   string
		sense  bool
		logic  bool
		pv     string
		accept bool
	}{
		{"or-first-matches", false, false, "A:1", true},
		{"or-second-matches", false, false, "B:1", true},
		{"or-none-match", false, false, "C:1", false},
		{"and-requires-every-rule-to-match", false, true, "A:1", false}, // rule 2 doesn't match
		{"and-neither-applicable", false, true, "C:1", false},
		{"sense-inverted-or-non-match-accepts", true, false, "C:1", true},
		{"sense-inverted-and-blacklist-rejects-match", true, true, "A:1", false},
		{"sense-inverted-and-blacklist-accepts-non-match", true, true, "C:1", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewFilter(tc.sense, tc.logic, rules)
			require.NoError(t, err)
			assert.Equal(t, tc.accept, f.Accept(tc.pv))
		})
	}
}

func TestNewFilter_BadPatternIsFatal(t *testing.T) {
	t.Parallel()

	_, err := NewFilter(false, false, []string{"("})
	require.Error(t, err)
}
