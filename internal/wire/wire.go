// Package wire implements the on-disk FileRecord binary format used by
// the file cache (spec.md §3):
//
//	[0..8)   i64  expires_ticks  (100-ns ticks since a fixed epoch, UTC)
//	[8..12)  i32  payload_len    (must equal len(payload))
//	[12..]   u8[] payload
//
// All integers are little-endian. Per spec.md §9's first open question,
// no magic/version/kind byte is added beyond this literal layout — the
// FormattedKey's embedded serializer tag is the only version guard.
package wire

import (
	"encoding/binary"
	"errors"
	"time"
)

// ErrCorrupt indicates a record failed its header or length checks.
var ErrCorrupt = errors.New("wire: corrupt file record")

const HeaderSize = 8 + 4

// epochToUnixTicks is the number of 100ns ticks between the fixed
// reference epoch (0001-01-01 00:00:00 UTC, matching the tick convention
// of the system this format was ported from) and the Unix epoch
// (1970-01-01 00:00:00 UTC). Conversions go through time.Time's Unix
// nanoseconds rather than time.Time.Sub against a year-1 epoch: a
// ~2025-year gap in nanoseconds overflows and saturates time.Duration
// (max ~292 years), which would make every expiry encode as the same
// saturated value.
const epochToUnixTicks = 621355968000000000

// ToTicks converts an absolute expiry time to 100ns ticks since epoch.
func ToTicks(t time.Time) int64 {
	return t.UTC().UnixNano()/100 + epochToUnixTicks
}

// FromTicks converts 100ns ticks since epoch back to an absolute time.
func FromTicks(ticks int64) time.Time {
	return time.Unix(0, (ticks-epochToUnixTicks)*100).UTC()
}

// Encode builds a FileRecord for payload expiring at expires.
func Encode(expires time.Time, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ToTicks(expires)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[12:], payload)
	return buf
}

// Decode parses a FileRecord, validating that payload_len matches the
// remaining bytes. The returned payload aliases b.
func Decode(b []byte) (expires time.Time, payload []byte, err error) {
	if len(b) < HeaderSize {
		return time.Time{}, nil, ErrCorrupt
	}
	ticks := int64(binary.LittleEndian.Uint64(b[0:8]))
	plen := binary.LittleEndian.Uint32(b[8:12])
	rest := b[HeaderSize:]
	if uint64(plen) != uint64(len(rest)) {
		return time.Time{}, nil, ErrCorrupt
	}
	return FromTicks(ticks), rest, nil
}
