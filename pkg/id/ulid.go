// Package id generates time-sortable identifiers.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

// Crockford base32 without I, L, O and U.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDLen is the length of a ULID string.
const ULIDLen = 26

// ErrInvalidULID is returned by ULIDTime for malformed input.
var ErrInvalidULID = errors.New("id: invalid ULID")

// NewULID returns a 26 character ULID: 48 bits of millisecond timestamp
// followed by 80 random bits. ULIDs sort by creation time.
func NewULID() string {
	return newULID(time.Now())
}

func newULID(t time.Time) string {
	var raw [16]byte
	ms := uint64(t.UnixMilli())
	raw[0], raw[1] = byte(ms>>40), byte(ms>>32)
	binary.BigEndian.PutUint32(raw[2:6], uint32(ms))
	if _, err := rand.Read(raw[6:]); err != nil {
		binary.BigEndian.PutUint64(raw[6:14], uint64(t.UnixNano()))
	}

	// 128 bits encoded as 26 five-bit groups; the first group holds 3 bits.
	var out [ULIDLen]byte
	hi := binary.BigEndian.Uint64(raw[:8])
	lo := binary.BigEndian.Uint64(raw[8:])
	for i := ULIDLen - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1F]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// ULIDTime returns the creation time encoded in s.
func ULIDTime(s string) (time.Time, error) {
	if len(s) != ULIDLen {
		return time.Time{}, ErrInvalidULID
	}
	var ms uint64
	for i := range 10 {
		v := strings.IndexByte(alphabet, s[i])
		if v < 0 || (i == 0 && v > 7) {
			return time.Time{}, ErrInvalidULID
		}
		ms = ms<<5 | uint64(v)
	}
	return time.UnixMilli(int64(ms)), nil
}
