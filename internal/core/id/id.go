// Package id provides the identifiers of products, warehouses, movements
// and kardex lines.
package id

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// ID is a UUID. Freshly generated IDs are version 7.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, so kardex lines created within one
// movement keep their creation order.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

func Parse(s string) (ID, error) { return uuid.Parse(s) }

// MustParse panics on malformed input. Tests and fixtures only.
func MustParse(s string) ID { return uuid.MustParse(s) }

func Nil() ID { return uuid.Nil }

func IsNil(v ID) bool { return v == uuid.Nil }

// Less orders IDs bytewise. Balance locks are taken in this order.
func Less(a, b ID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// CreatedAt extracts the timestamp of a version 7 ID. Other versions
// report false.
func CreatedAt(v ID) (time.Time, bool) {
	if v.Version() != 7 {
		return time.Time{}, false
	}
	ms := int64(binary.BigEndian.Uint64(v[:8]) >> 16)
	return time.UnixMilli(ms).UTC(), true
}
