// Package store implements the typed keyspace described in spec.md §3/§4.2
// and §4.3: a single coarse-locked map from opaque byte-string keys to
// tagged Values (string, list, or stream), plus the waiter table blocking
// commands suspend on.
package store

import (
	"strconv"
)

// Kind identifies which variant of Value is populated.
type Kind int

// The four Value kinds named in spec.md §3. KindNone is never stored in the
// keyspace directly -- it is returned by lookups to mean "absent."
const (
	KindNone Kind = iota
	KindString
	KindList
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// Value is the tagged variant stored in the Keyspace for a single key. Only
// the fields relevant to Kind are meaningful.
type Value struct {
	Kind Kind

	// KindString
	Str      []byte
	ExpireAt int64 // unix milliseconds; 0 means no expiry

	// KindList
	List [][]byte

	// KindStream
	Stream []StreamEntry
}

// WrongTypeError is returned by any Keyspace operation performed against a
// key whose Value has a different Kind than the operation requires.
type WrongTypeError struct{}

func (WrongTypeError) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// RangeError is returned by INCR when the stored string isn't a valid
// base-10 signed 64-bit integer, or when incrementing it would overflow.
type RangeError struct{}

func (RangeError) Error() string {
	return "ERR value is not an integer or out of range"
}

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, RangeError{}
	}
	return n, nil
}
