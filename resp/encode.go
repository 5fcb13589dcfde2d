package resp

import (
	"strconv"
)

// SimpleString encodes s as a RESP simple string, e.g. "+OK\r\n".
func SimpleString(s string) []byte {
	return append([]byte("+"+s), '\r', '\n')
}

// Error encodes msg as a RESP error, e.g. "-ERR foo\r\n".
func Error(msg string) []byte {
	return append([]byte("-"+msg), '\r', '\n')
}

// Integer encodes n as a RESP integer, e.g. ":123\r\n".
func Integer(n int64) []byte {
	return append([]byte(":"+strconv.FormatInt(n, 10)), '\r', '\n')
}

// NilBulkString is the RESP encoding of a nil bulk string.
var NilBulkString = []byte("$-1\r\n")

// NilArray is the RESP encoding of a nil array.
var NilArray = []byte("*-1\r\n")

// BulkString encodes b as a RESP bulk string. A nil b encodes as
// NilBulkString.
func BulkString(b []byte) []byte {
	if b == nil {
		return NilBulkString
	}
	out := make([]byte, 0, len(b)+16)
	out = append(out, '$')
	out = strconv.AppendInt(out, int64(len(b)), 10)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	out = append(out, '\r', '\n')
	return out
}

// Array encodes vals, each of which must already be a complete encoded RESP
// value (as returned by SimpleString, Integer, BulkString, Array, etc), as a
// RESP array. A nil vals encodes as NilArray.
func Array(vals [][]byte) []byte {
	if vals == nil {
		return NilArray
	}
	size := 0
	for _, v := range vals {
		size += len(v)
	}
	out := make([]byte, 0, size+16)
	out = append(out, '*')
	out = strconv.AppendInt(out, int64(len(vals)), 10)
	out = append(out, '\r', '\n')
	for _, v := range vals {
		out = append(out, v...)
	}
	return out
}

// BulkStringArray is a convenience composer which encodes each of elems as a
// bulk string, then wraps the result in an Array.
func BulkStringArray(elems [][]byte) []byte {
	vals := make([][]byte, len(elems))
	for i, el := range elems {
		vals[i] = BulkString(el)
	}
	return Array(vals)
}

// StreamEntry is a single stream entry as used by StreamRangeReply and
// XReadReply: an id string plus its ordered field/value pairs.
type StreamEntry struct {
	ID     string
	Fields [][2][]byte
}

// encode returns the RESP encoding of a single stream entry, as used within
// both StreamRangeReply and XReadReply: a 2-element array of [id,
// flat-field-value-array].
func (e StreamEntry) encode() []byte {
	flat := make([][]byte, 0, len(e.Fields)*2)
	for _, fv := range e.Fields {
		flat = append(flat, fv[0], fv[1])
	}
	return Array([][]byte{
		BulkString([]byte(e.ID)),
		BulkStringArray(flat),
	})
}

// StreamRangeReply encodes the reply to XRANGE: an array of
// [id, flat-field-value-array] pairs, one per entry.
func StreamRangeReply(entries []StreamEntry) []byte {
	vals := make([][]byte, len(entries))
	for i, e := range entries {
		vals[i] = e.encode()
	}
	return Array(vals)
}

// KeyStreamRange pairs a stream key with the entries XREAD matched for it.
type KeyStreamRange struct {
	Key     []byte
	Entries []StreamEntry
}

// XReadReply encodes the reply to XREAD: an array of
// [key, stream-range-reply] pairs, one per key with at least one matching
// entry. If ranges is empty, the nil array is returned (per spec: "If every
// key yields empty ... respond with nil-array").
func XReadReply(ranges []KeyStreamRange) []byte {
	if len(ranges) == 0 {
		return NilArray
	}
	vals := make([][]byte, len(ranges))
	for i, r := range ranges {
		vals[i] = Array([][]byte{
			BulkString(r.Key),
			StreamRangeReply(r.Entries),
		})
	}
	return Array(vals)
}

// RDBBulkString encodes b as a RESP bulk string without the trailing CRLF,
// the one deliberate protocol deviation used for the RDB payload following
// FULLRESYNC (see spec §4.5, §6).
func RDBBulkString(b []byte) []byte {
	out := make([]byte, 0, len(b)+16)
	out = append(out, '$')
	out = strconv.AppendInt(out, int64(len(b)), 10)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	return out
}
