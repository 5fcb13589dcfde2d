package replication

import "encoding/hex"

// emptyRDBHex is the canonical empty-database RDB v11 payload a master sends
// following FULLRESYNC, taken verbatim from the original draft implementation
// this system was distilled from (its contents are a compatibility artifact;
// nothing in this system ever parses them back).
const emptyRDBHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469" +
	"732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08" +
	"616f662d62617365c000fff06e3bfec0ff5aa2"

// EmptyRDB is the decoded byte sequence of emptyRDBHex.
var EmptyRDB = mustDecodeHex(emptyRDBHex)

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
