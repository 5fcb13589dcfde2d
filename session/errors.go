package session

import (
	"fmt"

	"github.com/mediocregopher/mediocredis/resp"
	"github.com/mediocregopher/mediocredis/store"
)

// cmdError is a session-level command error (bad arity, unknown command,
// transaction-state violation) carrying its full literal RESP error message,
// already including the leading error-kind word (e.g. "ERR"), per spec.md §7.
type cmdError struct {
	msg string
}

func (e cmdError) Error() string {
	return e.msg
}

func errf(format string, args ...interface{}) error {
	return cmdError{msg: fmt.Sprintf(format, args...)}
}

// encodeErr maps any error a command handler can return to its RESP wire
// encoding, per spec.md §7's taxonomy: type_error, range_error,
// stream_id_error, and syntax_error all reply with a specific message
// rather than a generic one.
func encodeErr(err error) []byte {
	switch e := err.(type) {
	case store.WrongTypeError:
		return resp.Error(e.Error())
	case store.RangeError:
		return resp.Error(e.Error())
	case store.StreamIDError:
		return resp.Error("ERR " + e.Msg)
	case store.SyntaxError:
		return resp.Error("ERR " + e.Msg)
	case cmdError:
		return resp.Error(e.msg)
	default:
		return resp.Error("ERR " + err.Error())
	}
}
