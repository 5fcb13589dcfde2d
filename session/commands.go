package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/mediocregopher/mediocredis/resp"
	"github.com/mediocregopher/mediocredis/store"
)

// keyspaceOps is the subset of store.Keyspace's API that both *store.Keyspace
// itself and a locked *store.Tx (inside MULTI/EXEC) satisfy identically,
// letting every non-blocking command handler below run unmodified whether or
// not it's part of a transaction.
type keyspaceOps interface {
	Type(key string) store.Kind
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte, expireAtMS int64)
	Delete(key string) bool
	Incr(key string) (int64, error)
	LPush(key string, elems ...[]byte) (int, error)
	RPush(key string, elems ...[]byte) (int, error)
	LLen(key string) (int, error)
	LRange(key string, start, end int) ([][]byte, error)
	LPop(key string, count int) ([][]byte, bool, error)
	XAdd(key string, idSpec string, fields [][2][]byte) (store.StreamID, error)
	XRange(key string, start, end string) ([]store.StreamEntry, error)
}

// handlerFunc implements one command. ops is either the Session's own
// Keyspace (outside a transaction, where BLPOP/XREAD BLOCK may genuinely
// suspend) or a *store.Tx (inside EXEC, where they must not -- see
// store.Tx.BLPop/XRead). wrote reports whether the call mutated the
// keyspace, the signal the caller uses to decide whether to propagate raw
// to replicas.
type handlerFunc func(s *Session, ops keyspaceOps, inTx bool, args [][]byte) (reply []byte, wrote bool, err error)

type cmdSpec struct {
	minArgs int
	maxArgs int // -1 means unbounded
	handler handlerFunc
}

var commandTable = map[string]cmdSpec{
	"PING":     {0, 1, cmdPing},
	"ECHO":     {1, 1, cmdEcho},
	"INFO":     {0, 1, cmdInfo},
	"SET":      {2, 4, cmdSet},
	"GET":      {1, 1, cmdGet},
	"INCR":     {1, 1, cmdIncr},
	"TYPE":     {1, 1, cmdType},
	"LPUSH":    {2, -1, cmdLPush},
	"RPUSH":    {2, -1, cmdRPush},
	"LPOP":     {1, 2, cmdLPop},
	"LLEN":     {1, 1, cmdLLen},
	"LRANGE":   {3, 3, cmdLRange},
	"BLPOP":    {2, 2, cmdBLPop},
	"XADD":     {3, -1, cmdXAdd},
	"XRANGE":   {3, 3, cmdXRange},
	"XREAD":    {2, -1, cmdXRead},
	"WAIT":     {2, 2, cmdWait},
	"REPLCONF": {1, -1, cmdReplconf},
	"PSYNC":    {2, 2, cmdPsync},
}

// dispatch looks up and runs name against the Session's own keyspace,
// outside a transaction -- blocking commands may genuinely suspend here.
func (s *Session) dispatch(name string, args [][]byte) (reply []byte, wrote bool, err error) {
	spec, ok := commandTable[name]
	if !ok {
		return nil, false, errf("ERR unknown command '%s'", strings.ToLower(name))
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return nil, false, errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}
	return spec.handler(s, s.keyspace, false, args)
}

// dispatchTx is dispatch's EXEC-time counterpart: name runs against tx, with
// blocking commands forced to their non-blocking, transaction-safe variant.
func (s *Session) dispatchTx(tx *store.Tx, name string, args [][]byte) (reply []byte, wrote bool, err error) {
	spec, ok := commandTable[name]
	if !ok {
		return nil, false, errf("ERR unknown command '%s'", strings.ToLower(name))
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return nil, false, errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}
	return spec.handler(s, tx, true, args)
}

func cmdPing(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	if len(args) == 1 {
		return resp.BulkString(args[0]), false, nil
	}
	return resp.SimpleString("PONG"), false, nil
}

func cmdEcho(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	return resp.BulkString(args[0]), false, nil
}

func cmdInfo(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	var body string
	if s.infoFunc != nil {
		body = s.infoFunc()
	}
	return resp.BulkString([]byte(body)), false, nil
}

func cmdSet(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	key, val := args[0], args[1]
	var expireAt int64
	if len(args) > 2 {
		if len(args) != 4 || !strings.EqualFold(string(args[2]), "PX") {
			return nil, false, errf("ERR syntax error")
		}
		ms, err := strconv.ParseInt(string(args[3]), 10, 64)
		if err != nil {
			return nil, false, errf("ERR value is not an integer or out of range")
		}
		expireAt = store.NowMS() + ms
	}
	ops.Set(string(key), val, expireAt)
	return resp.SimpleString("OK"), true, nil
}

func cmdGet(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	val, ok, err := ops.Get(string(args[0]))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return resp.NilBulkString, false, nil
	}
	return resp.BulkString(val), false, nil
}

func cmdIncr(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	n, err := ops.Incr(string(args[0]))
	if err != nil {
		return nil, false, err
	}
	return resp.Integer(n), true, nil
}

func cmdType(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	return resp.SimpleString(ops.Type(string(args[0])).String()), false, nil
}

func cmdLPush(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	n, err := ops.LPush(string(args[0]), args[1:]...)
	if err != nil {
		return nil, false, err
	}
	return resp.Integer(int64(n)), true, nil
}

func cmdRPush(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	n, err := ops.RPush(string(args[0]), args[1:]...)
	if err != nil {
		return nil, false, err
	}
	return resp.Integer(int64(n)), true, nil
}

func cmdLPop(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	count := -1
	if len(args) == 2 {
		n, err := strconv.Atoi(string(args[1]))
		if err != nil || n < 0 {
			return nil, false, errf("ERR value is out of range, must be positive")
		}
		count = n
	}
	vals, ok, err := ops.LPop(string(args[0]), count)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return resp.NilBulkString, false, nil
	}
	if count < 0 {
		return resp.BulkString(vals[0]), true, nil
	}
	return resp.BulkStringArray(vals), len(vals) > 0, nil
}

func cmdLLen(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	n, err := ops.LLen(string(args[0]))
	if err != nil {
		return nil, false, err
	}
	return resp.Integer(int64(n)), false, nil
}

func cmdLRange(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	start, err1 := strconv.Atoi(string(args[1]))
	end, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return nil, false, errf("ERR value is not an integer or out of range")
	}
	vals, err := ops.LRange(string(args[0]), start, end)
	if err != nil {
		return nil, false, err
	}
	return resp.BulkStringArray(vals), false, nil
}

func cmdBLPop(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	key := string(args[0])

	if inTx {
		tx := ops.(*store.Tx)
		val, popped, err := tx.BLPop(key)
		if err != nil {
			return nil, false, err
		}
		if !popped {
			return resp.NilArray, false, nil
		}
		return resp.BulkStringArray([][]byte{args[0], val}), true, nil
	}

	return blpopAndWait(s, key, args[1], nil)
}

// blpopAndWait parses a BLPOP timeout argument and suspends on key via the
// Session's own Keyspace -- genuine blocking, never reached from inside a
// transaction (see cmdBLPop's inTx branch above, which uses Tx.BLPop
// instead). onPopped, if non-nil, runs with the keyspace mutex still held,
// immediately after a successful pop; dispatchAndPropagate uses it to
// propagate the command to replicas from inside the same critical section
// that ordered the pop relative to every other connection's writes.
func blpopAndWait(s *Session, key string, timeoutArg []byte, onPopped func()) ([]byte, bool, error) {
	secs, err := strconv.ParseFloat(string(timeoutArg), 64)
	if err != nil || secs < 0 {
		return nil, false, errf("ERR timeout is not a float or out of range")
	}
	timeout := time.Duration(secs * float64(time.Second))

	val, popped, err := s.keyspace.BLPop(key, timeout, onPopped)
	if err != nil {
		return nil, false, err
	}
	if !popped {
		return resp.NilArray, false, nil
	}
	return resp.BulkStringArray([][]byte{[]byte(key), val}), true, nil
}

func cmdXAdd(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	key, idSpec := string(args[0]), string(args[1])
	rest := args[2:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, false, errf("ERR wrong number of arguments for 'xadd' command")
	}
	fields := make([][2][]byte, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		fields = append(fields, [2][]byte{rest[i], rest[i+1]})
	}
	id, err := ops.XAdd(key, idSpec, fields)
	if err != nil {
		return nil, false, err
	}
	return resp.BulkString([]byte(id.String())), true, nil
}

func cmdXRange(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	entries, err := ops.XRange(string(args[0]), string(args[1]), string(args[2]))
	if err != nil {
		return nil, false, err
	}
	return resp.StreamRangeReply(convertEntries(entries)), false, nil
}

func cmdXRead(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	i := 0
	var block time.Duration
	blocking := false
	if i < len(args) && strings.EqualFold(string(args[i]), "BLOCK") {
		if i+1 >= len(args) {
			return nil, false, errf("ERR syntax error")
		}
		ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
		if err != nil || ms < 0 {
			return nil, false, errf("ERR timeout is not an integer or out of range")
		}
		blocking = true
		block = time.Duration(ms) * time.Millisecond
		i += 2
	}
	if i >= len(args) || !strings.EqualFold(string(args[i]), "STREAMS") {
		return nil, false, errf("ERR syntax error")
	}
	i++

	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, false, errf("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	queries := make([]store.XReadQuery, n)
	for j := 0; j < n; j++ {
		queries[j] = store.XReadQuery{Key: string(rest[j]), Start: string(rest[n+j])}
	}

	var results []store.XReadResult
	var err error
	if inTx {
		results, err = ops.(*store.Tx).XRead(queries)
	} else {
		results, err = s.keyspace.XRead(queries, blocking, block)
	}
	if err != nil {
		return nil, false, err
	}

	ranges := make([]resp.KeyStreamRange, len(results))
	for i, r := range results {
		ranges[i] = resp.KeyStreamRange{Key: []byte(r.Key), Entries: convertEntries(r.Entries)}
	}
	return resp.XReadReply(ranges), false, nil
}

func cmdWait(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	numReplicas, err1 := strconv.Atoi(string(args[0]))
	timeoutMS, err2 := strconv.Atoi(string(args[1]))
	if err1 != nil || err2 != nil {
		return nil, false, errf("ERR value is not an integer or out of range")
	}
	if s.master == nil {
		return resp.Integer(0), false, nil
	}
	n := s.master.Wait(numReplicas, time.Duration(timeoutMS)*time.Millisecond)
	return resp.Integer(int64(n)), false, nil
}

func cmdReplconf(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	sub := strings.ToUpper(string(args[0]))
	switch sub {
	case "ACK":
		if len(args) != 2 {
			return nil, false, errf("ERR wrong number of arguments for 'replconf' command")
		}
		n, err := strconv.ParseUint(string(args[1]), 10, 64)
		if err != nil {
			return nil, false, errf("ERR value is not an integer or out of range")
		}
		if s.master != nil {
			s.master.Ack(s.conn, n)
		}
		return nil, false, nil // REPLCONF ACK never gets a reply
	default:
		return resp.SimpleString("OK"), false, nil
	}
}

func cmdPsync(s *Session, ops keyspaceOps, inTx bool, args [][]byte) ([]byte, bool, error) {
	if s.master == nil {
		return nil, false, errf("ERR PSYNC is only supported on a master")
	}
	fullresync, rdb := s.master.RegisterReplica(s.conn)
	reply := make([]byte, 0, len(fullresync)+len(rdb))
	reply = append(reply, fullresync...)
	reply = append(reply, rdb...)
	s.isReplicaPeer = true
	return reply, false, nil
}

// ApplyReplicated runs name/args -- as decoded off a master's replication
// stream -- against ks exactly as a normal client connection's dispatch
// would, for the subset of commands a master ever propagates (the write
// commands: SET, INCR, LPUSH, RPUSH, LPOP, XADD; none of their handlers
// touch a Session's conn/master fields, so a bare keyspace-only Session is
// enough). This keeps command semantics defined in exactly one place
// instead of re-deriving them in the replication client's apply loop.
func ApplyReplicated(ks *store.Keyspace, name string, args [][]byte) error {
	s := &Session{keyspace: ks}
	_, _, err := s.dispatch(strings.ToUpper(name), args)
	return err
}

func convertEntries(entries []store.StreamEntry) []resp.StreamEntry {
	out := make([]resp.StreamEntry, len(entries))
	for i, e := range entries {
		out[i] = resp.StreamEntry{ID: e.ID.String(), Fields: e.Fields}
	}
	return out
}
