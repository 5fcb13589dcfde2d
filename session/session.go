// Package session implements the per-connection state machine described in
// spec.md §4.4: decoding commands off a socket, dispatching them against a
// store.Keyspace, handling MULTI/EXEC/DISCARD transaction queueing, and (for
// connections that complete a PSYNC handshake) switching into a replica-feed
// mode that only parses REPLCONF ACK frames off the wire.
package session

import (
	"net"
	"strings"
	"time"

	"github.com/mediocregopher/mediocredis/resp"
	"github.com/mediocregopher/mediocredis/store"
)

// MasterHooks is the subset of master-side replication bookkeeping a Session
// needs: propagating write commands, handling PSYNC/REPLCONF/WAIT. A Session
// running on a pure replica server (no --replicaof clients of its own) is
// constructed with a nil MasterHooks; master-only commands then do not panic:
// PSYNC replies with an error, WAIT replies 0, and REPLCONF ACK is ignored.
type MasterHooks interface {
	// Propagate forwards the exact raw RESP bytes of a just-executed write
	// command to every registered replica and advances the replication
	// offset by their length.
	Propagate(raw []byte)

	// RegisterReplica enrolls conn, which has just issued PSYNC, as a
	// replica connection, returning the "+FULLRESYNC ...\r\n" preamble and
	// the RDB bulk-string payload (without trailing CRLF) to write back.
	// From this call on, conn is written to only by the replication
	// registry; the Session that owns conn keeps reading, to parse
	// REPLCONF ACK frames.
	RegisterReplica(conn net.Conn) (fullresync []byte, rdb []byte)

	// Ack records a REPLCONF ACK byte offset reported by a replica
	// connection previously passed to RegisterReplica.
	Ack(conn net.Conn, offset uint64)

	// Wait implements the WAIT command: block (up to timeout) until
	// numReplicas replicas have acked the replication offset as it stood
	// when WAIT was called, returning the count actually reached.
	Wait(numReplicas int, timeout time.Duration) int
}

// Session is the state associated with one client TCP connection.
type Session struct {
	conn     net.Conn
	keyspace *store.Keyspace
	master   MasterHooks
	infoFunc func() string

	inTransaction bool
	queued        []queuedCmd
	isReplicaPeer bool
}

type queuedCmd struct {
	name string
	args [][]byte
	raw  []byte
}

// New returns a Session ready to run over conn. infoFunc, if non-nil,
// supplies the body of the INFO replication reply.
func New(conn net.Conn, ks *store.Keyspace, master MasterHooks, infoFunc func() string) *Session {
	return &Session{
		conn:     conn,
		keyspace: ks,
		master:   master,
		infoFunc: infoFunc,
	}
}

// Run decodes and dispatches commands from conn until it errors or closes.
// It blocks the calling goroutine for the lifetime of the connection; the
// caller is expected to invoke Run in its own goroutine per accepted
// connection.
func (s *Session) Run() {
	defer s.conn.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		for {
			args, n, err := resp.Decode(buf)
			if err != nil {
				s.conn.Write(resp.Error("ERR " + err.Error()))
				return
			}
			if args == nil && n == 0 {
				break // incomplete; need more bytes off the wire
			}

			raw := append([]byte(nil), buf[:n]...)
			buf = buf[n:]
			if args == nil {
				continue // a bare "*-1\r\n"; nothing to dispatch
			}

			if s.isReplicaPeer {
				s.handleReplicaFrame(args)
				continue
			}
			s.handleCommand(args, raw)
		}

		m, err := s.conn.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:m]...)
	}
}

// handleReplicaFrame is the post-PSYNC read path: the only frame a
// registered replica connection is expected to send upstream is
// REPLCONF ACK <n>, which produces no reply.
func (s *Session) handleReplicaFrame(args [][]byte) {
	if len(args) == 0 {
		return
	}
	name := strings.ToUpper(string(args[0]))
	if name != "REPLCONF" {
		return
	}
	s.dispatch(name, args[1:])
}

func (s *Session) handleCommand(args [][]byte, raw []byte) {
	name := strings.ToUpper(string(args[0]))
	rest := args[1:]

	if s.inTransaction {
		switch name {
		case "MULTI":
			s.conn.Write(resp.Error("ERR MULTI calls can not be nested"))
			return
		case "EXEC":
			s.cmdExec()
			return
		case "DISCARD":
			s.cmdDiscard()
			return
		}
		s.queued = append(s.queued, queuedCmd{name: name, args: rest, raw: raw})
		s.conn.Write(resp.SimpleString("QUEUED"))
		return
	}

	switch name {
	case "MULTI":
		s.cmdMulti()
		return
	case "EXEC":
		s.conn.Write(resp.Error("ERR EXEC without MULTI"))
		return
	case "DISCARD":
		s.conn.Write(resp.Error("ERR DISCARD without MULTI"))
		return
	}

	reply, _, err := s.dispatchAndPropagate(name, rest, raw)
	if err != nil {
		s.conn.Write(encodeErr(err))
		return
	}
	if reply != nil {
		s.conn.Write(reply)
	}
}

// lockedWriteCommands are the non-blocking commands that mutate the
// keyspace. dispatchAndPropagate runs each of these -- and its propagation,
// if this node is a master -- inside a single store.Keyspace.Atomic call, so
// that two concurrent connections' writes are propagated to replicas in the
// same order they acquired the keyspace mutex and became visible to other
// reads (spec.md §5's "propagation order matches the mutex acquisition order
// of the originating writes"). BLPOP is handled separately below: it may
// genuinely suspend, which Atomic's held-for-the-duration-of-fn contract
// forbids, so its propagation instead happens via a callback invoked from
// inside store.Keyspace.BLPop itself, at the moment of a successful pop.
var lockedWriteCommands = map[string]bool{
	"SET":   true,
	"INCR":  true,
	"LPUSH": true,
	"RPUSH": true,
	"LPOP":  true,
	"XADD":  true,
}

// dispatchAndPropagate looks up and runs name against the Session's own
// keyspace, outside a transaction, propagating raw to replicas -- while
// still holding whatever lock ordered the write relative to other
// connections -- if the command wrote and this node is a master.
func (s *Session) dispatchAndPropagate(name string, args [][]byte, raw []byte) (reply []byte, wrote bool, err error) {
	spec, ok := commandTable[name]
	if !ok {
		return nil, false, errf("ERR unknown command '%s'", strings.ToLower(name))
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return nil, false, errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}

	if name == "BLPOP" {
		reply, wrote, err = blpopAndWait(s, string(args[0]), args[1], func() {
			s.propagate(raw)
		})
		return reply, wrote, err
	}

	if lockedWriteCommands[name] {
		s.keyspace.Atomic(func(tx *store.Tx) {
			reply, wrote, err = spec.handler(s, tx, false, args)
			if err == nil && wrote {
				s.propagate(raw)
			}
		})
		return reply, wrote, err
	}

	return spec.handler(s, s.keyspace, false, args)
}

// propagate forwards raw to every replica if this node is a master; a no-op
// on a pure replica server (nil MasterHooks).
func (s *Session) propagate(raw []byte) {
	if s.master != nil {
		s.master.Propagate(raw)
	}
}

func (s *Session) cmdMulti() {
	s.inTransaction = true
	s.queued = s.queued[:0]
	s.conn.Write(resp.SimpleString("OK"))
}

func (s *Session) cmdDiscard() {
	s.inTransaction = false
	s.queued = nil
	s.conn.Write(resp.SimpleString("OK"))
}

// cmdExec runs every queued command against a single store.Keyspace.Atomic
// call, so the whole sequence holds the keyspace mutex throughout -- the
// atomicity spec.md §5 requires ("the mutex is held across the entire
// queued sequence during EXEC").
func (s *Session) cmdExec() {
	queued := s.queued
	s.inTransaction = false
	s.queued = nil

	replies := make([][]byte, len(queued))

	s.keyspace.Atomic(func(tx *store.Tx) {
		for i, q := range queued {
			reply, wrote, err := s.dispatchTx(tx, q.name, q.args)
			if err != nil {
				replies[i] = encodeErr(err)
				continue
			}
			if wrote {
				// Propagated here, while tx's Atomic call still holds the
				// keyspace mutex, so a concurrent connection's own write
				// (and propagation) can't interleave between this command
				// becoming visible and its propagation going out.
				s.propagate(q.raw)
			}
			if reply == nil {
				reply = resp.NilBulkString
			}
			replies[i] = reply
		}
	})

	s.conn.Write(resp.Array(replies))
}
