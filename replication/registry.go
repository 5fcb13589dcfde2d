// Package replication implements spec.md §4.5: the master-side replica
// registry (PSYNC/REPLCONF/WAIT bookkeeping) and the replica-side handshake
// and propagation-apply client.
package replication

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/mlog"
	"github.com/mediocregopher/mediocredis/mrand"
	"github.com/mediocregopher/mediocredis/resp"
)

// replicaGetAck is the exact raw command WAIT broadcasts to probe replicas,
// per spec.md §4.5.
var replicaGetAck = resp.BulkStringArray([][]byte{
	[]byte("REPLCONF"), []byte("GETACK"), []byte("*"),
})

// registeredReplica is one enrolled replica connection's last reported
// acked_offset.
type registeredReplica struct {
	conn        net.Conn
	ackedOffset uint64
}

// Registry is the master-side replication state of spec.md §4.5: it
// implements session.MasterHooks, tracking master_repl_offset and the set
// of connected replica sockets, and answers WAIT by broadcasting
// REPLCONF GETACK and polling acked offsets against a condition variable.
type Registry struct {
	cmp    *mcmp.Component
	replID string

	mu       sync.Mutex
	cond     *sync.Cond
	offset   uint64
	replicas []*registeredReplica
}

// NewRegistry returns an empty Registry logging through cmp (nil is
// accepted, e.g. in tests). Its replication id is a fresh random 40-char hex
// string, matching the fixed-width replication_id spec.md §3 requires.
func NewRegistry(cmp *mcmp.Component) *Registry {
	r := &Registry{
		cmp:    cmp,
		replID: mrand.DefaultRand.Hex(40),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// logger returns the Component's logger, or mlog.DefaultLogger if this
// Registry was constructed (e.g. in a test) without a Component.
func (r *Registry) logger() *mlog.Logger {
	if r.cmp == nil {
		return mlog.DefaultLogger
	}
	return mlog.From(r.cmp)
}

// ReplicationID returns the 40-char hex replication id reported by
// INFO replication's master_replid field.
func (r *Registry) ReplicationID() string {
	return r.replID
}

// Offset returns the current master_repl_offset.
func (r *Registry) Offset() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// ReplicaCount returns the number of currently registered replicas.
func (r *Registry) ReplicaCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

// Propagate implements session.MasterHooks: raw is appended to every
// registered replica socket and master_repl_offset is advanced by its
// length, per spec.md §4.5.
func (r *Registry) Propagate(raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset += uint64(len(raw))
	r.writeAllLocked(raw)
}

// RegisterReplica implements session.MasterHooks: it enrolls conn with
// acked_offset 0 and returns the FULLRESYNC preamble and RDB payload to
// write back, per spec.md §4.5.
func (r *Registry) RegisterReplica(conn net.Conn) (fullresync []byte, rdb []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fullresync = resp.SimpleString(fmt.Sprintf("FULLRESYNC %s %d", r.replID, r.offset))
	rdb = resp.RDBBulkString(EmptyRDB)
	r.replicas = append(r.replicas, &registeredReplica{conn: conn})

	r.logger().Info("replica registered", mctx.Annotated(
		"remoteAddr", conn.RemoteAddr(),
		"offset", r.offset,
	))
	return fullresync, rdb
}

// Ack implements session.MasterHooks: it records a REPLCONF ACK offset
// reported by conn and wakes any WAIT poll that might now be satisfied.
func (r *Registry) Ack(conn net.Conn, offset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.replicas {
		if rep.conn == conn {
			rep.ackedOffset = offset
			break
		}
	}
	r.cond.Broadcast()
}

// Wait implements session.MasterHooks, per spec.md §4.5's WAIT semantics:
// target is master_repl_offset as it stood when WAIT was called; a replica
// counts once its acked_offset reaches target. If enough replicas already
// meet target, or master_repl_offset is zero (nothing has ever been
// written), Wait returns immediately without probing. Otherwise it
// broadcasts REPLCONF GETACK and polls until numReplicas is reached or
// timeout elapses, returning the count reached either way.
func (r *Registry) Wait(numReplicas int, timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.offset
	if target == 0 {
		return len(r.replicas)
	}
	if count := r.countAckedLocked(target); count >= numReplicas {
		return count
	}

	r.writeAllLocked(replicaGetAck)

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return r.countAckedLocked(target)
		}

		timer := time.AfterFunc(remaining, func() {
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		})
		r.cond.Wait()
		timer.Stop()

		if count := r.countAckedLocked(target); count >= numReplicas {
			return count
		}
	}
}

func (r *Registry) countAckedLocked(target uint64) int {
	n := 0
	for _, rep := range r.replicas {
		if rep.ackedOffset >= target {
			n++
		}
	}
	return n
}

// writeAllLocked pushes raw to every registered replica, dropping (and
// logging) any whose connection has gone bad. r.mu must be held.
func (r *Registry) writeAllLocked(raw []byte) {
	live := r.replicas[:0]
	for _, rep := range r.replicas {
		if _, err := rep.conn.Write(raw); err != nil {
			r.logger().Warn("dropping replica after write error", mctx.Annotated(
				"remoteAddr", rep.conn.RemoteAddr(),
				"err", err,
			))
			continue
		}
		live = append(live, rep)
	}
	r.replicas = live
}

// MasterInfo renders the "role:master" INFO replication body spec.md §4.5
// requires: role, master_replid, master_repl_offset.
func MasterInfo(r *Registry) string {
	return fmt.Sprintf(
		"role:master\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		r.ReplicationID(), r.Offset(),
	)
}

// ReplicaInfo renders the "role:slave" INFO replication body for a server
// running with --replicaof.
func ReplicaInfo() string {
	return "role:slave\r\n"
}
