// Package server wires a listener, a keyspace, and this node's replication
// role (master or replica) into the accept loop described in spec.md
// §4.1/§4.5: every accepted connection gets its own session.Session running
// against one shared store.Keyspace.
package server

import (
	"context"
	"net"
	"strings"

	"github.com/mediocregopher/mediocredis/mcfg"
	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/merr"
	"github.com/mediocregopher/mediocredis/mlog"
	"github.com/mediocregopher/mediocredis/mnet"
	"github.com/mediocregopher/mediocredis/mrun"
	"github.com/mediocregopher/mediocredis/replication"
	"github.com/mediocregopher/mediocredis/session"
	"github.com/mediocregopher/mediocredis/store"
)

// Server ties a bound listener to a keyspace and a replication role. It is
// constructed and wired up once per process by New; New registers the
// mrun hooks that actually bind the listener and start serving, rather than
// doing either of those things itself.
type Server struct {
	cmp      *mcmp.Component
	listener *mnet.Listener
	keyspace *store.Keyspace

	port          *int
	replicaofAddr *string

	registry      *replication.Registry // non-nil only when running as a master
	replicaClient *replication.Client    // non-nil only when running as a replica
}

// New registers this node's configuration (--port, --replicaof) on cmp, and
// an mrun.InitHook that -- once the listener below it has bound -- determines
// this node's replication role and starts the accept loop in a goroutine, per
// spec.md §6.1/§6.4. It returns immediately; nothing is listening until
// mrun.Init is triggered on cmp (or an ancestor of it).
func New(cmp *mcmp.Component) *Server {
	s := &Server{
		cmp:      cmp,
		keyspace: store.New(),
	}

	s.listener = mnet.InstListener(cmp, mnet.ListenerDefaultAddr(":6379"))

	s.port = mcfg.Int(cmp, "port",
		mcfg.ParamDefault(6379),
		mcfg.ParamUsage(
			"Port this node advertises to a master via REPLCONF listening-port "+
				"when run with --replicaof. Does not itself control the address "+
				"listened on; see --net-listen-addr for that.",
		),
	)
	s.replicaofAddr = mcfg.String(cmp, "replicaof",
		mcfg.ParamDefault(""),
		mcfg.ParamUsage(
			`Address of a master to replicate from, in the form "<host> <port>". `+
				"If unset this node runs as a master.",
		),
	)

	// A sibling of the "net" Component InstListener created above, under the
	// same parent: breadth-first Init ordering runs same-level Components in
	// the order their children were created on the shared parent, so "net"'s
	// bind hook (added to cmp.children first, by InstListener above) runs
	// before "accept"'s hook (added second, here) during the same Init pass.
	acceptCmp := cmp.Child("accept")
	mrun.InitHook(acceptCmp, func(context.Context) error {
		if err := s.initRole(); err != nil {
			return err
		}
		go s.acceptLoop()
		return nil
	})

	return s
}

// initRole determines, from --replicaof, whether this node is a master or a
// replica, and sets up the corresponding replication state. For a replica it
// launches the handshake/propagation-apply loop in its own goroutine; Init
// does not block on it completing, matching spec.md §4.5's master/replica
// handshake being an asynchronous background concern from the server's
// perspective.
func (s *Server) initRole() error {
	addr := strings.TrimSpace(*s.replicaofAddr)
	if addr == "" {
		s.registry = replication.NewRegistry(s.cmp)
		return nil
	}

	parts := strings.Fields(addr)
	if len(parts) != 2 {
		return merr.New("replicaof must be in the form \"<host> <port>\"",
			s.cmp.Context(), mctx.Annotated("replicaof", addr))
	}
	masterAddr := net.JoinHostPort(parts[0], parts[1])

	s.replicaClient = replication.NewClient(s.cmp, masterAddr, *s.port, s.keyspace)
	go func() {
		if err := s.replicaClient.Run(); err != nil {
			mlog.From(s.cmp).Error("replication client exited", mctx.Annotated(
				"masterAddr", masterAddr, "err", err,
			))
		}
	}()
	return nil
}

// acceptLoop accepts connections until the listener is closed (by its own
// mrun.ShutdownHook, registered by mnet.InstListener), spawning one
// session.Session per connection.
func (s *Server) acceptLoop() {
	log := mlog.From(s.cmp)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			log.Info("accept loop exiting", mctx.Annotated("err", err))
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sess := session.New(conn, s.keyspace, s.masterHooks(), s.infoFunc())
	sess.Run()
}

// masterHooks returns nil (a true nil session.MasterHooks, not a
// typed-nil-inside-an-interface) when this node is running as a replica, so
// that session's "s.master == nil" checks behave correctly.
func (s *Server) masterHooks() session.MasterHooks {
	if s.registry == nil {
		return nil
	}
	return s.registry
}

func (s *Server) infoFunc() func() string {
	if s.registry != nil {
		return func() string { return replication.MasterInfo(s.registry) }
	}
	return replication.ReplicaInfo
}

// Addr returns the address the listener is bound to. It is only meaningful
// after mrun.Init has completed.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
