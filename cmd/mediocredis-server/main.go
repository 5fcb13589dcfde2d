// Command mediocredis-server runs a standalone mediocredis instance: a
// RESP-speaking in-memory key/value server with list, stream, transaction,
// and leader/follower replication support, per spec.md.
package main

import (
	"github.com/mediocregopher/mediocredis/m"
	"github.com/mediocregopher/mediocredis/server"
)

func main() {
	cmp := m.RootServiceComponent()
	server.New(cmp)
	m.Exec(cmp)
}
