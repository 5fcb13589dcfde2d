package server_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mediocregopher/mediocredis/m"
	"github.com/mediocregopher/mediocredis/mcfg"
	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mrun"
	"github.com/mediocregopher/mediocredis/server"
	"github.com/mediocregopher/radix/v3"
)

// startServer boots a server.Server on an ephemeral port (its --net-listen-addr
// param is populated with "127.0.0.1:0", overriding the ":6379" default) and
// returns a radix.Client pool connected to it, plus the address it bound. The
// server is torn down via mrun.Shutdown when the test ends.
func startServer(t *testing.T) (radix.Client, string) {
	t.Helper()

	cmp := new(mcmp.Component)
	srv := server.New(cmp)
	err := mcfg.Populate(cmp, mcfg.ParamValues{{
		Path:  []string{"net"},
		Name:  "listen-addr",
		Value: json.RawMessage(`"127.0.0.1:0"`),
	}})
	if err != nil {
		t.Fatalf("populating config: %v", err)
	}
	if err := mrun.Init(context.Background(), cmp); err != nil {
		t.Fatalf("initializing server: %v", err)
	}
	t.Cleanup(func() { mrun.Shutdown(context.Background(), cmp) })

	addr := srv.Addr().String()
	pool, err := radix.NewPool("tcp", addr, 4)
	if err != nil {
		t.Fatalf("dialing server: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool, addr
}

func TestPing(t *testing.T) {
	pool, _ := startServer(t)

	var resp string
	if err := pool.Do(radix.Cmd(&resp, "PING")); err != nil {
		t.Fatalf("PING: %v", err)
	}
	if resp != "PONG" {
		t.Fatalf("expected PONG, got %q", resp)
	}
}

func TestSetGetWithExpiry(t *testing.T) {
	pool, _ := startServer(t)

	if err := pool.Do(radix.Cmd(nil, "SET", "foo", "bar", "PX", "50")); err != nil {
		t.Fatalf("SET: %v", err)
	}

	var val string
	if err := pool.Do(radix.Cmd(&val, "GET", "foo")); err != nil {
		t.Fatalf("GET: %v", err)
	}
	if val != "bar" {
		t.Fatalf("expected bar, got %q", val)
	}

	time.Sleep(100 * time.Millisecond)

	var missing string
	if err := pool.Do(radix.Cmd(&missing, "GET", "foo")); err != nil {
		t.Fatalf("GET after expiry: %v", err)
	}
	if missing != "" {
		t.Fatalf("expected key to have expired, got %q", missing)
	}
}

func TestListOrdering(t *testing.T) {
	pool, _ := startServer(t)

	if err := pool.Do(radix.Cmd(nil, "RPUSH", "mylist", "a", "b", "c")); err != nil {
		t.Fatalf("RPUSH: %v", err)
	}

	var vals []string
	if err := pool.Do(radix.Cmd(&vals, "LRANGE", "mylist", "0", "-1")); err != nil {
		t.Fatalf("LRANGE: %v", err)
	}

	expected := []string{"a", "b", "c"}
	if len(vals) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, vals)
	}
	for i := range expected {
		if vals[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, vals)
		}
	}
}

func TestBLPopAcrossConnections(t *testing.T) {
	pool, _ := startServer(t)

	popped := make(chan string, 1)
	go func() {
		var res []string
		if err := pool.Do(radix.Cmd(&res, "BLPOP", "waitlist", "2")); err != nil {
			t.Errorf("BLPOP: %v", err)
			return
		}
		if len(res) == 2 {
			popped <- res[1]
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if err := pool.Do(radix.Cmd(nil, "RPUSH", "waitlist", "woken")); err != nil {
		t.Fatalf("RPUSH: %v", err)
	}

	select {
	case v := <-popped:
		if v != "woken" {
			t.Fatalf("expected 'woken', got %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("BLPOP never woke up")
	}
}

func TestXAddDuplicateID(t *testing.T) {
	pool, _ := startServer(t)

	if err := pool.Do(radix.Cmd(nil, "XADD", "mystream", "5-1", "field", "val")); err != nil {
		t.Fatalf("first XADD: %v", err)
	}
	err := pool.Do(radix.Cmd(nil, "XADD", "mystream", "5-1", "field", "val2"))
	if err == nil {
		t.Fatal("expected an error for a duplicate/non-increasing stream ID")
	}
}

func TestMultiExec(t *testing.T) {
	pool, _ := startServer(t)

	err := pool.Do(radix.WithConn("", func(conn radix.Conn) error {
		if err := conn.Do(radix.Cmd(nil, "MULTI")); err != nil {
			return err
		}
		if err := conn.Do(radix.Cmd(nil, "SET", "txkey", "1")); err != nil {
			return err
		}
		if err := conn.Do(radix.Cmd(nil, "INCR", "txkey")); err != nil {
			return err
		}
		return conn.Do(radix.Cmd(nil, "EXEC"))
	}))
	if err != nil {
		t.Fatalf("MULTI/EXEC: %v", err)
	}

	var val string
	if err := pool.Do(radix.Cmd(&val, "GET", "txkey")); err != nil {
		t.Fatalf("GET: %v", err)
	}
	if val != "2" {
		t.Fatalf("expected EXEC to have incremented txkey to 2, got %q", val)
	}
}

func TestConfiguredPortParam(t *testing.T) {
	// Exercises mcfg.SourceEnv (via a raw Populate call) against the same
	// "port"/"replicaof" params server.New registers, per spec.md §6.1's
	// requirement that both be settable by environment variable as well as
	// CLI flag.
	t.Setenv("REPLICAOF", "")
	cmp := m.RootComponent()
	server.New(cmp)
	if err := mcfg.Populate(cmp, &mcfg.SourceEnv{}); err != nil {
		t.Fatalf("populating from env: %v", err)
	}
}
