package session_test

import (
	"net"
	"testing"
	"time"

	"github.com/mediocregopher/mediocredis/mtest/massert"
	"github.com/mediocregopher/mediocredis/resp"
	"github.com/mediocregopher/mediocredis/session"
	"github.com/mediocregopher/mediocredis/store"
)

type fakeMaster struct {
	propagated [][]byte
}

func (f *fakeMaster) Propagate(raw []byte) {
	f.propagated = append(f.propagated, raw)
}

func (f *fakeMaster) RegisterReplica(conn net.Conn) ([]byte, []byte) {
	return []byte("+FULLRESYNC abc 0\r\n"), []byte("$0\r\n")
}

func (f *fakeMaster) Ack(conn net.Conn, offset uint64) {}

func (f *fakeMaster) Wait(numReplicas int, timeout time.Duration) int {
	return 0
}

func newSession(t *testing.T, ks *store.Keyspace, master session.MasterHooks) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	s := session.New(server, ks, master, nil)
	go s.Run()
	return client
}

func encodeCmd(parts ...string) []byte {
	elems := make([][]byte, len(parts))
	for i, p := range parts {
		elems[i] = []byte(p)
	}
	return resp.BulkStringArray(elems)
}

func sendCmd(t *testing.T, conn net.Conn, parts ...string) {
	t.Helper()
	if _, err := conn.Write(encodeCmd(parts...)); err != nil {
		t.Fatalf("writing command: %v", err)
	}
}

func readReply(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out
}

func TestPingEcho(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "PING")
	massert.Fatal(t, massert.Equal([]byte("+PONG\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "ECHO", "hello")
	massert.Fatal(t, massert.Equal([]byte("$5\r\nhello\r\n"), readReply(t, conn)))
}

func TestSetGet(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "SET", "foo", "bar")
	massert.Fatal(t, massert.Equal([]byte("+OK\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "GET", "foo")
	massert.Fatal(t, massert.Equal([]byte("$3\r\nbar\r\n"), readReply(t, conn)))
}

func TestGetMissing(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "GET", "nope")
	massert.Fatal(t, massert.Equal([]byte("$-1\r\n"), readReply(t, conn)))
}

func TestIncrAndType(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "INCR", "counter")
	massert.Fatal(t, massert.Equal([]byte(":1\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "TYPE", "counter")
	massert.Fatal(t, massert.Equal([]byte("+string\r\n"), readReply(t, conn)))
}

func TestWrongType(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "LPUSH", "alist", "a")
	readReply(t, conn)

	sendCmd(t, conn, "GET", "alist")
	reply := readReply(t, conn)
	massert.Fatal(t, massert.Equal(
		[]byte("-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"),
		reply,
	))
}

func TestListOps(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "RPUSH", "mylist", "a", "b", "c")
	massert.Fatal(t, massert.Equal([]byte(":3\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "LRANGE", "mylist", "0", "-1")
	massert.Fatal(t, massert.Equal(
		[]byte("*3\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n"),
		readReply(t, conn),
	))
}

func TestLPushOrdering(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "LPUSH", "mylist", "a", "b", "c")
	readReply(t, conn)

	sendCmd(t, conn, "LRANGE", "mylist", "0", "-1")
	massert.Fatal(t, massert.Equal(
		[]byte("*3\r\n$1\r\nc\r\n$1\r\nb\r\n$1\r\na\r\n"),
		readReply(t, conn),
	))
}

func TestMultiExec(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "MULTI")
	massert.Fatal(t, massert.Equal([]byte("+OK\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "SET", "k", "1")
	massert.Fatal(t, massert.Equal([]byte("+QUEUED\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "INCR", "k")
	massert.Fatal(t, massert.Equal([]byte("+QUEUED\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "EXEC")
	massert.Fatal(t, massert.Equal([]byte("*2\r\n+OK\r\n:2\r\n"), readReply(t, conn)))
}

func TestDiscard(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "MULTI")
	readReply(t, conn)
	sendCmd(t, conn, "SET", "k", "1")
	readReply(t, conn)
	sendCmd(t, conn, "DISCARD")
	massert.Fatal(t, massert.Equal([]byte("+OK\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "GET", "k")
	massert.Fatal(t, massert.Equal([]byte("$-1\r\n"), readReply(t, conn)))
}

func TestExecWithoutMulti(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "EXEC")
	massert.Fatal(t, massert.Equal([]byte("-ERR EXEC without MULTI\r\n"), readReply(t, conn)))
}

func TestUnknownCommand(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "FROBNICATE")
	massert.Fatal(t, massert.Equal([]byte("-ERR unknown command 'frobnicate'\r\n"), readReply(t, conn)))
}

func TestXAddDuplicateID(t *testing.T) {
	conn := newSession(t, store.New(), nil)
	defer conn.Close()

	sendCmd(t, conn, "XADD", "s", "1-1", "field", "value")
	massert.Fatal(t, massert.Equal([]byte("$3\r\n1-1\r\n"), readReply(t, conn)))

	sendCmd(t, conn, "XADD", "s", "1-1", "field", "value")
	massert.Fatal(t, massert.Equal(
		[]byte("-ERR The ID specified in XADD is equal or smaller than the target stream top item\r\n"),
		readReply(t, conn),
	))
}

func TestPropagatesWritesOnly(t *testing.T) {
	master := &fakeMaster{}
	conn := newSession(t, store.New(), master)
	defer conn.Close()

	sendCmd(t, conn, "SET", "foo", "bar")
	readReply(t, conn)

	sendCmd(t, conn, "GET", "foo")
	readReply(t, conn)

	massert.Fatal(t, massert.Len(master.propagated, 1))
}

func TestExecPropagatesOnlyWrites(t *testing.T) {
	master := &fakeMaster{}
	conn := newSession(t, store.New(), master)
	defer conn.Close()

	sendCmd(t, conn, "MULTI")
	readReply(t, conn)
	sendCmd(t, conn, "SET", "k", "v")
	readReply(t, conn)
	sendCmd(t, conn, "GET", "k")
	readReply(t, conn)
	sendCmd(t, conn, "EXEC")
	readReply(t, conn)

	massert.Fatal(t, massert.Len(master.propagated, 1))
}

func TestBLPopAcrossConnections(t *testing.T) {
	ks := store.New()
	connA := newSession(t, ks, nil)
	defer connA.Close()
	connB := newSession(t, ks, nil)
	defer connB.Close()

	done := make(chan []byte, 1)
	go func() {
		sendCmd(t, connA, "BLPOP", "mylist", "0")
		done <- readReply(t, connA)
	}()

	time.Sleep(50 * time.Millisecond)
	sendCmd(t, connB, "RPUSH", "mylist", "v1")
	readReply(t, connB)

	select {
	case reply := <-done:
		massert.Fatal(t, massert.Equal(
			[]byte("*2\r\n$6\r\nmylist\r\n$2\r\nv1\r\n"),
			reply,
		))
	case <-time.After(2 * time.Second):
		t.Fatal("BLPOP never woke up")
	}
}
