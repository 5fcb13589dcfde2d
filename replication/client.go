package replication

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/merr"
	"github.com/mediocregopher/mediocredis/mlog"
	"github.com/mediocregopher/mediocredis/resp"
	"github.com/mediocregopher/mediocredis/session"
	"github.com/mediocregopher/mediocredis/store"
)

// Client drives the replica side of spec.md §4.5: the PING/REPLCONF/PSYNC
// handshake against a master, followed by the propagation-apply loop that
// applies every command streamed from the master to a local Keyspace while
// answering REPLCONF GETACK probes with REPLCONF ACK <bytes_processed>.
type Client struct {
	cmp        *mcmp.Component
	masterAddr string
	ownPort    int
	keyspace   *store.Keyspace

	processedBytes uint64
}

// NewClient returns a Client that, once Run, replicates masterAddr
// ("host:port") into ks, advertising ownPort as this replica's own listening
// port during the handshake.
func NewClient(cmp *mcmp.Component, masterAddr string, ownPort int, ks *store.Keyspace) *Client {
	return &Client{cmp: cmp, masterAddr: masterAddr, ownPort: ownPort, keyspace: ks}
}

func (c *Client) logger() *mlog.Logger {
	if c.cmp == nil {
		return mlog.DefaultLogger
	}
	return mlog.From(c.cmp)
}

// Run connects to the master, performs the handshake, and then blocks
// applying the propagation stream until conn errors or is closed. It is
// meant to be run in its own goroutine for the lifetime of the process.
func (c *Client) Run() error {
	conn, err := net.Dial("tcp", c.masterAddr)
	if err != nil {
		return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
	}
	defer conn.Close()

	br := bufio.NewReader(conn)
	if err := c.handshake(conn, br); err != nil {
		return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
	}
	c.logger().Info("replica handshake complete", mctx.Annotated("masterAddr", c.masterAddr))

	// br may have buffered bytes past the RDB payload's end (its own reads
	// from conn come in arbitrarily large chunks); drain whatever it already
	// holds into the apply loop's buffer so nothing pulled off the wire
	// during the handshake is lost.
	seed := make([]byte, br.Buffered())
	if _, err := io.ReadFull(br, seed); err != nil {
		return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
	}

	return c.applyLoop(conn, seed)
}

// handshake performs the five-step sequence of spec.md §4.5's "Replica
// side": PING, REPLCONF listening-port, REPLCONF capa psync2, PSYNC ? -1,
// then discards the RDB bulk payload that follows FULLRESYNC.
func (c *Client) handshake(conn net.Conn, r *bufio.Reader) error {
	if err := writeCmd(conn, "PING"); err != nil {
		return err
	}
	if _, err := readReplyLine(r); err != nil {
		return fmt.Errorf("PING: %w", err)
	}

	if err := writeCmd(conn, "REPLCONF", "listening-port", strconv.Itoa(c.ownPort)); err != nil {
		return err
	}
	if _, err := readReplyLine(r); err != nil {
		return fmt.Errorf("REPLCONF listening-port: %w", err)
	}

	if err := writeCmd(conn, "REPLCONF", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := readReplyLine(r); err != nil {
		return fmt.Errorf("REPLCONF capa psync2: %w", err)
	}

	if err := writeCmd(conn, "PSYNC", "?", "-1"); err != nil {
		return err
	}
	line, err := readReplyLine(r)
	if err != nil {
		return fmt.Errorf("PSYNC: %w", err)
	}
	if !strings.HasPrefix(line, "FULLRESYNC") {
		return fmt.Errorf("PSYNC: expected FULLRESYNC, got %q", line)
	}

	return discardRDB(r)
}

// applyLoop is the post-handshake read loop: it decodes commands the same
// way a Session does, applies write commands to c.keyspace via
// session.ApplyReplicated, and answers REPLCONF GETACK * with
// REPLCONF ACK <bytes_processed> -- reporting the offset as it stood before
// GETACK's own bytes are counted, per spec.md §9 open question 1.
func (c *Client) applyLoop(conn net.Conn, seed []byte) error {
	buf := append([]byte(nil), seed...)
	tmp := make([]byte, 4096)

	for {
		for {
			args, n, err := resp.Decode(buf)
			if err != nil {
				return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
			}
			if args == nil && n == 0 {
				break
			}
			buf = buf[n:]
			if args == nil {
				continue
			}

			name := strings.ToUpper(string(args[0]))
			if name == "REPLCONF" && len(args) >= 2 && strings.EqualFold(string(args[1]), "GETACK") {
				ack := resp.BulkStringArray([][]byte{
					[]byte("REPLCONF"), []byte("ACK"),
					[]byte(strconv.FormatUint(c.processedBytes, 10)),
				})
				if _, err := conn.Write(ack); err != nil {
					return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
				}
				c.processedBytes += uint64(n)
				continue
			}

			if err := session.ApplyReplicated(c.keyspace, name, args[1:]); err != nil {
				c.logger().Warn("error applying replicated command", mctx.Annotated(
					"cmd", name, "err", err,
				))
			}
			c.processedBytes += uint64(n)
		}

		m, err := conn.Read(tmp)
		if err != nil {
			return merr.Wrap(err, mctx.Annotated("masterAddr", c.masterAddr))
		}
		buf = append(buf, tmp[:m]...)
	}
}

// writeCmd encodes parts as a RESP command array and writes it to conn.
func writeCmd(conn net.Conn, parts ...string) error {
	elems := make([][]byte, len(parts))
	for i, p := range parts {
		elems[i] = []byte(p)
	}
	_, err := conn.Write(resp.BulkStringArray(elems))
	return err
}

// readReplyLine reads one CRLF-terminated reply line and strips its leading
// type byte. It handles only the simple-string/error shapes the handshake's
// PING/REPLCONF/PSYNC replies take -- the steady-state command stream uses
// resp.Decode instead, which handles the array-of-bulk-strings shape.
func readReplyLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return "", fmt.Errorf("empty reply line")
	}
	switch line[0] {
	case '+':
		return line[1:], nil
	case '-':
		return "", fmt.Errorf("master replied with error: %s", line[1:])
	default:
		return "", fmt.Errorf("unexpected reply prefix %q", line[:1])
	}
}

// discardRDB reads and discards the "$<len>\r\n<bytes>" RDB bulk string that
// follows FULLRESYNC -- deliberately without a trailing CRLF, per spec.md
// §4.5/§6's one documented RESP deviation.
func discardRDB(r *bufio.Reader) error {
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != '$' {
		return fmt.Errorf("expected RDB bulk string, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return fmt.Errorf("invalid RDB length %q", line[1:])
	}
	_, err = io.CopyN(io.Discard, r, int64(n))
	return err
}
