package httpx

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"
)

// Transport is the pluggable byte-level connector a Connection drives.
// It mirrors connection's pure-virtual surface in the original one for
// one: connect, write, read_delimited (used for status/header lines),
// read (renamed ReadExact here, used for bodies), post_connect (where
// TLS performs its handshake before the response read loop starts), and
// close. tcpTransport, tlsTransport, and (on Linux) uringTransport are
// the concrete implementations.
type Transport interface {
	Connect(ctx context.Context, ep Endpoint) *Future[bool]
	Write(data []byte) *Future[int]
	ReadDelimited(delim string) *Future[string]
	ReadExact(n int) *Future[string]
	PostConnect() *Future[bool]
	Close() error
}

// tcpTransport is the plain, unencrypted Transport: net.Dial plus a
// bufio.Reader for delimited reads, but every operation here returns a
// Future instead of blocking its caller.
type tcpTransport struct {
	dialTimeout time.Duration
	conn        net.Conn
	br          *bufio.Reader
}

func newTCPTransport(dialTimeout time.Duration) *tcpTransport {
	return &tcpTransport{dialTimeout: dialTimeout}
}

func (t *tcpTransport) Connect(ctx context.Context, ep Endpoint) *Future[bool] {
	f := NewFuture[bool]()
	go func() {
		d := net.Dialer{Timeout: t.dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", ep.Addr())
		if err != nil {
			f.Fail(newError(KindConnect, ep, "dial", err))
			return
		}
		t.conn = conn
		t.br = bufio.NewReader(conn)
		f.Done(true)
	}()
	return f
}

func (t *tcpTransport) Write(data []byte) *Future[int] {
	return writeTo(t.conn, data)
}

func (t *tcpTransport) ReadDelimited(delim string) *Future[string] {
	return readDelimitedFrom(t.br, delim)
}

func (t *tcpTransport) ReadExact(n int) *Future[string] {
	return readExactFrom(t.br, n)
}

// PostConnect has nothing to negotiate for plain TCP; it resolves
// immediately, matching tcp::post_connect in the original, which arms
// the stall timer and starts the response read loop right away.
func (t *tcpTransport) PostConnect() *Future[bool] {
	f := NewFuture[bool]()
	f.Done(true)
	return f
}

func (t *tcpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// writeTo and the read helpers below are shared by every Transport that
// sits on top of a plain net.Conn/bufio.Reader pair (tcpTransport and
// tlsTransport), so the framing logic is written exactly once.

func writeTo(conn net.Conn, data []byte) *Future[int] {
	f := NewFuture[int]()
	go func() {
		n, err := conn.Write(data)
		if err != nil {
			f.Fail(&Error{Kind: KindIO, Message: "write", Err: err})
			return
		}
		f.Done(n)
	}()
	return f
}

func readDelimitedFrom(br *bufio.Reader, delim string) *Future[string] {
	f := NewFuture[string]()
	go func() {
		s, err := br.ReadString(delim[len(delim)-1])
		if err != nil {
			f.Fail(&Error{Kind: KindIO, Message: "read_delimited", Err: err})
			return
		}
		if len(s) < len(delim) || s[len(s)-len(delim):] != delim {
			f.Fail(&Error{Kind: KindFraming, Message: "short read in read_delimited"})
			return
		}
		f.Done(s[:len(s)-len(delim)])
	}()
	return f
}

func readExactFrom(br *bufio.Reader, n int) *Future[string] {
	f := NewFuture[string]()
	go func() {
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			f.Fail(&Error{Kind: KindIO, Message: "read_exact", Err: err})
			return
		}
		f.Done(string(buf))
	}()
	return f
}
