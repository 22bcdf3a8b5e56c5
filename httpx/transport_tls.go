package httpx

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"
)

// tlsTransport is the TLS-over-TCP Transport. Unlike tcpTransport, its
// PostConnect performs the handshake before the response read loop can
// start, exactly as the original's tls connection does in
// tls::post_connect: extend the stall timer, handshake, then (only on
// success) extend the timer again and call handle_response.
type tlsTransport struct {
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	ep          Endpoint
	conn        *tls.Conn
	br          *bufio.Reader
}

func newTLSTransport(dialTimeout time.Duration, cfg *tls.Config) *tlsTransport {
	return &tlsTransport{dialTimeout: dialTimeout, tlsConfig: cfg}
}

func (t *tlsTransport) Connect(ctx context.Context, ep Endpoint) *Future[bool] {
	f := NewFuture[bool]()
	t.ep = ep
	go func() {
		d := net.Dialer{Timeout: t.dialTimeout}
		raw, err := d.DialContext(ctx, "tcp", ep.Addr())
		if err != nil {
			f.Fail(newError(KindConnect, ep, "dial", err))
			return
		}
		cfg := t.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = ep.Host
		}
		t.conn = tls.Client(raw, cfg)
		t.br = bufio.NewReader(t.conn)
		f.Done(true)
	}()
	return f
}

func (t *tlsTransport) Write(data []byte) *Future[int] {
	return writeTo(t.conn, data)
}

func (t *tlsTransport) ReadDelimited(delim string) *Future[string] {
	return readDelimitedFrom(t.br, delim)
}

func (t *tlsTransport) ReadExact(n int) *Future[string] {
	return readExactFrom(t.br, n)
}

func (t *tlsTransport) PostConnect() *Future[bool] {
	f := NewFuture[bool]()
	go func() {
		if err := t.conn.HandshakeContext(context.Background()); err != nil {
			f.Fail(newError(KindHandshake, t.ep, "tls handshake", err))
			return
		}
		f.Done(true)
	}()
	return f
}

func (t *tlsTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
