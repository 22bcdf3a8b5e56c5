package httpx

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

// TestClient_PartialBodyThenCloseFailsCompletion exercises the scenario
// the body-buffering redesign exists for: a server that advertises a
// Content-Length larger than what it actually sends, then closes. If
// completion resolved as soon as the header block was framed, this
// would look like a clean 200; since it now only resolves once the
// body has been fully collected, the short body instead fails
// completion with an IO error.
func TestClient_PartialBodyThenCloseFailsCompletion(t *testing.T) {
	addr, stop := startRawServer(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		readRequestLine(t, br)
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\npartial")
	})
	defer stop()

	c := NewClient(ClientOptions{})
	defer c.Close()

	req, err := FromURI("GET", "http://"+addr+"/")
	if err != nil {
		t.Fatalf("FromURI: %v", err)
	}
	res := c.GET(req)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Completion().Wait(ctx)
	if err == nil {
		t.Fatal("Completion: want error for truncated body, got nil")
	}
	if !IsKind(err, KindIO) {
		t.Fatalf("Completion err = %v, want KindIO", err)
	}
}

// TestConnection_StallTimerFailsCompletionWithTimeoutKind checks that a
// connection which stops hearing from the peer mid-response fails the
// in-flight response with KindTimeout rather than surfacing the close
// as a generic IO error.
func TestConnection_StallTimerFailsCompletionWithTimeoutKind(t *testing.T) {
	unblock := make(chan struct{})
	addr, stop := startRawServer(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		readRequestLine(t, br)
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nhi")
		<-unblock
	})
	defer stop()
	defer close(unblock)

	c := NewClient(ClientOptions{StallTimeout: 50 * time.Millisecond})
	defer c.Close()

	req, err := FromURI("GET", "http://"+addr+"/")
	if err != nil {
		t.Fatalf("FromURI: %v", err)
	}
	res := c.GET(req)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Completion().Wait(ctx)
	if err == nil {
		t.Fatal("Completion: want timeout error, got nil")
	}
	if !IsKind(err, KindTimeout) {
		t.Fatalf("Completion err = %v, want KindTimeout", err)
	}
}
