// Package httpx is an asynchronous HTTP/1.1 client with a per-endpoint
// connection pool, pluggable byte-level transports (plain TCP, TLS, and
// on Linux an io_uring-backed socket), and a future-based result model.
//
// Highlights
//   - Future[T]: a single-assignment result cell with chained
//     continuations (OnDone/OnFail/OnCancel, Then), the async backbone
//     every other component is built on.
//   - Connection: one Transport and the HTTP/1.1 protocol state machine
//     driving it — write, start reading the response immediately, parse
//     status line and headers, decide body framing.
//   - Pool: a bounded, per-Endpoint set of connections with idle reuse,
//     FIFO waiters at capacity, and replacement dialing on connection
//     loss.
//   - Client: dispatches requests across one Pool per Endpoint and runs
//     a chained retry hook over each attempt's completion but the last
//     one ClientOptions.MaxAttempts allows.
//   - Observability: plug-in Logger and Meter interfaces.
//
// Quick start:
//
//	c := httpx.NewClient(httpx.ClientOptions{})
//	req, _ := httpx.FromURI("GET", "http://127.0.0.1:8080/")
//	res := c.GET(req)
//	code, err := res.Completion().Wait(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer res.Body.Close()
//	b, _ := io.ReadAll(res.Body)
//	fmt.Println(code, string(b))
package httpx
