package httpx

import (
	"crypto/tls"
	"sync"
	"time"

	"github.com/ondrik/httpc/internal/obs"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// MaxConnectionsPerHost caps concurrent connections to any one
	// Endpoint. Defaults to 8 — see SPEC_FULL.md's resolution of the
	// max_connections Open Question.
	MaxConnectionsPerHost int
	StallTimeout          time.Duration
	DialTimeout           time.Duration
	TLSConfig             *tls.Config
	// PreferIOUring selects the Linux io_uring Transport for plain
	// (non-TLS) endpoints when built on linux; everywhere else, or when
	// io_uring cannot be set up, it logs a warning and falls back to
	// tcpTransport.
	PreferIOUring bool
	Logger        obs.Logger
	Meter         obs.Meter
	Hooks         []Hook
	// MaxAttempts bounds how many attempts a request gets, the first one
	// included; the hook chain is not run after the last of them. 1
	// means no retries.
	MaxAttempts int
}

// Client dispatches requests across a set of per-Endpoint pools: the Go
// analogue of the original's client, which keeps one connection_pool
// per distinct connection_details key behind a single mutex.
type Client struct {
	opts ClientOptions

	mu           sync.Mutex
	limitEnabled bool
	pools        map[Endpoint]*Pool
}

// NewClient builds a Client, filling in defaults for any zero-valued
// ClientOptions field.
func NewClient(opts ClientOptions) *Client {
	if opts.MaxConnectionsPerHost <= 0 {
		opts.MaxConnectionsPerHost = 8
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = obs.NopLogger{}
	}
	if opts.Meter == nil {
		opts.Meter = obs.NopMeter{}
	}
	return &Client{opts: opts, limitEnabled: true, pools: map[Endpoint]*Pool{}}
}

func (c *Client) poolFor(ep Endpoint) *Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[ep]; ok {
		return p
	}
	p := newPool(ep, c.opts.MaxConnectionsPerHost, c.limitEnabled, c.opts.StallTimeout, func() Transport {
		return c.newTransport(ep)
	}, c.opts.Logger, c.opts.Meter)
	c.pools[ep] = p
	return p
}

// MaxConnections changes the per-endpoint connection cap and propagates
// it to every pool the client has already created, matching the
// original's client::max_connections setter reaching into every live
// connection_pool.
func (c *Client) MaxConnections(n int) {
	c.mu.Lock()
	c.opts.MaxConnectionsPerHost = n
	pools := c.snapshotPools()
	c.mu.Unlock()
	for _, p := range pools {
		p.SetMaxConnections(n)
	}
}

// LimitConnections toggles whether the per-endpoint cap is enforced at
// all, propagated to every existing pool and every pool created from
// now on.
func (c *Client) LimitConnections(enabled bool) {
	c.mu.Lock()
	c.limitEnabled = enabled
	pools := c.snapshotPools()
	c.mu.Unlock()
	for _, p := range pools {
		p.SetLimitEnabled(enabled)
	}
}

// StallTimeout changes the idle-read/write timeout used by connections
// dialed from now on, propagated to every existing pool.
func (c *Client) StallTimeout(d time.Duration) {
	c.mu.Lock()
	c.opts.StallTimeout = d
	pools := c.snapshotPools()
	c.mu.Unlock()
	for _, p := range pools {
		p.SetStallTimeout(d)
	}
}

// snapshotPools must be called with c.mu held; it returns the current
// pools so callers can propagate a setting to them after releasing the
// lock, the same lock-then-unlock-then-notify shape Pool.Release uses.
func (c *Client) snapshotPools() []*Pool {
	pools := make([]*Pool, 0, len(c.pools))
	for _, p := range c.pools {
		pools = append(pools, p)
	}
	return pools
}

func (c *Client) newTransport(ep Endpoint) Transport {
	if ep.TLS {
		return newTLSTransport(c.opts.DialTimeout, c.opts.TLSConfig)
	}
	if c.opts.PreferIOUring {
		if t, err := newIOUringTransport(); err == nil {
			return t
		}
		c.opts.Logger.Logf(obs.Warn, "io_uring transport unavailable, falling back to plain TCP")
	}
	return newTCPTransport(c.opts.DialTimeout)
}

// Do dispatches req and returns its Response immediately; the status
// code and body only become available once Response.Completion
// resolves. Retry hooks run after each attempt's completion except the
// last one ClientOptions.MaxAttempts allows, and may substitute a
// replacement request for the next attempt; with the default
// MaxAttempts of 1 they never run.
func (c *Client) Do(req *Request) *Response {
	res := newResponse(req)
	go c.run(req, res)
	return res
}

// Request dispatches req, whose Method must already be set, and is the
// Go equivalent of the original's generic client::request(req). The
// verb helpers below (GET, POST, ...) are thin wrappers that also set
// Method.
func (c *Client) Request(req *Request) *Response {
	return c.Do(req)
}

func (c *Client) run(req *Request, res *Response) {
	cur := req
	for attempt := 1; ; attempt++ {
		ep, err := cur.Endpoint()
		if err != nil {
			res.completion.Fail(newError(KindResolve, Endpoint{}, "resolve endpoint", err))
			return
		}
		pool := c.poolFor(ep)
		attemptRes := newResponse(cur)
		if conn, err := pool.Next(cur.Context()); err != nil {
			attemptRes.completion.Fail(newError(KindConnect, ep, "acquire connection", err))
		} else {
			conn.Submit(cur, attemptRes)
		}
		code, err := attemptRes.Completion().Wait(cur.Context())

		if attempt >= c.opts.MaxAttempts || len(c.opts.Hooks) == 0 {
			res.commitFrom(attemptRes, code, err)
			return
		}
		next, retry := runHooks(c.opts.Hooks, cur, attemptRes, attempt)
		if !retry {
			res.commitFrom(attemptRes, code, err)
			return
		}
		c.opts.Meter.Counter("httpc_retry_total", 1, obs.Label{Key: "endpoint", Value: ep.String()})
		cur = next
	}
}

// GET issues req with its Method set to GET.
func (c *Client) GET(req *Request) *Response { return c.verb("GET", req) }

// HEAD issues req with its Method set to HEAD.
func (c *Client) HEAD(req *Request) *Response { return c.verb("HEAD", req) }

// OPTIONS issues req with its Method set to OPTIONS.
func (c *Client) OPTIONS(req *Request) *Response { return c.verb("OPTIONS", req) }

// POST issues req with its Method set to POST. req.Body and
// req.ContentLength, if any, must already be set by the caller.
func (c *Client) POST(req *Request) *Response { return c.verb("POST", req) }

// PUT issues req with its Method set to PUT.
func (c *Client) PUT(req *Request) *Response { return c.verb("PUT", req) }

func (c *Client) verb(method string, req *Request) *Response {
	req.Method = method
	return c.Do(req)
}

// Close shuts down every pool the client has created: idle connections
// are closed and requests still waiting for a connection fail with
// ErrPoolClosed. Exchanges already in flight run to completion, after
// which their connections are closed instead of reused.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
		p.Close()
	}
}
