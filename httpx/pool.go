package httpx

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ondrik/httpc/internal/obs"
)

// waiter is a pending Pool.Next call blocked because the pool is at its
// connection cap; Release wakes the oldest one first.
type waiter struct {
	ch chan *Connection
}

// Pool manages every Connection to a single Endpoint: a bounded set of
// live connections, the idle subset available for immediate reuse, and
// a FIFO of waiters blocked at capacity. One mutex guards all of it,
// matching connection_pool::mutex_ in the original; continuations
// (waking a waiter, or after Remove, dialing a replacement) always run
// after the lock is released.
type Pool struct {
	ep           Endpoint
	newTransport func() Transport
	logger       obs.Logger
	meter        obs.Meter

	mu           sync.Mutex
	maxConns     int
	limitEnabled bool
	stallTimeout time.Duration
	total        int
	idle         []*Connection
	waiters      *list.List
	closed       bool
}

func newPool(ep Endpoint, maxConns int, limitEnabled bool, stallTimeout time.Duration, newTransport func() Transport, logger obs.Logger, meter obs.Meter) *Pool {
	return &Pool{
		ep:           ep,
		maxConns:     maxConns,
		limitEnabled: limitEnabled,
		stallTimeout: stallTimeout,
		newTransport: newTransport,
		logger:       logger,
		meter:        meter,
		waiters:      list.New(),
	}
}

// SetMaxConnections changes the per-endpoint connection cap, waking any
// waiters a higher cap now admits. Matches Client.max_connections being
// "propagated to all existing pools".
func (p *Pool) SetMaxConnections(n int) {
	p.mu.Lock()
	p.maxConns = n
	p.mu.Unlock()
	p.admitWaiters()
}

// SetLimitEnabled toggles whether maxConns is enforced at all. Matches
// Client.limit_connections being "propagated to all existing pools".
func (p *Pool) SetLimitEnabled(enabled bool) {
	p.mu.Lock()
	p.limitEnabled = enabled
	p.mu.Unlock()
	p.admitWaiters()
}

// SetStallTimeout changes the stall timeout connections dialed from now
// on will use.
func (p *Pool) SetStallTimeout(d time.Duration) {
	p.mu.Lock()
	p.stallTimeout = d
	p.mu.Unlock()
}

// admitWaiters dials fresh connections for queued waiters while the pool
// has room, the same "dial then feed to Release" chain Remove uses for a
// single replacement, repeated until capacity or the waiter queue runs
// out.
func (p *Pool) admitWaiters() {
	for {
		p.mu.Lock()
		if p.closed || p.waiters.Len() == 0 {
			p.mu.Unlock()
			return
		}
		if p.limitEnabled && p.total >= p.maxConns {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		nc, err := p.dial(context.Background())
		if err != nil {
			p.logger.Logf(obs.Warn, "replacement dial to %s failed: %v", p.ep, err)
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}
		p.Release(nc)
	}
}

// Next returns a Connection ready to serve a request: an idle one if
// available, a freshly dialed one if the pool is under its cap, or the
// result of waiting for one of those to become true. This is
// connection_pool::next translated to Go.
func (p *Pool) Next(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		p.meter.Counter("httpx_client_conn_reuse_total", 1, obs.Label{Key: "endpoint", Value: p.ep.String()})
		return c, nil
	}
	if !p.limitEnabled || p.total < p.maxConns {
		p.total++
		p.mu.Unlock()
		c, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, err
		}
		return c, nil
	}
	w := &waiter{ch: make(chan *Connection, 1)}
	el := p.waiters.PushBack(w)
	p.meter.Counter("httpc_pool_waiters_total", 1, obs.Label{Key: "endpoint", Value: p.ep.String()})
	p.mu.Unlock()

	select {
	case c := <-w.ch:
		if c == nil {
			return nil, ErrPoolClosed
		}
		return c, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.waiters.Remove(el)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *Pool) dial(ctx context.Context) (*Connection, error) {
	t := p.newTransport()
	if _, err := t.Connect(ctx, p.ep).Wait(ctx); err != nil {
		return nil, err
	}
	if _, err := t.PostConnect().Wait(ctx); err != nil {
		t.Close()
		return nil, err
	}
	p.logger.Logf(obs.Debug, "dialed new connection to %s", p.ep)
	p.meter.Counter("httpx_client_conn_dial_total", 1, obs.Label{Key: "endpoint", Value: p.ep.String()})
	p.mu.Lock()
	stallTimeout := p.stallTimeout
	p.mu.Unlock()
	return newConnection(p.ep, t, p, stallTimeout, p.logger, p.meter), nil
}

// Release returns c to the idle set, or hands it straight to the
// longest-waiting waiter if one is queued. The hand-off happens after
// the pool's lock is released, so the waiter's own code never runs
// while holding it.
func (p *Pool) Release(c *Connection) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.Close()
		return
	}
	var woken *waiter
	if el := p.waiters.Front(); el != nil {
		woken = p.waiters.Remove(el).(*waiter)
	} else {
		p.idle = append(p.idle, c)
	}
	p.mu.Unlock()

	if woken != nil {
		woken.ch <- c
	}
}

// Remove drops a closed connection from the pool's bookkeeping. If a
// waiter is still queued, it triggers a fresh dial that feeds straight
// into Release to wake that waiter once under the cap again, the same
// "remove() creates a replacement that wakes a waiter" chain
// connection_pool::remove drives in the original.
func (p *Pool) Remove(c *Connection) {
	p.mu.Lock()
	for i, ic := range p.idle {
		if ic == c {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	p.total--
	hasWaiter := p.waiters.Len() > 0
	closed := p.closed
	p.mu.Unlock()

	if !hasWaiter || closed {
		return
	}
	go func() {
		p.mu.Lock()
		p.total++
		p.mu.Unlock()
		nc, err := p.dial(context.Background())
		if err != nil {
			p.logger.Logf(obs.Warn, "replacement dial to %s failed: %v", p.ep, err)
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}
		p.Release(nc)
	}()
}

// Close shuts down every idle connection and fails any outstanding
// waiters. Connections mid-request close themselves through Remove when
// they finish, since Release on a closed pool closes rather than idles.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	for el := p.waiters.Front(); el != nil; el = el.Next() {
		el.Value.(*waiter).ch <- nil
	}
	p.waiters.Init()
	p.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
}
