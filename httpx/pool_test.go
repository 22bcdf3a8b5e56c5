package httpx

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ondrik/httpc/internal/obs"
)

// fakeTransport is a no-op Transport used to exercise Pool without a
// real socket. Its operations resolve immediately.
type fakeTransport struct {
	closed atomic.Bool
}

func (f *fakeTransport) Connect(ctx context.Context, ep Endpoint) *Future[bool] {
	r := NewFuture[bool]()
	r.Done(true)
	return r
}
func (f *fakeTransport) Write(data []byte) *Future[int] {
	r := NewFuture[int]()
	r.Done(len(data))
	return r
}
func (f *fakeTransport) ReadDelimited(delim string) *Future[string] {
	r := NewFuture[string]()
	r.Done("")
	return r
}
func (f *fakeTransport) ReadExact(n int) *Future[string] {
	r := NewFuture[string]()
	r.Done("")
	return r
}
func (f *fakeTransport) PostConnect() *Future[bool] {
	r := NewFuture[bool]()
	r.Done(true)
	return r
}
func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestPool(maxConns int) (*Pool, *int32) {
	var dials int32
	p := newPool(Endpoint{Scheme: "http", Host: "test", Port: 80}, maxConns, true, time.Minute, func() Transport {
		atomic.AddInt32(&dials, 1)
		return &fakeTransport{}
	}, obs.NopLogger{}, obs.NopMeter{})
	return p, &dials
}

func TestPool_NextDialsUntilCap(t *testing.T) {
	p, dials := newTestPool(2)
	ctx := context.Background()

	c1, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	c2, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if *dials != 2 {
		t.Fatalf("dials = %d, want 2", *dials)
	}
	_ = c1
	_ = c2
}

func TestPool_NextWaitsAtCapThenWakesOnRelease(t *testing.T) {
	p, _ := newTestPool(1)
	ctx := context.Background()

	c1, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	got := make(chan *Connection, 1)
	go func() {
		c, err := p.Next(ctx)
		if err != nil {
			t.Errorf("waiter Next: %v", err)
			return
		}
		got <- c
	}()

	time.Sleep(20 * time.Millisecond) // let the waiter register
	p.Release(c1)

	select {
	case c := <-got:
		if c != c1 {
			t.Fatalf("waiter got a different connection than the one released")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestPool_NextFailsWhenClosed(t *testing.T) {
	p, _ := newTestPool(1)
	p.Close()

	if _, err := p.Next(context.Background()); err != ErrPoolClosed {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}

func TestPool_RemoveDialsReplacementForWaiter(t *testing.T) {
	p, dials := newTestPool(1)
	ctx := context.Background()

	c1, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	got := make(chan *Connection, 1)
	go func() {
		c, err := p.Next(ctx)
		if err != nil {
			t.Errorf("waiter Next: %v", err)
			return
		}
		got <- c
	}()

	time.Sleep(20 * time.Millisecond)
	p.Remove(c1) // connection broke instead of being released cleanly

	select {
	case <-got:
		// a replacement connection was dialed and handed to the waiter
	case <-time.After(time.Second):
		t.Fatal("waiter was never served a replacement connection")
	}
	if *dials < 2 {
		t.Fatalf("dials = %d, want at least 2 (original + replacement)", *dials)
	}
}
