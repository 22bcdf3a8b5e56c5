package httpx

import (
	"context"
	"sync"
)

// Future is a single-assignment result cell that settles to a value, an
// error, or cancellation exactly once. It is the Go realization of the
// cps::future<T> chain the original client builds every connection and
// pool operation on top of: create it, hand it to the caller, and later
// call Done, Fail, or Cancel from whichever goroutine finishes the work.
type Future[T any] struct {
	mu        sync.Mutex
	ready     chan struct{}
	done      bool
	failed    bool
	cancelled bool
	value     T
	err       error
	onDone    []func(T)
	onFail    []func(error)
	onCancel  []func()
}

// NewFuture returns an unsettled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{ready: make(chan struct{})}
}

// Done settles f successfully with v. A future already settled is left
// unchanged, matching is_ready() guards around done()/fail() in the
// original.
func (f *Future[T]) Done(v T) {
	f.settle(func() { f.done = true; f.value = v }, func() {
		for _, cb := range f.onDone {
			cb(v)
		}
	})
}

// Fail settles f with err.
func (f *Future[T]) Fail(err error) {
	f.settle(func() { f.failed = true; f.err = err }, func() {
		for _, cb := range f.onFail {
			cb(err)
		}
	})
}

// Cancel settles f as cancelled.
func (f *Future[T]) Cancel() {
	f.settle(func() { f.cancelled = true }, func() {
		for _, cb := range f.onCancel {
			cb()
		}
	})
}

func (f *Future[T]) settle(mark func(), notify func()) {
	f.mu.Lock()
	if f.isSettledLocked() {
		f.mu.Unlock()
		return
	}
	mark()
	close(f.ready)
	f.mu.Unlock()
	// Continuations never run while holding the future's lock and never
	// run on the settling goroutine directly, so a continuation that
	// attaches more work to this future (or blocks) can't deadlock the
	// caller that settled it.
	go notify()
}

func (f *Future[T]) isSettledLocked() bool {
	return f.done || f.failed || f.cancelled
}

// IsReady reports whether f has settled, in any of its three terminal
// states.
func (f *Future[T]) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSettledLocked()
}

// IsFailed reports whether f settled with an error.
func (f *Future[T]) IsFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// IsCancelled reports whether f settled as cancelled.
func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// OnDone registers a continuation run once f settles successfully. If f
// has already settled successfully, cb runs immediately (on a new
// goroutine, for the same reason settle() never calls out inline).
func (f *Future[T]) OnDone(cb func(T)) *Future[T] {
	f.mu.Lock()
	if f.done {
		v := f.value
		f.mu.Unlock()
		go cb(v)
		return f
	}
	if f.isSettledLocked() {
		f.mu.Unlock()
		return f
	}
	f.onDone = append(f.onDone, cb)
	f.mu.Unlock()
	return f
}

// OnFail registers a continuation run once f settles with an error.
func (f *Future[T]) OnFail(cb func(error)) *Future[T] {
	f.mu.Lock()
	if f.failed {
		err := f.err
		f.mu.Unlock()
		go cb(err)
		return f
	}
	if f.isSettledLocked() {
		f.mu.Unlock()
		return f
	}
	f.onFail = append(f.onFail, cb)
	f.mu.Unlock()
	return f
}

// OnCancel registers a continuation run once f settles as cancelled.
func (f *Future[T]) OnCancel(cb func()) *Future[T] {
	f.mu.Lock()
	if f.cancelled {
		f.mu.Unlock()
		go cb()
		return f
	}
	if f.isSettledLocked() {
		f.mu.Unlock()
		return f
	}
	f.onCancel = append(f.onCancel, cb)
	f.mu.Unlock()
	return f
}

// Wait blocks until f settles or ctx is done, whichever comes first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		var zero T
		switch {
		case f.failed:
			return zero, f.err
		case f.cancelled:
			return zero, context.Canceled
		default:
			return f.value, nil
		}
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains a transformation onto f: the returned Future settles once
// f settles and fn has run on its value, propagating failure and
// cancellation untouched. This is the Go stand-in for ->then(...) on the
// original's cps::future<T>.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := NewFuture[U]()
	f.OnDone(func(v T) {
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Done(u)
	})
	f.OnFail(out.Fail)
	f.OnCancel(out.Cancel)
	return out
}
