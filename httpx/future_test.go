package httpx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_DoneDeliversValue(t *testing.T) {
	f := NewFuture[int]()
	go f.Done(42)

	v, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != 42 {
		t.Fatalf("value = %d, want 42", v)
	}
	if !f.IsReady() {
		t.Fatalf("IsReady = false after Done")
	}
}

func TestFuture_FailIsSticky(t *testing.T) {
	f := NewFuture[int]()
	boom := errors.New("boom")
	f.Fail(boom)
	f.Done(1) // must be ignored, f is already settled

	if !f.IsFailed() {
		t.Fatalf("IsFailed = false")
	}
	_, err := f.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestFuture_OnDoneRunsForAlreadySettled(t *testing.T) {
	f := NewFuture[string]()
	f.Done("ready")

	got := make(chan string, 1)
	f.OnDone(func(v string) { got <- v })

	select {
	case v := <-got:
		if v != "ready" {
			t.Fatalf("v = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDone callback never ran")
	}
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestThen_ChainsSuccessfully(t *testing.T) {
	f := NewFuture[int]()
	g := Then(f, func(v int) (string, error) {
		return "got-" + string(rune('0'+v)), nil
	})
	go f.Done(5)

	v, err := g.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != "got-5" {
		t.Fatalf("v = %q", v)
	}
}

func TestThen_PropagatesFailure(t *testing.T) {
	f := NewFuture[int]()
	g := Then(f, func(v int) (int, error) { return v, nil })
	boom := errors.New("boom")
	go f.Fail(boom)

	_, err := g.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
