//go:build linux

package httpx

import (
	"bytes"
	"context"
	"net"
	"os"
	"syscall"

	"github.com/godzie44/go-uring/uring"
)

// uringTransport drives the socket through a single io_uring instance
// instead of blocking syscalls, grounded directly on TcpTransportV2 from
// the retrieved io_uring HTTP client (see SPEC_FULL.md's DOMAIN STACK
// table). It implements the same Transport contract as tcpTransport;
// Client picks it when ClientOptions.PreferIOUring is set and the build
// is linux.
type uringTransport struct {
	ring *uring.Ring
	fd   int
	file *os.File
	ep   Endpoint

	// readBuf holds bytes the kernel handed back ahead of what
	// ReadDelimited/ReadExact have consumed so far: io_uring completions
	// arrive in whatever chunk size happened to be ready, not in the
	// sizes callers ask to read.
	readBuf []byte
}

func newUringTransport() (*uringTransport, error) {
	ring, err := uring.New(32)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Message: "io_uring init", Err: err}
	}
	return &uringTransport{ring: ring, fd: -1}, nil
}

func newIOUringTransport() (Transport, error) {
	return newUringTransport()
}

func (t *uringTransport) Connect(ctx context.Context, ep Endpoint) *Future[bool] {
	f := NewFuture[bool]()
	t.ep = ep
	go func() {
		addr, err := net.ResolveTCPAddr("tcp", ep.Addr())
		if err != nil {
			f.Fail(newError(KindResolve, ep, "resolve", err))
			return
		}
		fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
		if err != nil {
			f.Fail(newError(KindConnect, ep, "socket", err))
			return
		}
		var sa syscall.Sockaddr
		if ip4 := addr.IP.To4(); ip4 != nil {
			sa4 := &syscall.SockaddrInet4{Port: addr.Port}
			copy(sa4.Addr[:], ip4)
			sa = sa4
		} else {
			sa6 := &syscall.SockaddrInet6{Port: addr.Port}
			copy(sa6.Addr[:], addr.IP)
			sa = sa6
		}
		if err := syscall.Connect(fd, sa); err != nil {
			syscall.Close(fd)
			f.Fail(newError(KindConnect, ep, "connect", err))
			return
		}
		if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
			syscall.Close(fd)
			f.Fail(newError(KindConnect, ep, "setsockopt TCP_NODELAY", err))
			return
		}
		t.fd = fd
		t.file = os.NewFile(uintptr(fd), "socket")
		f.Done(true)
	}()
	return f
}

func (t *uringTransport) Write(data []byte) *Future[int] {
	f := NewFuture[int]()
	go func() {
		total := 0
		for total < len(data) {
			sqe := uring.Write(t.file.Fd(), data[total:], uint64(total))
			if err := t.ring.QueueSQE(sqe, 0, 0); err != nil {
				f.Fail(&Error{Kind: KindIO, Message: "queue write", Err: err})
				return
			}
			if _, err := t.ring.Submit(); err != nil {
				f.Fail(&Error{Kind: KindIO, Message: "submit write", Err: err})
				return
			}
			cqe, err := t.ring.WaitCQEvents(1)
			if err != nil {
				f.Fail(&Error{Kind: KindIO, Message: "wait write completion", Err: err})
				return
			}
			if cerr := cqe.Error(); cerr != nil {
				t.ring.SeenCQE(cqe)
				f.Fail(&Error{Kind: KindIO, Message: "write", Err: cerr})
				return
			}
			n := int(cqe.Res)
			t.ring.SeenCQE(cqe)
			if n <= 0 {
				f.Fail(&Error{Kind: KindIO, Message: "connection closed during write"})
				return
			}
			total += n
		}
		f.Done(total)
	}()
	return f
}

func (t *uringTransport) fillAtLeast(n int) error {
	for len(t.readBuf) < n {
		buf := make([]byte, 4096)
		sqe := uring.Read(t.file.Fd(), buf, 0)
		if err := t.ring.QueueSQE(sqe, 0, 0); err != nil {
			return &Error{Kind: KindIO, Message: "queue read", Err: err}
		}
		if _, err := t.ring.Submit(); err != nil {
			return &Error{Kind: KindIO, Message: "submit read", Err: err}
		}
		cqe, err := t.ring.WaitCQEvents(1)
		if err != nil {
			return &Error{Kind: KindIO, Message: "wait read completion", Err: err}
		}
		if cerr := cqe.Error(); cerr != nil {
			t.ring.SeenCQE(cqe)
			return &Error{Kind: KindIO, Message: "read", Err: cerr}
		}
		r := int(cqe.Res)
		t.ring.SeenCQE(cqe)
		if r == 0 {
			return &Error{Kind: KindIO, Message: "connection closed by peer"}
		}
		t.readBuf = append(t.readBuf, buf[:r]...)
	}
	return nil
}

func (t *uringTransport) ReadExact(n int) *Future[string] {
	f := NewFuture[string]()
	go func() {
		if err := t.fillAtLeast(n); err != nil {
			f.Fail(err)
			return
		}
		s := string(t.readBuf[:n])
		t.readBuf = t.readBuf[n:]
		f.Done(s)
	}()
	return f
}

func (t *uringTransport) ReadDelimited(delim string) *Future[string] {
	f := NewFuture[string]()
	d := []byte(delim)
	go func() {
		for {
			if i := bytes.Index(t.readBuf, d); i >= 0 {
				s := string(t.readBuf[:i])
				t.readBuf = t.readBuf[i+len(d):]
				f.Done(s)
				return
			}
			if err := t.fillAtLeast(len(t.readBuf) + 1); err != nil {
				f.Fail(err)
				return
			}
		}
	}()
	return f
}

// PostConnect has nothing to negotiate for a plain socket.
func (t *uringTransport) PostConnect() *Future[bool] {
	f := NewFuture[bool]()
	f.Done(true)
	return f
}

func (t *uringTransport) Close() error {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	t.fd = -1
	if t.ring != nil {
		t.ring.Close()
	}
	return nil
}
