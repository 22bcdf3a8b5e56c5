//go:build !linux

package httpx

import "errors"

// newIOUringTransport is only implemented on linux (see
// transport_uring_linux.go); elsewhere Client.newTransport falls back
// to tcpTransport when it sees this error.
func newIOUringTransport() (Transport, error) {
	return nil, errors.New("httpx: io_uring transport is only available on linux")
}
