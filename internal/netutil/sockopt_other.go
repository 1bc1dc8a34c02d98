//go:build !unix

// Package netutil holds small socket option helpers used by the server.
package netutil

import (
	"errors"
	"syscall"
)

// SetRecvBuf is not supported on this platform; callers treat the error as
// advisory and keep the OS default.
func SetRecvBuf(c syscall.Conn, n int) error {
	return errors.ErrUnsupported
}

// RecvBuf is not supported on this platform.
func RecvBuf(c syscall.Conn) (int, error) {
	return 0, errors.ErrUnsupported
}
