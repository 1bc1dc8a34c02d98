//go:build unix

// Package netutil holds small socket option helpers used by the server.
package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SetRecvBuf requests an SO_RCVBUF of n bytes on the socket behind c.
// Accepted connections inherit the size from the listening socket.
func SetRecvBuf(c syscall.Conn, n int) error {
	return control(c, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, n)
	})
}

// RecvBuf reports the effective SO_RCVBUF of the socket behind c.
// Linux reports double the requested value to account for bookkeeping.
func RecvBuf(c syscall.Conn) (int, error) {
	var n int
	err := control(c, func(fd int) error {
		var err error
		n, err = unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
		return err
	})
	return n, err
}

func control(c syscall.Conn, fn func(fd int) error) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := raw.Control(func(fd uintptr) {
		opErr = fn(int(fd))
	}); err != nil {
		return err
	}
	return opErr
}
