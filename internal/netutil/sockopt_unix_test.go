//go:build unix

package netutil

import (
	"net"
	"testing"
)

func TestSetRecvBuf(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	tcpLn := ln.(*net.TCPListener)

	before, err := RecvBuf(tcpLn)
	if err != nil {
		t.Fatalf("RecvBuf() error = %v", err)
	}
	if before <= 0 {
		t.Fatalf("RecvBuf() = %d, want > 0", before)
	}

	// Request something small enough that no sane rmem_max clamps it away
	// and different from the usual defaults.
	const want = 64 * 1024
	if err := SetRecvBuf(tcpLn, want); err != nil {
		t.Fatalf("SetRecvBuf() error = %v", err)
	}

	after, err := RecvBuf(tcpLn)
	if err != nil {
		t.Fatalf("RecvBuf() error = %v", err)
	}
	if after < want {
		t.Errorf("RecvBuf() after set = %d, want >= %d", after, want)
	}
}

func TestSetRecvBuf_ClosedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tcpLn := ln.(*net.TCPListener)
	_ = ln.Close()

	if err := SetRecvBuf(tcpLn, 1024*1024); err == nil {
		t.Error("SetRecvBuf() on closed listener should fail")
	}
}
