package server

import (
	"bufio"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/muurk/postoffice/internal/logging"
	"go.uber.org/zap"
)

// Conn is one accepted client connection. It is owned by the goroutine the
// server started for it; collaborators only see it inside Greet and Process.
type Conn struct {
	id     uint64
	port   int
	conn   net.Conn
	reader *bufio.Reader
	logger *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

func newConn(id uint64, port int, nc net.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		id:     id,
		port:   port,
		conn:   nc,
		reader: bufio.NewReader(nc),
		logger: logging.OrNop(logger).With(logging.ConnID(id), logging.Port(port)),
	}
}

// ID returns the identity assigned at accept time. IDs are unique among the
// connections of one Server.
func (c *Conn) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the server side address of the connection.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Logger returns a logger tagged with this connection's id and server port.
func (c *Conn) Logger() *zap.Logger {
	return c.logger
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close closes the connection. Only the first call does any work; later
// calls return nil.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})
	return err
}

// Respond writes text to the client verbatim; callers add their own line
// terminators. A failed write is logged and closes the connection, so the
// session ends on the next read. No error is returned.
func (c *Conn) Respond(text string) {
	c.logger.Debug("Sending response", logging.Text(text))

	if _, err := io.WriteString(c.conn, text); err != nil {
		c.logger.Error("Failed to write response", zap.Error(err))
		_ = c.Close()
	}
}

// readLine blocks until a full line, EOF, or a read error.
func (c *Conn) readLine() (string, error) {
	return c.reader.ReadString('\n')
}
