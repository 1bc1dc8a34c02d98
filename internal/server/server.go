package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/muurk/postoffice/internal/logging"
	"github.com/muurk/postoffice/internal/netutil"
	"go.uber.org/zap"
)

// DefaultRecvBufferSize is the SO_RCVBUF requested for the listening socket
// when Config.RecvBufferSize is zero. A large buffer gives slow handlers
// headroom against bursty clients.
const DefaultRecvBufferSize = 1024 * 1024

// DefaultName tags log lines when Config.Name is empty.
const DefaultName = "postoffice"

// ErrNilHandler is returned by New when no Handler is supplied.
var ErrNilHandler = errors.New("server: nil handler")

// Config holds the server configuration
type Config struct {
	Name           string      // Logged with every entry (e.g. "pop3", "smtp")
	Host           string      // Interface to bind (empty = all interfaces)
	Port           int         // TCP port (0 = OS-assigned, see Server.Port)
	Logger         *zap.Logger // Log sink (nil = discard)
	RecvBufferSize int         // SO_RCVBUF request (0 = DefaultRecvBufferSize, <0 = leave OS default)
}

// Server accepts TCP connections and runs one goroutine per connection that
// greets the client and feeds it input lines through a Handler.
type Server struct {
	name     string
	listener *net.TCPListener
	port     int
	logger   *zap.Logger
	handler  Handler

	nextID atomic.Uint64
	active atomic.Int64
}

// New binds the listening socket and returns a server ready to Run.
// A bind failure is returned as an error; nothing is retried.
func New(config *Config, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if config == nil {
		config = &Config{}
	}

	name := config.Name
	if name == "" {
		name = DefaultName
	}
	logger := logging.OrNop(config.Logger).With(zap.String(logging.KeyServer, name))

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("unexpected listener type %T", ln)
	}
	port := tcpLn.Addr().(*net.TCPAddr).Port

	// Best effort; the OS default stays in place when this fails.
	bufSize := config.RecvBufferSize
	if bufSize == 0 {
		bufSize = DefaultRecvBufferSize
	}
	if bufSize > 0 {
		_ = netutil.SetRecvBuf(tcpLn, bufSize)
	}

	logger.Info("Server listening",
		logging.Port(port),
		zap.String("addr", tcpLn.Addr().String()),
	)

	return &Server{
		name:     name,
		listener: tcpLn,
		port:     port,
		logger:   logger,
		handler:  handler,
	}, nil
}

// Name returns the name used to tag log entries.
func (s *Server) Name() string {
	return s.name
}

// Port returns the bound TCP port, resolved when Config.Port was 0.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConnections returns the number of connections currently being served.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

// Run accepts connections until the listener fails. Each connection is
// served on its own goroutine; Run never waits for them. The returned error
// wraps net.ErrClosed after Close.
func (s *Server) Run() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept failed: %w", err)
		}

		go s.handleConnection(conn)
	}
}

// Close stops accepting connections. Connections already being served are
// left alone and run until their clients or handlers end them.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Respond writes text to c. It behaves exactly like Conn.Respond and exists
// for collaborators that keep a reference to the Server rather than calling
// methods on the Conn they were handed.
func (s *Server) Respond(c *Conn, text string) {
	c.Respond(text)
}

// handleConnection runs one connection from accept to close. Every failure
// is contained here.
func (s *Server) handleConnection(nc net.Conn) {
	c := newConn(s.nextID.Add(1), s.port, nc, s.logger)
	remoteAddr := c.RemoteAddr()

	s.active.Add(1)
	defer s.active.Add(-1)

	if notifier, ok := s.handler.(CloseNotifier); ok {
		defer s.notifyClose(notifier, c)
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(c, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := s.serve(c); err != nil {
		s.fail(c, err)
		return
	}

	_ = c.Close()
	c.logger.Info("Connection closed", logging.RemoteAddr(remoteAddr))
}

// serve greets the client and then reads and dispatches lines until the
// connection is closed or the client goes away.
func (s *Server) serve(c *Conn) error {
	c.logger.Info("Connection accepted", logging.RemoteAddr(c.RemoteAddr()))

	if err := s.handler.Greet(c); err != nil {
		return fmt.Errorf("greet failed: %w", err)
	}

	for !c.Closed() {
		line, err := c.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				if c.Closed() || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("read failed: %w", err)
			}
			if line == "" {
				return nil
			}
		}

		command := ParseCommand(line)
		c.logger.Debug("Received line", logging.Line(line))

		if perr := s.handler.Process(c, command, line); perr != nil {
			return fmt.Errorf("process %q failed: %w", command, perr)
		}

		// A final unterminated line was delivered; the client is gone.
		if err != nil {
			return nil
		}
	}

	return nil
}

// notifyClose runs the OnClose hook behind its own recover; it fires after
// the connection boundary has already unwound.
func (s *Server) notifyClose(n CloseNotifier, c *Conn) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Close notification failed", zap.Error(fmt.Errorf("handler panic: %v", r)))
		}
	}()
	n.OnClose(c)
}

func (s *Server) fail(c *Conn, err error) {
	c.logger.Error("Connection failed", zap.Error(err))
	_ = c.Close()
}
