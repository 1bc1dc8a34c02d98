package server

// Handler is the protocol logic a concrete server plugs into the acceptor.
//
// Greet is called once per connection before any input is read. Process is
// called once per line, in arrival order, with the upper-cased command token
// and the raw line including its terminator. Process ends a session by
// closing the connection; leaving it open asks for the next line.
//
// Returning an error (or panicking) from either method is treated as a
// connection failure: it is logged and the connection is force-closed.
type Handler interface {
	Greet(c *Conn) error
	Process(c *Conn, command, line string) error
}

// CloseNotifier is optionally implemented by a Handler that keeps
// per-connection state keyed by Conn.ID. OnClose runs exactly once per
// connection after its session ended, whatever the reason.
type CloseNotifier interface {
	OnClose(c *Conn)
}

// HandlerFuncs adapts plain functions to a Handler. A nil GreetFunc sends no
// greeting; a nil ProcessFunc ignores every line.
type HandlerFuncs struct {
	GreetFunc   func(c *Conn) error
	ProcessFunc func(c *Conn, command, line string) error
}

// Greet calls GreetFunc.
func (h HandlerFuncs) Greet(c *Conn) error {
	if h.GreetFunc == nil {
		return nil
	}
	return h.GreetFunc(c)
}

// Process calls ProcessFunc.
func (h HandlerFuncs) Process(c *Conn, command, line string) error {
	if h.ProcessFunc == nil {
		return nil
	}
	return h.ProcessFunc(c, command, line)
}
