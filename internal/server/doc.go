// Package server implements the accept-and-dispatch core shared by
// line-oriented TCP protocol servers.
//
// A concrete protocol (a POP3 or SMTP daemon, for example) supplies a Handler
// with two methods: Greet, called once when a client connects, and Process,
// called for every newline-terminated input line. The server owns the
// listening socket, the accept loop and the per-connection read loop; the
// handler owns all protocol semantics.
//
// # Usage Example
//
//	handler := server.HandlerFuncs{
//	    GreetFunc: func(c *server.Conn) error {
//	        c.Respond("+OK ready\r\n")
//	        return nil
//	    },
//	    ProcessFunc: func(c *server.Conn, command, line string) error {
//	        if command == "QUIT" {
//	            c.Respond("+OK bye\r\n")
//	            return c.Close()
//	        }
//	        c.Respond("-ERR unknown command\r\n")
//	        return nil
//	    },
//	}
//
//	srv, err := server.New(&server.Config{Port: 0, Logger: logger}, handler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("listening on %d", srv.Port())
//
//	// Run blocks until the listener fails or Close is called
//	if err := srv.Run(); err != nil {
//	    log.Print(err)
//	}
//
// # Command Tokens
//
// Each line is handed to Process together with its command token: the first
// whitespace-delimited word, upper-cased, without CR/LF. The raw line is
// passed unmodified, terminator included, so handlers can parse arguments
// themselves.
//
// # Connection Lifecycle
//
//	Accepted -> Greeted -> {Reading <-> Processing} -> Closed
//
// A session ends when the handler closes the connection, when the client
// disconnects (EOF), or when anything fails. Failures are read errors, errors
// returned by Greet or Process, and panics inside the handler. They are
// logged at error level and the connection is force-closed; they never reach
// the accept loop or other connections.
//
// Closing is idempotent and Respond on a closed connection only logs.
//
// # Limitations
//
// There is no admission control, read deadline or line length limit. A client
// that never sends a newline keeps its goroutine and buffer alive until it
// disconnects. Close stops accepting but does not drain open connections.
//
// # Thread Safety
//
// Each connection is served by its own goroutine. The only state shared
// between them is the listener (used solely by Run) and the logger.
package server
