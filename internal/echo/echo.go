// Package echo is a small line protocol built on the server package. It is
// the handler the postoffice-server binary runs and doubles as a worked
// example of a server.Handler that keeps per-connection state.
//
// Replies follow POP3 conventions: "+OK" for success, "-ERR" for failure,
// CRLF line endings and a lone "." ending multi-line replies.
package echo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/muurk/postoffice/internal/server"
	"go.uber.org/zap"
)

const crlf = "\r\n"

// commands lists what HELP prints.
var commands = map[string]string{
	"ECHO": "ECHO <text>  reply with <text>",
	"HELP": "HELP         list commands",
	"NOOP": "NOOP         do nothing",
	"QUIT": "QUIT         end the session",
	"STAT": "STAT         commands seen and session age",
}

// session is what the handler remembers about one connection.
type session struct {
	started  time.Time
	commands int
}

// Handler implements server.Handler and server.CloseNotifier.
type Handler struct {
	name string

	mu       sync.Mutex
	sessions map[uint64]*session
}

// New creates a handler that introduces itself as name.
func New(name string) *Handler {
	if name == "" {
		name = server.DefaultName
	}
	return &Handler{
		name:     name,
		sessions: make(map[uint64]*session),
	}
}

// Greet registers the session and sends the banner.
func (h *Handler) Greet(c *server.Conn) error {
	h.mu.Lock()
	h.sessions[c.ID()] = &session{started: time.Now()}
	h.mu.Unlock()

	c.Respond(fmt.Sprintf("+OK %s ready%s", h.name, crlf))
	return nil
}

// Process answers one command line.
func (h *Handler) Process(c *server.Conn, command, line string) error {
	s := h.session(c.ID())
	if s == nil {
		return fmt.Errorf("no session for connection %d", c.ID())
	}

	h.mu.Lock()
	s.commands++
	count, started := s.commands, s.started
	h.mu.Unlock()

	switch command {
	case "NOOP":
		c.Respond("+OK" + crlf)
	case "ECHO":
		c.Respond("+OK " + Argument(line) + crlf)
	case "HELP":
		c.Respond(help())
	case "STAT":
		c.Respond(fmt.Sprintf("+OK %d %s%s", count, time.Since(started).Round(time.Second), crlf))
	case "QUIT":
		c.Respond(fmt.Sprintf("+OK %s signing off%s", h.name, crlf))
		c.Logger().Debug("Session ended by client", zap.Int("commands", count))
		return c.Close()
	case "":
		c.Respond("-ERR empty command" + crlf)
	default:
		c.Respond(fmt.Sprintf("-ERR unknown command %s%s", command, crlf))
	}

	return nil
}

// OnClose forgets the session.
func (h *Handler) OnClose(c *server.Conn) {
	h.mu.Lock()
	delete(h.sessions, c.ID())
	h.mu.Unlock()
}

// Sessions returns the number of sessions currently tracked.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) session(id uint64) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

// Argument returns everything after the command token with surrounding
// whitespace and the line terminator removed.
func Argument(line string) string {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i:])
}

func help() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("+OK commands follow" + crlf)
	for _, name := range names {
		b.WriteString(commands[name] + crlf)
	}
	b.WriteString("." + crlf)
	return b.String()
}
