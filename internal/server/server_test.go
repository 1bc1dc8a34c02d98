package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testTimeout = 5 * time.Second

// recorder is a Handler that records every call in order and reports
// finished sessions on a channel.
type recorder struct {
	mu     sync.Mutex
	events []string

	greet   func(c *Conn) error
	process func(c *Conn, command, line string) error
	closed  chan uint64
}

func newRecorder() *recorder {
	return &recorder{closed: make(chan uint64, 16)}
}

func (r *recorder) Greet(c *Conn) error {
	r.record("greet")
	if r.greet != nil {
		return r.greet(c)
	}
	c.Respond("+OK ready\r\n")
	return nil
}

func (r *recorder) Process(c *Conn, command, line string) error {
	r.record(command + "|" + line)
	if r.process != nil {
		return r.process(c, command, line)
	}
	if command == "QUIT" {
		c.Respond("+OK bye\r\n")
		return c.Close()
	}
	c.Respond("+OK\r\n")
	return nil
}

func (r *recorder) OnClose(c *Conn) {
	r.closed <- c.ID()
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) waitClosed(t *testing.T) uint64 {
	t.Helper()
	select {
	case id := <-r.closed:
		return id
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for session to end")
		return 0
	}
}

func startServer(t *testing.T, h Handler) (*Server, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	srv, err := New(&Config{Name: "test", Host: "127.0.0.1", Port: 0, Logger: zap.New(core)}, h)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	go func() { _ = srv.Run() }()
	t.Cleanup(func() { _ = srv.Close() })

	return srv, logs
}

type client struct {
	net.Conn
	r *bufio.Reader
}

func dial(t *testing.T, srv *Server) *client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), testTimeout)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetDeadline(time.Now().Add(testTimeout))
	t.Cleanup(func() { _ = conn.Close() })

	return &client{Conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(t *testing.T, s string) {
	t.Helper()
	if _, err := c.Write([]byte(s)); err != nil {
		t.Fatalf("write %q: %v", s, err)
	}
}

func (c *client) expect(t *testing.T, want string) {
	t.Helper()
	got, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read (want %q): %v", want, err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func (c *client) expectClosed(t *testing.T) {
	t.Helper()
	if line, err := c.r.ReadString('\n'); err == nil {
		t.Fatalf("expected connection to be closed, got %q", line)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_EphemeralPort(t *testing.T) {
	srv, logs := startServer(t, newRecorder())

	if srv.Port() <= 0 || srv.Port() > 65535 {
		t.Fatalf("Port() = %d, want a valid TCP port", srv.Port())
	}
	if got := srv.Addr().(*net.TCPAddr).Port; got != srv.Port() {
		t.Errorf("Addr() port = %d, Port() = %d", got, srv.Port())
	}

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")

	listening := logs.FilterMessage("Server listening")
	if listening.Len() != 1 {
		t.Fatalf("got %d listening logs, want 1", listening.Len())
	}
	ctx := listening.All()[0].ContextMap()
	if ctx["port"] != int64(srv.Port()) {
		t.Errorf("listening log port = %v, want %d", ctx["port"], srv.Port())
	}
	if ctx["server"] != "test" {
		t.Errorf("listening log server = %v, want test", ctx["server"])
	}
}

func TestNew_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	port := taken.Addr().(*net.TCPAddr).Port
	srv, err := New(&Config{Host: "127.0.0.1", Port: port}, newRecorder())
	if err == nil {
		_ = srv.Close()
		t.Fatal("New() on a port in use should fail")
	}
	if !strings.Contains(err.Error(), fmt.Sprint(port)) {
		t.Errorf("error %q should mention the port", err)
	}
}

func TestNew_NilHandler(t *testing.T) {
	if _, err := New(&Config{Host: "127.0.0.1"}, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("New(nil handler) error = %v, want ErrNilHandler", err)
	}
}

func TestNew_DefaultsWithNilConfig(t *testing.T) {
	srv, err := New(nil, newRecorder())
	if err != nil {
		t.Fatalf("New(nil config) error = %v", err)
	}
	defer srv.Close()

	if srv.Name() != DefaultName {
		t.Errorf("Name() = %q, want %q", srv.Name(), DefaultName)
	}
	if srv.Port() == 0 {
		t.Error("Port() should be resolved")
	}
}

func TestRun_ReturnsAfterClose(t *testing.T) {
	srv, err := New(&Config{Host: "127.0.0.1"}, newRecorder())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	_ = srv.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Run() error = %v, want net.ErrClosed", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Run() did not return after Close()")
	}
}

func TestSession_Quit(t *testing.T) {
	rec := newRecorder()
	srv, logs := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")
	c.send(t, "QUIT\r\n")
	c.expect(t, "+OK bye\r\n")
	c.expectClosed(t)

	id := rec.waitClosed(t)

	want := []string{"greet", "QUIT|QUIT\r\n"}
	if got := rec.Events(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %q, want %q", got, want)
	}

	accepted := logs.FilterMessage("Connection accepted").FilterField(zap.Uint64("conn_id", id))
	if accepted.Len() != 1 {
		t.Errorf("got %d accept logs for conn %d, want 1", accepted.Len(), id)
	}
	closed := logs.FilterMessage("Connection closed").FilterField(zap.Uint64("conn_id", id))
	if closed.Len() != 1 {
		t.Fatalf("got %d close logs for conn %d, want 1", closed.Len(), id)
	}
	if _, ok := closed.All()[0].ContextMap()["remote_addr"]; !ok {
		t.Error("close log should carry remote_addr")
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Errorf("got %d error logs, want 0", n)
	}

	received := logs.FilterMessage("Received line").FilterField(zap.String("line", "QUIT\r\n"))
	if received.Len() != 1 || received.All()[0].Level != zapcore.DebugLevel {
		t.Error("raw line should be logged once at debug level")
	}
}

func TestSession_CommandWithArguments(t *testing.T) {
	rec := newRecorder()
	srv, _ := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")
	c.send(t, "LIST extra args\r\n")
	c.expect(t, "+OK\r\n")
	c.send(t, "QUIT\r\n")
	c.expect(t, "+OK bye\r\n")
	rec.waitClosed(t)

	events := rec.Events()
	if len(events) < 2 || events[1] != "LIST|LIST extra args\r\n" {
		t.Errorf("events = %q, want LIST with the full raw line", events)
	}
}

func TestSession_GreetBeforeProcessInOrder(t *testing.T) {
	rec := newRecorder()
	srv, _ := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")

	// One write carrying several lines must still be split and dispatched
	// in order.
	c.send(t, "user bob\r\nPASS secret\r\n\r\nQUIT\r\n")
	c.expect(t, "+OK\r\n")
	c.expect(t, "+OK\r\n")
	c.expect(t, "+OK\r\n")
	c.expect(t, "+OK bye\r\n")
	rec.waitClosed(t)

	want := []string{
		"greet",
		"USER|user bob\r\n",
		"PASS|PASS secret\r\n",
		"|\r\n",
		"QUIT|QUIT\r\n",
	}
	if got := rec.Events(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestSession_StopsReadingOnceClosed(t *testing.T) {
	rec := newRecorder()
	rec.process = func(c *Conn, command, line string) error {
		return c.Close()
	}
	srv, _ := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")
	c.send(t, "FIRST\r\nSECOND\r\n")
	c.expectClosed(t)
	rec.waitClosed(t)

	want := []string{"greet", "FIRST|FIRST\r\n"}
	if got := rec.Events(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestSession_AbruptDisconnect(t *testing.T) {
	rec := newRecorder()
	srv, logs := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")
	_ = c.Close()

	id := rec.waitClosed(t)

	if got := rec.Events(); len(got) != 1 || got[0] != "greet" {
		t.Errorf("events = %q, want only greet", got)
	}
	if logs.FilterMessage("Connection closed").FilterField(zap.Uint64("conn_id", id)).Len() != 1 {
		t.Error("closure should be logged")
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Errorf("EOF is not a failure, got %d error logs", n)
	}
}

func TestSession_UnterminatedFinalLine(t *testing.T) {
	rec := newRecorder()
	srv, _ := startServer(t, rec)

	c := dial(t, srv)
	c.expect(t, "+OK ready\r\n")
	c.send(t, "noop")
	if err := c.Conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}
	c.expect(t, "+OK\r\n")
	rec.waitClosed(t)

	want := []string{"greet", "NOOP|noop"}
	if got := rec.Events(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestSession_GreetErrorClosesConnection(t *testing.T) {
	rec := newRecorder()
	rec.greet = func(c *Conn) error {
		return errors.New("mailbox locked")
	}
	srv, logs := startServer(t, rec)

	c := dial(t, srv)
	c.expectClosed(t)
	rec.waitClosed(t)

	if got := rec.Events(); len(got) != 1 {
		t.Errorf("events = %q, process must not run after a failed greet", got)
	}

	failed := logs.FilterMessage("Connection failed")
	if failed.Len() != 1 {
		t.Fatalf("got %d failure logs, want 1", failed.Len())
	}
	if msg := failed.All()[0].ContextMap()["error"]; !strings.Contains(fmt.Sprint(msg), "mailbox locked") {
		t.Errorf("failure log error = %v, want the greet error", msg)
	}
	if logs.FilterMessage("Connection closed").Len() != 0 {
		t.Error("a failed session logs the failure, not a normal closure")
	}
}

func TestSession_FailureIsolation(t *testing.T) {
	rec := newRecorder()
	rec.process = func(c *Conn, command, line string) error {
		switch command {
		case "BOOM":
			return errors.New("boom")
		case "PANIC":
			panic("handler bug")
		case "QUIT":
			c.Respond("+OK bye\r\n")
			return c.Close()
		}
		c.Respond("+OK\r\n")
		return nil
	}
	srv, logs := startServer(t, rec)

	healthy := dial(t, srv)
	healthy.expect(t, "+OK ready\r\n")

	erroring := dial(t, srv)
	erroring.expect(t, "+OK ready\r\n")
	panicking := dial(t, srv)
	panicking.expect(t, "+OK ready\r\n")

	erroring.send(t, "BOOM\r\n")
	erroring.expectClosed(t)
	panicking.send(t, "PANIC\r\n")
	panicking.expectClosed(t)
	rec.waitClosed(t)
	rec.waitClosed(t)

	// The healthy connection and the acceptor are unaffected.
	healthy.send(t, "NOOP\r\n")
	healthy.expect(t, "+OK\r\n")

	late := dial(t, srv)
	late.expect(t, "+OK ready\r\n")

	healthy.send(t, "QUIT\r\n")
	healthy.expect(t, "+OK bye\r\n")

	failed := logs.FilterMessage("Connection failed")
	if failed.Len() != 2 {
		t.Fatalf("got %d failure logs, want 2", failed.Len())
	}
	var sawPanic bool
	for _, e := range failed.All() {
		if e.Level != zapcore.ErrorLevel {
			t.Errorf("failure logged at %v, want error", e.Level)
		}
		if _, ok := e.ContextMap()["port"]; !ok {
			t.Error("failure log should carry the server port")
		}
		if strings.Contains(fmt.Sprint(e.ContextMap()["error"]), "handler panic: handler bug") {
			sawPanic = true
		}
	}
	if !sawPanic {
		t.Error("panic should be recovered and logged")
	}
}

// panickyCloser is a Handler whose OnClose hook panics.
type panickyCloser struct {
	HandlerFuncs
	calls chan uint64
}

func (p *panickyCloser) OnClose(c *Conn) {
	p.calls <- c.ID()
	panic("cleanup bug")
}

func TestSession_OnClosePanicIsContained(t *testing.T) {
	h := &panickyCloser{
		HandlerFuncs: HandlerFuncs{
			GreetFunc: func(c *Conn) error {
				c.Respond("+OK ready\r\n")
				return nil
			},
		},
		calls: make(chan uint64, 4),
	}
	srv, logs := startServer(t, h)

	first := dial(t, srv)
	first.expect(t, "+OK ready\r\n")
	_ = first.Close()

	select {
	case <-h.calls:
	case <-time.After(testTimeout):
		t.Fatal("OnClose was not called")
	}
	waitFor(t, "close notification failure log", func() bool {
		return logs.FilterMessage("Close notification failed").Len() == 1
	})

	// The acceptor survived and still serves new clients.
	second := dial(t, srv)
	second.expect(t, "+OK ready\r\n")

	entry := logs.FilterMessage("Close notification failed").All()[0]
	if entry.Level != zapcore.ErrorLevel {
		t.Errorf("logged at %v, want error", entry.Level)
	}
	if !strings.Contains(fmt.Sprint(entry.ContextMap()["error"]), "handler panic: cleanup bug") {
		t.Errorf("error field = %v", entry.ContextMap()["error"])
	}
}

func TestSession_UniqueConnectionIDs(t *testing.T) {
	rec := newRecorder()
	rec.greet = func(c *Conn) error {
		c.Respond(fmt.Sprintf("+OK %d\r\n", c.ID()))
		return nil
	}
	srv, _ := startServer(t, rec)

	const n = 8
	seen := make(map[string]bool)
	clients := make([]*client, 0, n)
	for i := 0; i < n; i++ {
		c := dial(t, srv)
		clients = append(clients, c)
	}
	for _, c := range clients {
		line, err := c.r.ReadString('\n')
		if err != nil {
			t.Fatalf("read greeting: %v", err)
		}
		if seen[line] {
			t.Errorf("duplicate connection id in %q", line)
		}
		seen[line] = true
	}

	waitFor(t, "all connections active", func() bool { return srv.ActiveConnections() == n })

	for _, c := range clients {
		_ = c.Close()
	}
	for i := 0; i < n; i++ {
		rec.waitClosed(t)
	}
	waitFor(t, "no active connections", func() bool { return srv.ActiveConnections() == 0 })
}

func TestHandlerFuncs_NilFuncs(t *testing.T) {
	var h HandlerFuncs
	if err := h.Greet(nil); err != nil {
		t.Errorf("Greet() error = %v", err)
	}
	if err := h.Process(nil, "NOOP", "NOOP\r\n"); err != nil {
		t.Errorf("Process() error = %v", err)
	}
}

func TestHandlerFuncs_Dispatch(t *testing.T) {
	var got []string
	h := HandlerFuncs{
		GreetFunc: func(c *Conn) error {
			got = append(got, "greet")
			return nil
		},
		ProcessFunc: func(c *Conn, command, line string) error {
			got = append(got, command)
			return errors.New("stop")
		},
	}

	_ = h.Greet(nil)
	if err := h.Process(nil, "RETR", "RETR 1\r\n"); err == nil || err.Error() != "stop" {
		t.Errorf("Process() error = %v, want stop", err)
	}
	if strings.Join(got, ",") != "greet,RETR" {
		t.Errorf("calls = %q", got)
	}
}
