package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// stubDispatcher answers "echo" with its params, "block" waits for
// cancellation, and anything else as an unknown command.
type stubDispatcher struct {
	calls atomic.Int64
}

func (d *stubDispatcher) Dispatch(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	d.calls.Add(1)
	switch cmd.Type {
	case "echo":
		return protocol.NewOKResponse(cmd.Params)
	case "block":
		<-ctx.Done()
		return protocol.NewErrorResponse("cancelled")
	case "sleep":
		time.Sleep(200 * time.Millisecond)
		return protocol.NewOKResponse(nil)
	default:
		return protocol.NewErrorResponseWithCode(protocol.ErrCodeUnknownCommand, "unknown command: "+cmd.Type)
	}
}

func startServer(t *testing.T, opts ServerOptions) (*Server, *stubDispatcher) {
	t.Helper()
	d := &stubDispatcher{}
	s := NewServer("127.0.0.1:0", d, opts, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, d
}

type testConn struct {
	net.Conn
	r *protocol.Reader
}

func dial(t *testing.T, s *Server) *testConn {
	t.Helper()
	c, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	c.SetDeadline(time.Now().Add(5 * time.Second))
	return &testConn{Conn: c, r: protocol.NewReader(c, 0)}
}

func (c *testConn) send(t *testing.T, cmdType string, params map[string]any) {
	t.Helper()
	if err := protocol.WriteMessage(c, protocol.NewCommand(cmdType, params)); err != nil {
		t.Fatalf("send %s: %v", cmdType, err)
	}
}

func (c *testConn) recv(t *testing.T) *protocol.Response {
	t.Helper()
	var resp protocol.Response
	if err := c.r.ReadJSON(&resp); err != nil {
		t.Fatalf("recv: %v", err)
	}
	return &resp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestServer_RoundTrip(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)

	// Act
	c.send(t, "echo", map[string]any{"x": 1.0})
	resp := c.recv(t)

	// Assert
	if !resp.OK() {
		t.Fatalf("status = %q, message = %q", resp.Status, resp.Message)
	}
	if resp.ResultMap()["x"] != 1.0 {
		t.Errorf("result = %v", resp.Result)
	}
}

func TestServer_SecondBindFails(t *testing.T) {
	// Arrange
	first, _ := startServer(t, ServerOptions{})
	second := NewServer(first.Addr().String(), &stubDispatcher{}, ServerOptions{}, nil)

	// Act
	err := second.Start()

	// Assert
	if !IsBind(err) {
		t.Fatalf("second Start() error = %v, want BindError", err)
	}
	if second.Addr() != nil {
		t.Error("failed server should not report an address")
	}
	c := dial(t, first)
	c.send(t, "echo", nil)
	if resp := c.recv(t); !resp.OK() {
		t.Error("first server stopped working after failed second bind")
	}
}

func TestServer_StartTwice(t *testing.T) {
	s, _ := startServer(t, ServerOptions{})

	err := s.Start()

	if !errors.Is(err, ErrServerStarted) {
		t.Errorf("Start() error = %v, want ErrServerStarted", err)
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer("127.0.0.1:0", &stubDispatcher{}, ServerOptions{}, nil)

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestServer_UnknownCommandKeepsConnection(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)

	// Act
	c.send(t, "foo", nil)
	unknown := c.recv(t)
	c.send(t, "echo", nil)
	next := c.recv(t)

	// Assert
	if unknown.Status != protocol.StatusError || unknown.Message != "unknown command: foo" {
		t.Errorf("unknown response = %+v", unknown)
	}
	if !next.OK() {
		t.Errorf("follow-up response = %+v, want ok", next)
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"garbage", "not json\n"},
		{"missing type", `{"params":{}}` + "\n"},
		{"array", "[1,2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s, d := startServer(t, ServerOptions{})
			c := dial(t, s)

			// Act
			io.WriteString(c, tt.line)
			resp := c.recv(t)
			c.send(t, "echo", nil)
			next := c.recv(t)

			// Assert
			if resp.Status != protocol.StatusError || resp.Code != protocol.ErrCodeInvalidRequest {
				t.Errorf("response = %+v, want invalid_request", resp)
			}
			if !next.OK() {
				t.Errorf("connection unusable after invalid request: %+v", next)
			}
			if d.calls.Load() != 1 {
				t.Errorf("dispatcher calls = %d, want 1", d.calls.Load())
			}
		})
	}
}

func TestServer_MessageTooLarge(t *testing.T) {
	// Arrange
	s, d := startServer(t, ServerOptions{MaxMessageBytes: 64})
	c := dial(t, s)

	// Act
	c.send(t, "echo", map[string]any{"blob": strings.Repeat("x", 200)})
	resp := c.recv(t)
	_, err := c.r.ReadMessage()

	// Assert
	if resp.Code != protocol.ErrCodeMessageTooLarge {
		t.Errorf("response = %+v, want message_too_large", resp)
	}
	if err == nil {
		t.Error("connection should be closed after an oversized message")
	}
	if d.calls.Load() != 0 {
		t.Error("oversized message reached the dispatcher")
	}
}

func TestServer_ResponsesInRequestOrder(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)
	var batch strings.Builder
	for _, id := range []string{"a", "b", "c"} {
		data, _ := protocol.Marshal(protocol.NewCommand("echo", map[string]any{"id": id}))
		batch.Write(data)
	}

	// Act: all three arrive in one write
	io.WriteString(c, batch.String())

	// Assert
	for _, want := range []string{"a", "b", "c"} {
		if got := c.recv(t).ResultMap()["id"]; got != want {
			t.Errorf("response id = %v, want %s", got, want)
		}
	}
}

func TestServer_UnterminatedFinalMessage(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)

	// Act
	io.WriteString(c, `{"type":"echo","params":{"last":true}}`)
	c.Conn.(*net.TCPConn).CloseWrite()
	resp := c.recv(t)

	// Assert
	if !resp.OK() || resp.ResultMap()["last"] != true {
		t.Errorf("response = %+v", resp)
	}
}

func TestServer_BareDocumentWithoutTerminator(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Act: no newline and the write side stays open
	io.WriteString(c, `{"type":"echo","params":{"x":1}}`)
	first := c.recv(t)
	io.WriteString(c, `{"type":"echo","params":{"x":2}}`)
	second := c.recv(t)

	// Assert
	if !first.OK() || first.ResultMap()["x"] != 1.0 {
		t.Errorf("first response = %+v", first)
	}
	if !second.OK() || second.ResultMap()["x"] != 2.0 {
		t.Errorf("second response = %+v", second)
	}
}

func TestServer_InvalidJSONAfterValidCommand(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	c := dial(t, s)

	// Act
	io.WriteString(c, "{\"type\":\"echo\"}\n{bad json\n{\"type\":\"echo\",\"params\":{\"n\":3}}\n")
	first := c.recv(t)
	bad := c.recv(t)
	last := c.recv(t)

	// Assert
	if !first.OK() {
		t.Errorf("first response = %+v", first)
	}
	if bad.Code != protocol.ErrCodeInvalidRequest {
		t.Errorf("bad response = %+v, want invalid_request", bad)
	}
	if !last.OK() || last.ResultMap()["n"] != 3.0 {
		t.Errorf("last response = %+v", last)
	}
}

func TestServer_SlowCommandDoesNotBlockOthers(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	slow := dial(t, s)
	fast := dial(t, s)

	// Act
	slow.send(t, "sleep", nil)
	start := time.Now()
	fast.send(t, "echo", nil)
	fast.recv(t)
	elapsed := time.Since(start)

	// Assert
	if elapsed >= 200*time.Millisecond {
		t.Errorf("fast command took %v, blocked behind slow one", elapsed)
	}
	slow.recv(t)
}

func TestServer_StopClosesConnections(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	idle := dial(t, s)
	busy := dial(t, s)
	busy.send(t, "block", nil)
	waitFor(t, func() bool { return s.ActiveConnections() == 2 && s.BusyConnections() == 1 })

	// Act
	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	// Assert
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if _, err := idle.r.ReadMessage(); err == nil {
		t.Error("idle connection still open after Stop")
	}
	if s.ActiveConnections() != 0 {
		t.Errorf("ActiveConnections() = %d after Stop", s.ActiveConnections())
	}
	if _, err := net.Dial("tcp", s.Addr().String()); err == nil {
		t.Error("listener still accepting after Stop")
	}
}

func TestServer_IdleTimeout(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{IdleTimeout: 50 * time.Millisecond})
	c := dial(t, s)

	// Act
	_, err := c.r.ReadMessage()

	// Assert
	if err == nil {
		t.Fatal("expected idle connection to be closed")
	}
	waitFor(t, func() bool { return s.ActiveConnections() == 0 })
}

func TestServer_ConnectionCounters(t *testing.T) {
	// Arrange
	s, _ := startServer(t, ServerOptions{})
	a := dial(t, s)
	dial(t, s)
	waitFor(t, func() bool { return s.ActiveConnections() == 2 })

	// Act
	a.Close()

	// Assert
	waitFor(t, func() bool { return s.ActiveConnections() == 1 })
	if s.TotalConnections() != 2 {
		t.Errorf("TotalConnections() = %d, want 2", s.TotalConnections())
	}
}

// flakyListener returns the queued errors from Accept before delegating to
// the real listener.
type flakyListener struct {
	net.Listener
	errs chan error
}

func (l *flakyListener) Accept() (net.Conn, error) {
	select {
	case err := <-l.errs:
		return nil, err
	default:
		return l.Listener.Accept()
	}
}

func startFlakyServer(t *testing.T, errs ...error) *Server {
	t.Helper()
	queue := make(chan error, len(errs))
	for _, err := range errs {
		queue <- err
	}
	s := NewServer("127.0.0.1:0", &stubDispatcher{}, ServerOptions{}, nil)
	s.listen = func(network, addr string) (net.Listener, error) {
		ln, err := net.Listen(network, addr)
		if err != nil {
			return nil, err
		}
		return &flakyListener{Listener: ln, errs: queue}, nil
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestServer_TemporaryAcceptErrorRetried(t *testing.T) {
	// Arrange
	s := startFlakyServer(t,
		&net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)},
		&net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.ECONNABORTED)},
	)

	// Act
	c := dial(t, s)
	c.send(t, "echo", nil)
	resp := c.recv(t)

	// Assert
	if !resp.OK() {
		t.Errorf("response = %+v, want ok", resp)
	}
	select {
	case <-s.Failed():
		t.Errorf("server failed on a temporary error: %v", s.Err())
	default:
	}
}

func TestServer_FatalAcceptErrorStopsAccepting(t *testing.T) {
	// Arrange
	broken := &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EINVAL)}

	// Act
	s := startFlakyServer(t, broken)

	// Assert
	select {
	case <-s.Failed():
	case <-time.After(2 * time.Second):
		t.Fatal("Failed() not closed after a fatal accept error")
	}
	if !errors.Is(s.Err(), syscall.EINVAL) {
		t.Errorf("Err() = %v, want EINVAL", s.Err())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestIsTemporaryAccept(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"EMFILE", os.NewSyscallError("accept", syscall.EMFILE), true},
		{"ENFILE", os.NewSyscallError("accept", syscall.ENFILE), true},
		{"ECONNABORTED", os.NewSyscallError("accept", syscall.ECONNABORTED), true},
		{"EINVAL", os.NewSyscallError("accept", syscall.EINVAL), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTemporaryAccept(&net.OpError{Op: "accept", Net: "tcp", Err: tt.err}); got != tt.want {
				t.Errorf("isTemporaryAccept() = %v, want %v", got, tt.want)
			}
		})
	}
}
