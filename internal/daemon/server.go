package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// Dispatcher executes one decoded command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *protocol.Command) *protocol.Response
}

// BindError indicates the control server could not take its address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// IsBind reports whether err is a control server bind failure.
func IsBind(err error) bool {
	var be *BindError
	return errors.As(err, &be)
}

// ErrServerStarted is returned when Start is called twice.
var ErrServerStarted = errors.New("server already started")

// Accept backoff bounds for temporary accept failures.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ServerOptions tunes connection handling.
type ServerOptions struct {
	// MaxMessageBytes bounds one request line; 0 selects the protocol default.
	MaxMessageBytes int
	// WriteTimeout bounds writing one response; 0 disables the deadline.
	WriteTimeout time.Duration
	// IdleTimeout closes a connection with no request for this long; 0 disables it.
	IdleTimeout time.Duration
}

// Server accepts control connections on TCP and serves each one on its own
// goroutine.
type Server struct {
	addr       string
	dispatcher Dispatcher
	opts       ServerOptions
	logger     *slog.Logger

	listen func(network, addr string) (net.Listener, error)

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	stopped  bool
	err      error
	failed   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active   atomic.Int64
	accepted atomic.Uint64
}

// NewServer creates a control server for addr ("host:port").
func NewServer(addr string, dispatcher Dispatcher, opts ServerOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = protocol.DefaultMaxMessageBytes
	}
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		listen:     net.Listen,
		conns:      make(map[*conn]struct{}),
		failed:     make(chan struct{}),
	}
}

// Start binds the listener and begins accepting. A taken address returns a
// BindError and leaves nothing running.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil || s.stopped {
		return ErrServerStarted
	}

	ln, err := s.listen("tcp", s.addr)
	if err != nil {
		return &BindError{Addr: s.addr, Err: err}
	}
	s.listener = ln
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("control server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Failed is closed when the accept loop ends on a non-temporary error.
// Err then returns that error.
func (s *Server) Failed() <-chan struct{} {
	return s.failed
}

// Err returns the error that stopped the accept loop, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ActiveConnections returns the number of open control connections.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

// BusyConnections returns the number of connections executing a command.
func (s *Server) BusyConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.conns {
		if c.busy() {
			n++
		}
	}
	return n
}

// TotalConnections returns how many connections have been accepted.
func (s *Server) TotalConnections() uint64 {
	return s.accepted.Load()
}

// Stop closes the listener and every open connection, then waits for all
// connection goroutines to return. In-flight commands see a cancelled context.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	ln := s.listener
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln == nil {
		return nil
	}

	s.cancel()
	err := ln.Close()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
	s.logger.Info("control server stopped")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	backoff := time.Duration(0)
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			if !isTemporaryAccept(err) {
				s.logger.Error("accept failed, control server no longer accepting", "error", err)
				s.fail(err)
				return
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			s.logger.Warn("accept failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		c := newConn(nc, s.dispatcher, s.opts, s.logger)
		if !s.track(c) {
			c.close()
			return
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve(s.ctx)
		}()
	}
}

func (s *Server) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.failed)
}

// isTemporaryAccept reports whether an accept error clears up on its own:
// descriptor or buffer exhaustion, or a peer that aborted before accept.
func isTemporaryAccept(err error) bool {
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// track registers c. It reports false once Stop has begun.
func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.active.Add(1)
	s.accepted.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.active.Add(-1)
}
