package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// Capturer produces encoded viewport frames.
type Capturer interface {
	Capture(ctx context.Context, req frame.Request) (*frame.Image, error)
}

// Session streams frames on one port.
type Session struct {
	opts     Options
	capturer Capturer
	logger   *slog.Logger

	ln      net.Listener
	httpSrv *http.Server
	port    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[*client]struct{}
	state   State

	seq       uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
	startedAt time.Time
}

// startSession binds the listener and launches the ticker. On a bind failure
// nothing is left running.
func startSession(opts Options, capturer Capturer, logger *slog.Logger) (*Session, error) {
	opts = opts.withDefaults()
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Port: opts.Port, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:      opts,
		capturer:  capturer,
		ln:        ln,
		port:      ln.Addr().(*net.TCPAddr).Port,
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[*client]struct{}),
		state:     StateStarting,
		startedAt: time.Now(),
	}
	s.logger = logger.With("preview_port", s.port)

	switch opts.Transport {
	case TransportWebSocket:
		s.serveWebSocket()
	default:
		s.wg.Add(1)
		go s.acceptLoop()
	}

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("live preview started", "addr", ln.Addr().String(), "fps", opts.FPS, "transport", opts.Transport)
	return s, nil
}

// Port returns the bound port.
func (s *Session) Port() int {
	return s.port
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Port:          s.port,
		Addr:          s.ln.Addr().String(),
		Transport:     s.opts.Transport,
		State:         s.state,
		FPS:           s.opts.FPS,
		Width:         s.opts.Width,
		Height:        s.opts.Height,
		Format:        s.opts.Format,
		Clients:       len(s.clients),
		FramesSent:    s.sent.Load(),
		FramesDropped: s.dropped.Load(),
		StartedAt:     s.startedAt,
	}
}

// Stop cancels the ticker, closes the listener and every client, and waits
// for the session's goroutines to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.state = StateStopped
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	s.cancel()
	if s.httpSrv != nil {
		// Hijacked websocket conns are not tracked by http.Server; they are
		// closed below with the client set.
		_ = s.httpSrv.Close()
	} else {
		_ = s.ln.Close()
	}
	for c := range clients {
		c.close()
	}
	s.wg.Wait()
	s.logger.Info("live preview stopped", "frames_sent", s.sent.Load(), "frames_dropped", s.dropped.Load())
}

func (s *Session) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("preview accept failed", "error", err)
			select {
			case <-time.After(50 * time.Millisecond):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		s.attach(&tcpSink{conn: conn})
	}
}

func (s *Session) serveWebSocket() {
	upgrader := websocket.Upgrader{
		// Local-trust design: any origin may attach.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("preview websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.attach(&wsSink{conn: conn})
	})
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview http server failed", "error", err)
		}
	}()
}

// attach registers a new viewer and starts its writer and close watcher.
func (s *Session) attach(sk sink) {
	c := newClient(sk)

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		_ = sk.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	// Added under the lock so Stop never waits while a new client registers.
	s.wg.Add(2)
	s.mu.Unlock()

	s.logger.Info("preview client attached", "remote", sk.RemoteAddr(), "clients", n)

	go func() {
		defer s.wg.Done()
		c.writeLoop(s.frameSent, func(err error) {
			s.logger.Debug("preview write failed", "remote", sk.RemoteAddr(), "error", err)
			s.detach(c)
		})
	}()
	go func() {
		defer s.wg.Done()
		sk.WaitClosed()
		s.detach(c)
	}()
}

// detach drops one client. The session keeps running.
func (s *Session) detach(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()

	c.close()
	if ok {
		s.logger.Info("preview client detached", "remote", c.sink.RemoteAddr(), "clients", n)
	}
}

func (s *Session) frameSent() {
	s.sent.Add(1)
	s.mu.Lock()
	if s.state == StateStarting {
		s.state = StateStreaming
	}
	s.mu.Unlock()
}

func (s *Session) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick captures one frame and offers it to every client.
func (s *Session) tick() {
	s.mu.Lock()
	if len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	img, err := s.capturer.Capture(s.ctx, frame.Request{
		Width:   s.opts.Width,
		Height:  s.opts.Height,
		Format:  s.opts.Format,
		Quality: s.opts.Quality,
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("preview capture failed", "error", err)
		}
		return
	}

	s.seq++
	doc, err := json.Marshal(protocol.Frame{
		Type:      protocol.FrameType,
		Seq:       s.seq,
		Timestamp: img.CapturedAt,
		Width:     img.Width,
		Height:    img.Height,
		Format:    string(img.Format),
		Image:     img.Base64(),
	})
	if err != nil {
		s.logger.Error("preview frame marshal failed", "error", err)
		return
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if c.offer(doc) {
			s.dropped.Add(1)
		}
	}
}
