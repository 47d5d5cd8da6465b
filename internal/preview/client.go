package preview

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds one frame write to a preview client.
const writeTimeout = 5 * time.Second

// sink delivers encoded frame documents to one remote peer.
type sink interface {
	WriteFrame(doc []byte) error
	// WaitClosed blocks until the peer goes away.
	WaitClosed()
	Close() error
	RemoteAddr() string
}

var newline = []byte{'\n'}

// tcpSink writes newline-delimited frames to a raw connection.
type tcpSink struct {
	conn net.Conn
}

func (s *tcpSink) WriteFrame(doc []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	bufs := net.Buffers{doc, newline}
	_, err := bufs.WriteTo(s.conn)
	return err
}

// WaitClosed drains anything the peer sends until it disconnects.
func (s *tcpSink) WaitClosed() {
	_, _ = io.Copy(io.Discard, s.conn)
}

func (s *tcpSink) Close() error {
	return s.conn.Close()
}

func (s *tcpSink) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// wsSink sends one text message per frame.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) WriteFrame(doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, doc)
}

// WaitClosed runs the read side so control frames (ping, close) are handled.
func (s *wsSink) WaitClosed() {
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *wsSink) Close() error {
	s.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "preview stopped")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *wsSink) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// client is one attached viewer. The mailbox holds at most one frame; a
// newer frame replaces an unsent one.
type client struct {
	sink    sink
	mailbox chan []byte
	done    chan struct{}
	once    sync.Once
}

func newClient(s sink) *client {
	return &client{
		sink:    s,
		mailbox: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
}

// offer places doc in the mailbox and reports whether a stale frame was
// discarded to make room. Only the session's ticker calls offer.
func (c *client) offer(doc []byte) (dropped bool) {
	select {
	case c.mailbox <- doc:
		return false
	default:
	}
	select {
	case <-c.mailbox:
		dropped = true
	default:
	}
	select {
	case c.mailbox <- doc:
	default:
		// The writer cannot refill the slot, so this only happens after close.
		dropped = true
	}
	return dropped
}

// writeLoop sends mailbox frames until the client closes or a write fails.
func (c *client) writeLoop(onSent func(), onErr func(error)) {
	for {
		select {
		case <-c.done:
			return
		case doc := <-c.mailbox:
			if err := c.sink.WriteFrame(doc); err != nil {
				onErr(err)
				return
			}
			onSent()
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sink.Close()
	})
}
