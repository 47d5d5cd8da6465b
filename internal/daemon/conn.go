package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// conn serves one control connection. Requests are handled strictly one at a
// time and each gets exactly one response, in order.
type conn struct {
	nc         net.Conn
	dispatcher Dispatcher
	opts       ServerOptions
	logger     *slog.Logger

	inFlight  atomic.Bool
	closeOnce sync.Once
}

func newConn(nc net.Conn, d Dispatcher, opts ServerOptions, logger *slog.Logger) *conn {
	return &conn{
		nc:         nc,
		dispatcher: d,
		opts:       opts,
		logger:     logger.With("remote", nc.RemoteAddr().String()),
	}
}

func (c *conn) serve(ctx context.Context) {
	defer c.close()
	c.logger.Debug("connection opened")

	dec := protocol.NewDecoder(c.nc, c.opts.MaxMessageBytes)
	for {
		if c.opts.IdleTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
		}
		line, err := dec.ReadMessage()
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			resp := protocol.NewErrorResponseWithCode(protocol.ErrCodeInvalidRequest, "invalid request: invalid JSON: "+err.Error())
			if err := c.write(resp); err != nil {
				return
			}
			if err := dec.Resync(); err != nil {
				c.readFailed(err)
				return
			}
			continue
		}
		if err != nil {
			c.readFailed(err)
			return
		}

		resp := c.handle(ctx, line)
		if err := c.write(resp); err != nil {
			if !isClosed(err) {
				c.logger.Warn("write response failed", "error", err)
			}
			return
		}
	}
}

// readFailed logs why the read side ended. An oversized message still gets
// an error response before the connection closes.
func (c *conn) readFailed(err error) {
	var ne net.Error
	switch {
	case errors.Is(err, protocol.ErrMessageTooLarge):
		c.logger.Warn("message too large, closing connection", "limit", c.opts.MaxMessageBytes)
		_ = c.write(protocol.NewErrorResponseWithCode(protocol.ErrCodeMessageTooLarge, "message exceeds maximum size"))
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isClosed(err):
		c.logger.Debug("connection closed")
	case errors.As(err, &ne) && ne.Timeout():
		c.logger.Info("connection idle timeout")
	default:
		c.logger.Warn("read failed", "error", err)
	}
}

func (c *conn) handle(ctx context.Context, line []byte) *protocol.Response {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		return protocol.NewErrorResponseWithCode(protocol.ErrCodeInvalidRequest, "invalid request: "+err.Error())
	}

	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	start := time.Now()
	resp := c.dispatcher.Dispatch(ctx, cmd)
	c.logger.Debug("command handled", "type", cmd.Type, "status", resp.Status, "duration", time.Since(start))
	return resp
}

func (c *conn) write(resp *protocol.Response) error {
	data, err := protocol.Marshal(resp)
	if err != nil {
		// The result could not be encoded; report that instead.
		c.logger.Error("marshal response failed", "error", err)
		data, err = protocol.Marshal(protocol.NewErrorResponseWithCode(protocol.ErrCodeEncodingFailed, "response encoding failed: "+err.Error()))
		if err != nil {
			return err
		}
	}
	if c.opts.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	_, err = c.nc.Write(data)
	return err
}

// busy reports whether a command is executing.
func (c *conn) busy() bool {
	return c.inFlight.Load()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		_ = c.nc.Close()
	})
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
