package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// ErrStopWatch may be returned by a FrameFunc to end Watch without error.
var ErrStopWatch = errors.New("stop watching")

// FrameFunc receives each frame pushed on a preview channel.
type FrameFunc func(f *protocol.Frame) error

// Watch attaches to a preview session at addr and calls fn for every frame
// until ctx is done, the server closes the stream, or fn returns an error.
// transport is "tcp" or "websocket".
func Watch(ctx context.Context, addr, transport string, fn FrameFunc) error {
	switch transport {
	case "", "tcp":
		return watchTCP(ctx, addr, fn)
	case "websocket", "ws":
		return watchWebSocket(ctx, addr, fn)
	default:
		return fmt.Errorf("unknown transport %q", transport)
	}
}

func watchTCP(ctx context.Context, addr string, fn FrameFunc) error {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to preview: %w", err)
	}
	defer nc.Close()
	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()

	r := protocol.NewReader(nc, 0)
	for {
		var f protocol.Frame
		if err := r.ReadJSON(&f); err != nil {
			return streamEnded(ctx, err)
		}
		if err := fn(&f); err != nil {
			return stopped(err)
		}
	}
}

func watchWebSocket(ctx context.Context, addr string, fn FrameFunc) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: protocol.PreviewPath}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to preview: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return streamEnded(ctx, err)
		}
		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if err := fn(&f); err != nil {
			return stopped(err)
		}
	}
}

func streamEnded(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("read frame: %w", err)
}

func stopped(err error) error {
	if errors.Is(err, ErrStopWatch) {
		return nil
	}
	return err
}
