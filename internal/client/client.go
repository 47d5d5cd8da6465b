// Package client provides a client for the scenebridge control channel.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = 30 * time.Second

// Client talks to the control server over TCP, one connection per request.
type Client struct {
	addr    string
	timeout time.Duration
}

// New creates a new client for addr ("host:port").
func New(addr string) *Client {
	return &Client{addr: addr, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c using timeout per exchange.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	return &cp
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Send sends a command to the server and returns the response.
func (c *Client) Send(cmd *protocol.Command) (*protocol.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	conn, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Send(ctx, cmd)
}

// Dial opens a persistent connection for several sequential commands.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	return &Conn{nc: nc, r: protocol.NewReader(nc, 0)}, nil
}

// SceneInfo sends get_scene_info.
func (c *Client) SceneInfo() (*protocol.Response, error) {
	return c.Send(protocol.NewCommand(protocol.CmdGetSceneInfo, nil))
}

// Metrics sends get_scene_metrics.
func (c *Client) Metrics() (*protocol.Response, error) {
	return c.Send(protocol.NewCommand(protocol.CmdGetSceneMetrics, nil))
}

// Status sends get_server_status.
func (c *Client) Status() (*protocol.Response, error) {
	return c.Send(protocol.NewCommand(protocol.CmdGetServerStatus, nil))
}

// CaptureParams selects a viewport capture. Zero fields use server defaults.
type CaptureParams struct {
	Width   int
	Height  int
	Format  string
	Quality int
}

func (p CaptureParams) toMap() map[string]any {
	m := map[string]any{}
	if p.Width > 0 {
		m["width"] = p.Width
	}
	if p.Height > 0 {
		m["height"] = p.Height
	}
	if p.Format != "" {
		m["format"] = p.Format
	}
	if p.Quality > 0 {
		m["quality"] = p.Quality
	}
	return m
}

// Capture sends get_viewport_image.
func (c *Client) Capture(p CaptureParams) (*protocol.Response, error) {
	return c.Send(protocol.NewCommand(protocol.CmdGetViewportImage, p.toMap()))
}

// PreviewParams configures start_live_preview. Zero fields use server
// defaults; Port is sent only when PortSet is true so 0 can request an
// ephemeral port.
type PreviewParams struct {
	CaptureParams
	Port      int
	PortSet   bool
	FPS       float64
	Transport string
}

// StartPreview sends start_live_preview.
func (c *Client) StartPreview(p PreviewParams) (*protocol.Response, error) {
	m := p.toMap()
	if p.PortSet {
		m["port"] = p.Port
	}
	if p.FPS > 0 {
		m["fps"] = p.FPS
	}
	if p.Transport != "" {
		m["transport"] = p.Transport
	}
	return c.Send(protocol.NewCommand(protocol.CmdStartLivePreview, m))
}

// StopPreview sends stop_live_preview for port, or for every session when
// port is 0.
func (c *Client) StopPreview(port int) (*protocol.Response, error) {
	params := map[string]any{}
	if port > 0 {
		params["port"] = port
	}
	return c.Send(protocol.NewCommand(protocol.CmdStopLivePreview, params))
}

// ListPreviews sends list_live_previews.
func (c *Client) ListPreviews() (*protocol.Response, error) {
	return c.Send(protocol.NewCommand(protocol.CmdListLivePreviews, nil))
}

// Conn is a persistent control connection. Commands on one Conn are strictly
// sequential; concurrent Send calls are serialized.
type Conn struct {
	nc net.Conn
	r  *protocol.Reader
	mu sync.Mutex
}

// Send writes cmd and waits for its response. The context deadline, if any,
// bounds the whole exchange.
func (c *Conn) Send(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	// Unblock I/O if ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := protocol.WriteMessage(c.nc, cmd); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var resp protocol.Response
	if err := c.r.ReadJSON(&resp); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read response: %w", ctx.Err())
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}
