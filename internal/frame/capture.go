package frame

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/d2verb/scenebridge/internal/host"
)

// Request describes one viewport capture.
type Request struct {
	Width   int
	Height  int
	Format  Format
	Quality int
}

// Image is an encoded viewport frame.
type Image struct {
	Data       []byte
	Width      int
	Height     int
	Format     Format
	CapturedAt time.Time
}

// Base64 returns the encoded image as standard base64.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Capturer renders the host viewport and encodes it.
type Capturer struct {
	exec *host.Executor
	now  func() time.Time
}

// NewCapturer creates a capturer that reaches the host through exec.
func NewCapturer(exec *host.Executor) *Capturer {
	return &Capturer{exec: exec, now: time.Now}
}

// Capture renders the viewport on the host executor, then encodes it on the
// calling goroutine so host access is never held during encoding or I/O.
func (c *Capturer) Capture(ctx context.Context, req Request) (*Image, error) {
	if err := ValidateSize(req.Width, req.Height); err != nil {
		return nil, err
	}
	if req.Format == "" {
		req.Format = FormatJPEG
	}

	var px *host.Pixels
	err := c.exec.Do(ctx, "render_viewport", func(ctx context.Context, h host.Host) error {
		var err error
		px, err = h.RenderViewport(ctx, req.Width, req.Height)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EncodingError{Format: req.Format, Err: err}
	}

	data, err := Encode(px, req.Width, req.Height, Options{Format: req.Format, Quality: req.Quality})
	if err != nil {
		return nil, err
	}
	return &Image{
		Data:       data,
		Width:      req.Width,
		Height:     req.Height,
		Format:     req.Format,
		CapturedAt: c.now(),
	}, nil
}
