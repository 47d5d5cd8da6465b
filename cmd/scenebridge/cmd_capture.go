package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/d2verb/scenebridge/internal/client"
	"github.com/d2verb/scenebridge/internal/dispatch"
	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/ui"
)

type CaptureCmd struct {
	Output  string `short:"o" help:"Output file, or - for stdout (default: viewport.<ext>)"`
	Width   int    `short:"W" help:"Image width in pixels"`
	Height  int    `short:"H" help:"Image height in pixels"`
	Format  string `short:"F" help:"Image format (JPEG, PNG, BMP, TIFF)" predictor:"format"`
	Quality int    `short:"q" help:"JPEG quality (1-100)"`
}

func (c *CaptureCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}

	resp, err := cl.Capture(client.CaptureParams{
		Width:   c.Width,
		Height:  c.Height,
		Format:  c.Format,
		Quality: c.Quality,
	})
	if err != nil {
		return errDaemonNotRunning(cl.Addr())
	}
	if !resp.OK() {
		return errCommandFailed(resp)
	}

	var img dispatch.ViewportImage
	if err := resp.DecodeResult(&img); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(img.Image)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	out := c.Output
	if out == "" {
		out = "viewport." + extension(img.Format)
	}
	if err := writeOutput(out, data); err != nil {
		return err
	}
	if out != "-" {
		ui.PrintSuccess(fmt.Sprintf("Saved %dx%d %s to %s %s", img.Width, img.Height, img.Format, out, ui.Dim("("+ui.FormatBytes(int64(len(data)))+")")))
	}
	return nil
}

func extension(format string) string {
	f, err := frame.ParseFormat(format)
	if err != nil {
		return strings.ToLower(format)
	}
	return f.Extension()
}
