package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/d2verb/scenebridge/internal/client"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
	"github.com/d2verb/scenebridge/internal/ui"
)

type PreviewCmd struct {
	Start PreviewStartCmd `cmd:"" help:"Start a live preview session"`
	Stop  PreviewStopCmd  `cmd:"" help:"Stop one or all live preview sessions"`
	List  PreviewListCmd  `cmd:"" help:"List live preview sessions"`
	Watch PreviewWatchCmd `cmd:"" help:"Attach to a preview session and report frames"`
}

type PreviewStartCmd struct {
	Port      int     `help:"Preview port; 0 picks a free port (default: from config)" default:"-1"`
	FPS       float64 `help:"Frames per second (up to 60)"`
	Width     int     `short:"W" help:"Frame width in pixels"`
	Height    int     `short:"H" help:"Frame height in pixels"`
	Format    string  `short:"F" help:"Frame format (JPEG, PNG, BMP, TIFF)" predictor:"format"`
	Quality   int     `short:"q" help:"JPEG quality (1-100)"`
	Transport string  `short:"t" help:"Transport (tcp or websocket)" predictor:"transport"`
}

func (c *PreviewStartCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := cl.StartPreview(client.PreviewParams{
		CaptureParams: client.CaptureParams{
			Width:   c.Width,
			Height:  c.Height,
			Format:  c.Format,
			Quality: c.Quality,
		},
		Port:      max(c.Port, 0),
		PortSet:   c.Port >= 0,
		FPS:       c.FPS,
		Transport: c.Transport,
	})
	if err != nil {
		return errDaemonNotRunning(cl.Addr())
	}
	if !resp.OK() {
		return errCommandFailed(resp)
	}
	if g.JSON {
		return printJSON(resp.Result)
	}

	var started struct {
		Port      int     `json:"port"`
		FPS       float64 `json:"fps"`
		Transport string  `json:"transport"`
	}
	if err := resp.DecodeResult(&started); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(cl.Addr())
	ui.PrintSuccess(fmt.Sprintf("Live preview on %s at %g fps", ui.FormatEndpoint(previewURL(host, started.Port, started.Transport)), started.FPS))
	return nil
}

// previewURL renders the address a viewer connects to.
func previewURL(host string, port int, transport string) string {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if t, err := preview.ParseTransport(transport); err == nil && t == preview.TransportWebSocket {
		return "ws://" + addr + preview.WebSocketPath
	}
	return "tcp://" + addr
}

type PreviewStopCmd struct {
	Port int `arg:"" optional:"" help:"Port of the session to stop (default: all)"`
}

func (c *PreviewStopCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := cl.StopPreview(c.Port)
	if err != nil {
		return errDaemonNotRunning(cl.Addr())
	}
	if !resp.OK() {
		return errCommandFailed(resp)
	}
	if g.JSON {
		return printJSON(resp.Result)
	}
	msg, _ := resp.ResultMap()["message"].(string)
	ui.PrintSuccess(msg)
	return nil
}

type PreviewListCmd struct{}

func (c *PreviewListCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := send(cl, protocol.NewCommand(protocol.CmdListLivePreviews, nil))
	if err != nil {
		return err
	}
	if g.JSON {
		return printJSON(resp.Result)
	}

	var listed struct {
		Sessions []preview.Info `json:"sessions"`
	}
	if err := resp.DecodeResult(&listed); err != nil {
		return err
	}
	ui.PrintPreviewList(previewRows(listed.Sessions))
	return nil
}

func previewRows(sessions []preview.Info) []ui.PreviewRow {
	rows := make([]ui.PreviewRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, ui.PreviewRow{
			Port:          s.Port,
			Transport:     string(s.Transport),
			State:         string(s.State),
			FPS:           s.FPS,
			Width:         s.Width,
			Height:        s.Height,
			Format:        string(s.Format),
			Clients:       s.Clients,
			FramesSent:    s.FramesSent,
			FramesDropped: s.FramesDropped,
		})
	}
	return rows
}

type PreviewWatchCmd struct {
	Port      int    `arg:"" help:"Preview port"`
	Transport string `short:"t" help:"Transport (tcp or websocket)" default:"tcp" predictor:"transport"`
	Count     int    `short:"n" help:"Stop after this many frames (0 = until interrupted)"`
	Save      string `help:"Directory to save each frame into" type:"path"`
}

func (c *PreviewWatchCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Save != "" {
		if err := os.MkdirAll(c.Save, 0755); err != nil {
			return fmt.Errorf("create %s: %w", c.Save, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(c.Port))
	ui.PrintInfo(fmt.Sprintf("Watching %s (Ctrl+C to stop)", ui.FormatEndpoint(previewURL(cfg.Host, c.Port, c.Transport))))

	w := &frameWatcher{limit: c.Count, dir: c.Save, json: g.JSON}
	if err := client.Watch(ctx, addr, c.Transport, w.handle); err != nil && ctx.Err() == nil {
		return err
	}
	ui.PrintInfo(fmt.Sprintf("%d frames received", w.seen))
	return nil
}

// frameWatcher reports, and optionally saves, each received frame.
type frameWatcher struct {
	limit int
	dir   string
	json  bool
	seen  int
}

func (w *frameWatcher) handle(f *protocol.Frame) error {
	w.seen++
	data, err := base64.StdEncoding.DecodeString(f.Image)
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", f.Seq, err)
	}

	if w.dir != "" {
		name := filepath.Join(w.dir, fmt.Sprintf("frame-%06d.%s", f.Seq, extension(f.Format)))
		if err := os.WriteFile(name, data, 0644); err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
	}

	if w.json {
		meta := *f
		meta.Image = ""
		if err := printJSON(meta); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(ui.Output, "#%d %s %dx%d %s %s\n",
			f.Seq, ui.Dim(f.Timestamp.Format("15:04:05.000")), f.Width, f.Height, f.Format, ui.Dim(ui.FormatBytes(int64(len(data)))))
	}

	if w.limit > 0 && w.seen >= w.limit {
		return client.ErrStopWatch
	}
	return nil
}
