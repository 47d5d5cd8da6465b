// Package daemon runs the scenebridge control server and its PID file
// bookkeeping.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/d2verb/scenebridge/internal/dispatch"
	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/host"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// Config holds the daemon settings.
type Config struct {
	// Addr is the control listen address, "host:port".
	Addr           string
	AllowExec      bool
	Preview        preview.Options
	Server         ServerOptions
	CommandTimeout time.Duration
	QueueSize      int
	Version        string
}

// ServerStatus is the result of get_server_status.
type ServerStatus struct {
	Version           string         `json:"version"`
	PID               int            `json:"pid"`
	Addr              string         `json:"addr"`
	StartedAt         time.Time      `json:"started_at"`
	UptimeSeconds     float64        `json:"uptime_seconds"`
	ActiveConnections int            `json:"active_connections"`
	BusyConnections   int            `json:"busy_connections"`
	TotalConnections  uint64         `json:"total_connections"`
	AllowExec         bool           `json:"allow_exec"`
	Previews          []preview.Info `json:"previews"`
	Commands          []string       `json:"commands"`
}

// Daemon wires the host executor, dispatcher, control server and preview
// manager together and owns their lifecycle.
type Daemon struct {
	cfg    Config
	logger *slog.Logger

	exec       *host.Executor
	previews   *preview.Manager
	dispatcher *dispatch.Dispatcher
	server     *Server

	// lifeMu serializes Start and Stop; mu guards the fields read by Status,
	// which may run on a connection Stop is waiting for.
	lifeMu    sync.Mutex
	running   bool
	mu        sync.Mutex
	startedAt time.Time
}

// New creates a daemon serving h. Nothing listens until Start.
func New(h host.Host, cfg Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = host.DefaultQueueSize
	}

	exec := host.NewExecutor(h, cfg.QueueSize, logger.With("component", "executor"))
	previews := preview.NewManager(frame.NewCapturer(exec), logger.With("component", "preview"))
	disp := dispatch.New(exec, dispatch.Options{
		AllowExec:       cfg.AllowExec,
		Previews:        previews,
		PreviewDefaults: cfg.Preview,
		CommandTimeout:  cfg.CommandTimeout,
		Logger:          logger.With("component", "dispatch"),
	})

	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		exec:       exec,
		previews:   previews,
		dispatcher: disp,
	}
	d.server = NewServer(cfg.Addr, disp, cfg.Server, logger.With("component", "server"))
	disp.Register(protocol.CmdGetServerStatus, d.handleServerStatus)
	return d
}

// Start launches the executor and binds the control server.
func (d *Daemon) Start() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if d.running {
		return ErrServerStarted
	}

	d.exec.Start()
	if err := d.server.Start(); err != nil {
		d.exec.Stop()
		return err
	}
	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.running = true
	d.logger.Info("daemon started", "addr", d.server.Addr().String(), "allow_exec", d.cfg.AllowExec, "version", d.cfg.Version)
	return nil
}

// Stop shuts down the control server, every preview session and the
// executor, in that order.
func (d *Daemon) Stop() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false

	err := d.server.Stop()
	d.previews.Close()
	d.exec.Stop()
	d.logger.Info("daemon stopped")
	if err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

// Run starts the daemon and blocks until ctx is done or the control server
// stops accepting.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return d.Stop()
	case <-d.Failed():
		failure := d.Err()
		if err := d.Stop(); err != nil {
			return errors.Join(failure, err)
		}
		return failure
	}
}

// Failed is closed when the control server stops accepting on its own.
func (d *Daemon) Failed() <-chan struct{} {
	return d.server.Failed()
}

// Err returns why the control server stopped accepting, or nil.
func (d *Daemon) Err() error {
	if err := d.server.Err(); err != nil {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

// Addr returns the control server's bound address, or nil before Start.
func (d *Daemon) Addr() net.Addr {
	return d.server.Addr()
}

// Dispatcher exposes the command dispatcher.
func (d *Daemon) Dispatcher() *dispatch.Dispatcher {
	return d.dispatcher
}

// Status returns a snapshot of the running daemon.
func (d *Daemon) Status() ServerStatus {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	st := ServerStatus{
		Version:           d.cfg.Version,
		PID:               os.Getpid(),
		StartedAt:         startedAt,
		ActiveConnections: d.server.ActiveConnections(),
		BusyConnections:   d.server.BusyConnections(),
		TotalConnections:  d.server.TotalConnections(),
		AllowExec:         d.cfg.AllowExec,
		Previews:          d.previews.List(),
		Commands:          d.dispatcher.Commands(),
	}
	if addr := d.server.Addr(); addr != nil {
		st.Addr = addr.String()
	}
	if !startedAt.IsZero() {
		st.UptimeSeconds = time.Since(startedAt).Seconds()
	}
	return st
}

func (d *Daemon) handleServerStatus(ctx context.Context, params dispatch.Params) (any, error) {
	return d.Status(), nil
}
