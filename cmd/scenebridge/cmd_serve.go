package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/d2verb/scenebridge/internal/client"
	"github.com/d2verb/scenebridge/internal/config"
	"github.com/d2verb/scenebridge/internal/daemon"
	"github.com/d2verb/scenebridge/internal/host"
	"github.com/d2verb/scenebridge/internal/logging"
	"github.com/d2verb/scenebridge/internal/sandbox"
	"github.com/d2verb/scenebridge/internal/ui"
)

// startupTimeout bounds how long a background start waits for the server.
const startupTimeout = 5 * time.Second

type ServeCmd struct {
	Foreground bool   `short:"f" help:"Run in the foreground and log to stderr as well"`
	AllowExec  bool   `help:"Enable the execute_code command"`
	EmptyScene bool   `help:"Start with an empty scene instead of the default one"`
	LogLevel   string `help:"Log level (debug, info, warn, error)"`
	Daemon     bool   `name:"daemon" hidden:"" help:"Run server process (internal)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	status, err := daemon.GetDaemonStatus(paths.PID, cfg.Addr())
	if err != nil && !errors.Is(err, daemon.ErrPIDFileNotFound) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if status.Running {
		ui.PrintInfo(fmt.Sprintf("Server is already running (PID: %d)", status.PID))
		return nil
	}
	if status.PID > 0 {
		daemon.RemovePIDFile(paths.PID)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if c.Daemon || c.Foreground {
		return c.runServer(paths, cfg)
	}
	return c.startBackground(g, cfg)
}

// apply folds command-line overrides into cfg.
func (c *ServeCmd) apply(cfg *config.Config) {
	if c.AllowExec {
		cfg.AllowExec = true
	}
	if c.EmptyScene {
		cfg.Scene.Empty = true
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
}

// forwardArgs rebuilds the flags the background process needs.
func (c *ServeCmd) forwardArgs(g *Globals) []string {
	args := []string{"serve", "--daemon"}
	if g.Config != "" {
		args = append(args, "--config", g.Config)
	}
	if g.Addr != "" {
		args = append(args, "--addr", g.Addr)
	}
	if c.AllowExec {
		args = append(args, "--allow-exec")
	}
	if c.EmptyScene {
		args = append(args, "--empty-scene")
	}
	if c.LogLevel != "" {
		args = append(args, "--log-level", c.LogLevel)
	}
	return args
}

func (c *ServeCmd) startBackground(g *Globals, cfg *config.Config) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	logPath, err := paths.LogPath(cfg)
	if err != nil {
		return err
	}

	// Re-exec ourselves with internal daemon flag
	cmd := exec.Command(os.Args[0], c.forwardArgs(g)...)
	cmd.Env = os.Environ()

	// Detach from controlling terminal (Unix-like systems)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session and detach from terminal
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := client.WaitForReady(ctx, cfg.Addr()); err != nil {
		return fmt.Errorf("server did not start within %s, check logs: %s", startupTimeout, logPath)
	}

	ui.PrintSuccess(fmt.Sprintf("Server started on %s (PID: %d)", ui.FormatEndpoint(cfg.Addr()), cmd.Process.Pid))
	ui.PrintInfo(fmt.Sprintf("Logs: %s", logPath))
	return nil
}

func (c *ServeCmd) runServer(paths *config.Paths, cfg *config.Config) error {
	logPath, err := paths.LogPath(cfg)
	if err != nil {
		return err
	}
	logWriter := logging.NewRotatingWriter(cfg.LogOptions(logPath))
	defer logWriter.Close()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	var console io.Writer
	if c.Foreground {
		console = os.Stderr
	}
	logger := logging.NewLeveledLogger(logging.Tee(logWriter, console), level)

	if err := daemon.WritePIDFile(paths.PID); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer daemon.RemovePIDFile(paths.PID)

	dcfg, err := daemonConfig(cfg)
	if err != nil {
		return err
	}
	d := daemon.New(newHost(cfg), dcfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := d.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if c.Foreground {
		ui.PrintSuccess(fmt.Sprintf("Listening on %s (Ctrl+C to stop)", ui.FormatEndpoint(d.Addr().String())))
	}

	var failure error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-d.Failed():
		failure = d.Err()
	}

	if err := d.Stop(); err != nil {
		return errors.Join(failure, fmt.Errorf("stop server: %w", err))
	}
	return failure
}

func newHost(cfg *config.Config) host.Host {
	if cfg.Scene.Empty {
		return sandbox.NewEmpty()
	}
	return sandbox.NewDefault()
}

// daemonConfig maps the file configuration onto the daemon's settings.
func daemonConfig(cfg *config.Config) (daemon.Config, error) {
	previewOpts, err := cfg.Preview.Options()
	if err != nil {
		return daemon.Config{}, err
	}
	return daemon.Config{
		Addr:      cfg.Addr(),
		AllowExec: cfg.AllowExec,
		Preview:   previewOpts,
		Server: daemon.ServerOptions{
			MaxMessageBytes: cfg.MaxMessageBytes,
			WriteTimeout:    cfg.WriteTimeout,
			IdleTimeout:     cfg.IdleTimeout,
		},
		CommandTimeout: cfg.CommandTimeout,
		Version:        version,
	}, nil
}
