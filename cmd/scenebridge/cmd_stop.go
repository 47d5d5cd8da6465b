package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/d2verb/scenebridge/internal/daemon"
	"github.com/d2verb/scenebridge/internal/ui"
)

// stopWait bounds the graceful shutdown before the server is killed.
const stopWait = 10 * time.Second

type StopCmd struct{}

func (c *StopCmd) Run(g *Globals) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	status, err := daemon.GetDaemonStatus(paths.PID, cfg.Addr())
	if err != nil && !errors.Is(err, daemon.ErrPIDFileNotFound) {
		return fmt.Errorf("check server status: %w", err)
	}

	if !status.Running {
		ui.PrintInfo("Server is not running")
		daemon.RemovePIDFile(paths.PID)
		return nil
	}

	process, err := os.FindProcess(status.PID)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	ui.PrintInfo("Stopping server...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		running, err := daemon.IsProcessRunning(status.PID)
		if err != nil {
			return fmt.Errorf("check process: %w", err)
		}
		if !running {
			daemon.RemovePIDFile(paths.PID)
			ui.PrintSuccess("Server stopped")
			return nil
		}
	}

	ui.PrintWarning("Server did not stop gracefully, forcing...")
	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}

	daemon.RemovePIDFile(paths.PID)
	ui.PrintSuccess("Server stopped")
	return nil
}
