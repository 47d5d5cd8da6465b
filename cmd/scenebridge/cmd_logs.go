package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

type LogsCmd struct {
	Follow bool `short:"f" help:"Follow log output in real-time (tail -f)"`
	Lines  int  `short:"n" help:"Number of lines to show" default:"50"`
}

func (c *LogsCmd) Run(g *Globals) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logPath, err := paths.LogPath(cfg)
	if err != nil {
		return err
	}

	// Check if log file exists
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nHint: Start the server first with 'scenebridge serve'", logPath)
	}

	args := []string{"tail", "-n", fmt.Sprint(c.Lines)}
	if c.Follow {
		args = append(args, "-f")
	}
	args = append(args, logPath)

	tailPath, err := exec.LookPath("tail")
	if err != nil {
		return fmt.Errorf("tail command not found in PATH (install coreutils or similar)")
	}

	// Replace current process with tail
	return syscall.Exec(tailPath, args, os.Environ())
}
