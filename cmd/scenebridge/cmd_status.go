package main

import (
	"time"

	"github.com/d2verb/scenebridge/internal/daemon"
	"github.com/d2verb/scenebridge/internal/ui"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(g *Globals) error {
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
	cl, err := g.newClient()
	if err != nil {
		return err
	}

	resp, err := cl.Status()
	if err != nil || !resp.OK() {
		// Not answering; report what the PID file says.
		state := "stopped"
		if pidStatus, _ := daemon.GetDaemonStatus(paths.PID, cfg.Addr()); pidStatus != nil && pidStatus.PID > 0 && !pidStatus.Running {
			state = "stale"
		}
		ui.PrintStatus(ui.ServerStatus{State: state, LogPath: logPath})
		return &ExitError{Code: exitDaemonNotRunning}
	}

	if g.JSON {
		return printJSON(resp.Result)
	}

	var st daemon.ServerStatus
	if err := resp.DecodeResult(&st); err != nil {
		return err
	}
	ui.PrintStatus(serverStatusView(st, logPath))
	if warn := versionSkew(version, st.Version); warn != "" {
		ui.PrintWarning(warn)
	}
	return nil
}

func serverStatusView(st daemon.ServerStatus, logPath string) ui.ServerStatus {
	return ui.ServerStatus{
		State:       "running",
		Addr:        st.Addr,
		PID:         st.PID,
		Version:     st.Version,
		Uptime:      time.Duration(st.UptimeSeconds * float64(time.Second)),
		Connections: st.ActiveConnections,
		Busy:        st.BusyConnections,
		AllowExec:   st.AllowExec,
		Previews:    len(st.Previews),
		LogPath:     logPath,
	}
}
