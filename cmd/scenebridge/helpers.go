package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/d2verb/scenebridge/internal/client"
	"github.com/d2verb/scenebridge/internal/config"
	"github.com/d2verb/scenebridge/internal/protocol"
	"github.com/d2verb/scenebridge/internal/ui"
)

func getPaths() (*config.Paths, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}
	return paths, nil
}

// configPath returns --config when given, else the default location.
func (g *Globals) configPath() (string, error) {
	if g.Config != "" {
		return g.Config, nil
	}
	paths, err := getPaths()
	if err != nil {
		return "", err
	}
	return paths.Config, nil
}

// loadConfig reads the config file and applies --addr.
func (g *Globals) loadConfig() (*config.Config, error) {
	path, err := g.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if g.Addr != "" {
		host, port, err := splitAddr(g.Addr)
		if err != nil {
			return nil, err
		}
		cfg.Host, cfg.Port = host, port
	}
	return cfg, nil
}

func (g *Globals) newClient() (*client.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Addr()).WithTimeout(clientTimeout(cfg)), nil
}

// clientTimeout leaves headroom over the server's own command timeout.
func clientTimeout(cfg *config.Config) time.Duration {
	if cfg.CommandTimeout <= 0 {
		return client.DefaultTimeout
	}
	return cfg.CommandTimeout + 5*time.Second
}

// splitAddr parses "host:port". A bare ":port" keeps the default host.
func splitAddr(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("invalid address %q: want host:port", addr)
	}
	host := strings.Trim(addr[:i], "[]")
	if host == "" {
		host = config.DefaultHost
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in address %q", addr)
	}
	return host, port, nil
}

// send delivers cmd and turns transport failures and error responses into
// exit errors.
func send(cl *client.Client, cmd *protocol.Command) (*protocol.Response, error) {
	resp, err := cl.Send(cmd)
	if err != nil {
		return nil, errDaemonNotRunning(cl.Addr())
	}
	if !resp.OK() {
		return nil, errCommandFailed(resp)
	}
	return resp, nil
}

// printJSON writes v as indented JSON to ui.Output.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(ui.Output, string(data))
	return nil
}

// parseParams builds command params from a JSON object argument followed by
// key=value pairs. Values are decoded as JSON when possible, else kept as
// strings.
func parseParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: want key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}

// writeOutput writes data to path, or to stdout when path is "-".
func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
