package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the scenebridge home directory.
const HomeEnv = "SCENEBRIDGE_HOME"

// Paths holds the filesystem locations scenebridge uses.
type Paths struct {
	Home      string // ~/.scenebridge
	Config    string // ~/.scenebridge/config.yaml
	PID       string // ~/.scenebridge/scenebridge.pid
	Logs      string // ~/.scenebridge/logs
	DaemonLog string // ~/.scenebridge/logs/daemon.log
}

// GetPaths returns the default paths, rooted at $SCENEBRIDGE_HOME when set.
func GetPaths() (*Paths, error) {
	root := os.Getenv(HomeEnv)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		root = filepath.Join(home, ".scenebridge")
	} else {
		var err error
		if root, err = expandTilde(root); err != nil {
			return nil, err
		}
	}
	return pathsUnder(root), nil
}

func pathsUnder(root string) *Paths {
	logs := filepath.Join(root, "logs")
	return &Paths{
		Home:      root,
		Config:    filepath.Join(root, "config.yaml"),
		PID:       filepath.Join(root, "scenebridge.pid"),
		Logs:      logs,
		DaemonLog: filepath.Join(logs, "daemon.log"),
	}
}

// EnsureDirectories creates the home and logs directories.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Home, p.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPath returns the daemon log file. A configured log.file overrides the
// default; relative values are resolved from Home.
func (p *Paths) LogPath(cfg *Config) (string, error) {
	if cfg == nil || cfg.Log.File == "" {
		return p.DaemonLog, nil
	}
	return ResolvePath(cfg.Log.File, p.Home)
}

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand home dir: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// ResolvePath expands a leading ~/ and resolves relative paths from baseDir.
// Empty paths are rejected.
func ResolvePath(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.HasPrefix(path, "~/") {
		return expandTilde(path)
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Join(baseDir, path), nil
}

// writeFileAtomic writes data to path through a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".scenebridge-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
