// Package config loads the scenebridge YAML configuration and resolves
// filesystem paths.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/logging"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// Control channel defaults.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 9876
	DefaultCommandTimeout = 30 * time.Second
	DefaultIdleTimeout    = 10 * time.Minute
	DefaultWriteTimeout   = 30 * time.Second
)

// Config is the on-disk configuration. Zero-valued durations disable the
// matching timeout.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowExec       bool          `yaml:"allow_exec"`
	MaxMessageBytes int           `yaml:"max_message_bytes"`
	CommandTimeout  time.Duration `yaml:"command_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	Preview         PreviewConfig `yaml:"preview"`
	Scene           SceneConfig   `yaml:"scene"`
	Log             LogConfig     `yaml:"log"`
}

// PreviewConfig holds defaults for start_live_preview.
type PreviewConfig struct {
	Port      int     `yaml:"port"`
	FPS       float64 `yaml:"fps"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Format    string  `yaml:"format"`
	Quality   int     `yaml:"quality"`
	Transport string  `yaml:"transport"`
}

// SceneConfig selects the starting scene of the built-in host.
type SceneConfig struct {
	Empty bool `yaml:"empty"`
}

// LogConfig controls the daemon log file.
type LogConfig struct {
	File       string `yaml:"file"` // empty uses logs/daemon.log
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	p := preview.DefaultOptions()
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		MaxMessageBytes: protocol.DefaultMaxMessageBytes,
		CommandTimeout:  DefaultCommandTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		Preview: PreviewConfig{
			Port:      p.Port,
			FPS:       p.FPS,
			Width:     p.Width,
			Height:    p.Height,
			Format:    string(p.Format),
			Quality:   p.Quality,
			Transport: string(p.Transport),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, replacing it atomically.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return data, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &ValidationError{Field: "host", Reason: "must not be empty"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ValidationError{Field: "port", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", c.Port)}
	}
	if c.MaxMessageBytes < 0 {
		return &ValidationError{Field: "max_message_bytes", Reason: "must not be negative"}
	}
	for field, d := range map[string]time.Duration{
		"command_timeout": c.CommandTimeout,
		"idle_timeout":    c.IdleTimeout,
		"write_timeout":   c.WriteTimeout,
	} {
		if d < 0 {
			return &ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	if _, err := c.Preview.Options(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Reason: err.Error()}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return &ValidationError{Field: "log", Reason: "rotation limits must not be negative"}
	}
	return nil
}

// LogOptions returns the rotation settings for the log file at path.
func (c *Config) LogOptions(path string) logging.Config {
	return logging.Config{
		Path:       path,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// Addr returns the control listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options converts the preview section into session defaults.
func (p PreviewConfig) Options() (preview.Options, error) {
	var opts preview.Options
	if p.Port < 0 || p.Port > 65535 {
		return opts, &ValidationError{Field: "preview.port", Reason: fmt.Sprintf("must be between 0 and 65535, got %d", p.Port)}
	}
	format, err := frame.ParseFormat(p.Format)
	if err != nil {
		return opts, &ValidationError{Field: "preview.format", Reason: err.Error()}
	}
	transport, err := preview.ParseTransport(p.Transport)
	if err != nil {
		return opts, &ValidationError{Field: "preview.transport", Reason: err.Error()}
	}
	opts = preview.Options{
		Host:      DefaultHost,
		Port:      p.Port,
		FPS:       p.FPS,
		Width:     p.Width,
		Height:    p.Height,
		Format:    format,
		Quality:   p.Quality,
		Transport: transport,
	}
	if err := opts.Validate(); err != nil {
		return opts, &ValidationError{Field: "preview", Reason: err.Error()}
	}
	return opts, nil
}
