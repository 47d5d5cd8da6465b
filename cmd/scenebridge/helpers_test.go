package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/d2verb/scenebridge/internal/config"
)

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"127.0.0.1:9000", "127.0.0.1", 9000, false},
		{":9000", config.DefaultHost, 9000, false},
		{"[::1]:9000", "::1", 9000, false},
		{"localhost", "", 0, true},
		{"host:abc", "", 0, true},
		{"host:0", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := splitAddr(tt.in)

			if (err != nil) != tt.wantErr {
				t.Fatalf("splitAddr(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("splitAddr(%q) = %q, %d", tt.in, host, port)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	// Act
	params, err := parseParams(`{"name":"Cube","location":[1,2,3]}`, []string{"visible=false", "label=hello world", "scale=[2,2,2]"})

	// Assert
	if err != nil {
		t.Fatalf("parseParams() error = %v", err)
	}
	if params["name"] != "Cube" {
		t.Errorf("name = %v", params["name"])
	}
	if params["visible"] != false {
		t.Errorf("visible = %v, want bool false", params["visible"])
	}
	if params["label"] != "hello world" {
		t.Errorf("label = %v, want raw string", params["label"])
	}
	if s, ok := params["scale"].([]any); !ok || len(s) != 3 {
		t.Errorf("scale = %v, want JSON array", params["scale"])
	}
}

func TestParseParams_Errors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		pairs []string
	}{
		{"raw not object", `[1,2]`, nil},
		{"raw invalid", `{`, nil},
		{"pair without equals", "", []string{"name"}},
		{"pair without key", "", []string{"=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseParams(tt.raw, tt.pairs); err == nil {
				t.Error("parseParams() should fail")
			}
		})
	}
}

func TestGlobals_LoadConfig(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 7001\ncommand_timeout: 2s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		globals  Globals
		wantAddr string
	}{
		{"default path", Globals{}, "127.0.0.1:7001"},
		{"explicit path", Globals{Config: path}, "127.0.0.1:7001"},
		{"addr override", Globals{Addr: "0.0.0.0:7100"}, "0.0.0.0:7100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			cfg, err := tt.globals.loadConfig()

			// Assert
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.Addr() != tt.wantAddr {
				t.Errorf("Addr() = %q, want %q", cfg.Addr(), tt.wantAddr)
			}
			if got := clientTimeout(cfg); got != 7*time.Second {
				t.Errorf("clientTimeout() = %v, want 7s", got)
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "out.bin")

	// Act
	err := writeOutput(path, []byte{1, 2, 3})

	// Assert
	if err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 3 {
		t.Errorf("wrote %d bytes, want 3", len(data))
	}
}
