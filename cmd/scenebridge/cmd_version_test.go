package main

import (
	"strings"
	"testing"
)

func TestVersionSkew(t *testing.T) {
	tests := []struct {
		name     string
		cli      string
		server   string
		contains string
	}{
		{"same", "1.2.0", "v1.2.0", ""},
		{"server newer", "1.2.0", "1.3.0", "Server is newer"},
		{"server older", "v2.0.0", "1.9.9", "Server is older"},
		{"dev build", "dev", "1.0.0", ""},
		{"unknown server", "1.0.0", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := versionSkew(tt.cli, tt.server)

			if tt.contains == "" {
				if got != "" {
					t.Errorf("versionSkew() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("versionSkew() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

func TestEnsureVPrefix(t *testing.T) {
	tests := map[string]string{"1.0.0": "v1.0.0", "v1.0.0": "v1.0.0", "": ""}
	for in, want := range tests {
		if got := ensureVPrefix(in); got != want {
			t.Errorf("ensureVPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
