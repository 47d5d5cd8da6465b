package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

// capture redirects Output with colors disabled and returns the buffer.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	Output = &buf
	t.Cleanup(func() {
		color.NoColor = false
		Output = os.Stdout
	})
	return &buf
}

func TestStatusBadge(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		state    string
		contains string
	}{
		{"running", "● Running"},
		{"streaming", "● Streaming"},
		{"starting", "◐ Starting"},
		{"stale", "◌ Stale PID"},
		{"stopped", "○ Stopped"},
		{"", "○ Not Running"},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			result := StatusBadge(tt.state)
			if !strings.Contains(result, tt.contains) {
				t.Errorf("StatusBadge(%q) = %q, want to contain %q", tt.state, result, tt.contains)
			}
		})
	}
}

func TestPrintStatus_Running(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintStatus(ServerStatus{
		State:       "running",
		Addr:        "127.0.0.1:9876",
		PID:         4242,
		Version:     "1.0.0",
		Uptime:      90*time.Second + 300*time.Millisecond,
		Connections: 2,
		Busy:        1,
		AllowExec:   true,
		Previews:    1,
		LogPath:     "/tmp/daemon.log",
	})

	// Assert
	output := buf.String()
	for _, want := range []string{
		"● Running", "127.0.0.1:9876", "PID: 4242", "Version: 1.0.0",
		"Uptime: 1m30s", "Connections: 2 (1 busy)", "Code execution: enabled",
		"Live previews: 1", "Logs: /tmp/daemon.log",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestPrintStatus_NotRunning(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintStatus(ServerStatus{State: "stopped", LogPath: "/tmp/daemon.log"})

	// Assert
	output := buf.String()
	if !strings.Contains(output, "○ Stopped") {
		t.Errorf("output should contain stopped badge: %q", output)
	}
	if strings.Contains(output, "Uptime") || strings.Contains(output, "Endpoint") {
		t.Errorf("stopped status should omit live fields: %q", output)
	}
	if !strings.Contains(output, "/tmp/daemon.log") {
		t.Errorf("output should contain log path: %q", output)
	}
}

func TestPrintScene(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintScene(SceneDetails{
		Name:      "Scene",
		Materials: 2,
		Frame:     5,
		Objects: []ObjectRow{
			{Name: "Cube", Type: "MESH", Location: [3]float64{1, 2, 3}},
			{Name: "Camera", Type: "CAMERA"},
		},
	})

	// Assert
	output := buf.String()
	for _, want := range []string{"Scene: Scene", "Frame: 5", "Materials: 2", "Objects: 2", "Cube", "MESH", "(1.00, 2.00, 3.00)", "CAMERA"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestPrintScene_Empty(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintScene(SceneDetails{Name: "Scene"})

	// Assert
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty scene should print (none): %q", buf.String())
	}
}

func TestPrintMetrics(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintMetrics(MetricsDetails{
		Scene: "Scene", FPS: 24, Frame: 3, FrameStart: 1, FrameEnd: 250,
		Objects: 3, Meshes: 1, Lights: 1, Cameras: 1,
		Polygons: 6, Vertices: 8, Edges: 12, Materials: 1, MemoryBytes: 2048,
	})

	// Assert
	output := buf.String()
	for _, want := range []string{"[1-250] @ 24 fps", "1 meshes", "6 polygons, 8 vertices, 12 edges", "Memory: 2.0 KiB"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestPrintPreviewList(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintPreviewList([]PreviewRow{{
		Port: 9877, Transport: "tcp", State: "streaming", FPS: 10,
		Width: 640, Height: 360, Format: "JPEG", Clients: 1, FramesSent: 42, FramesDropped: 3,
	}})

	// Assert
	output := buf.String()
	for _, want := range []string{"Live previews", ":9877", "● Streaming", "tcp 640x360 JPEG @ 10 fps", "clients=1 sent=42 dropped=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestPrintPreviewList_Empty(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintPreviewList(nil)

	// Assert
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty list should print (none): %q", buf.String())
	}
}

func TestPrintKeyValues(t *testing.T) {
	// Arrange
	buf := capture(t)

	// Act
	PrintKeyValues([]string{"name", "missing", "size"}, map[string]any{"name": "Cube", "size": 3})

	// Assert
	output := buf.String()
	if output != "name: Cube\nsize: 3\n" {
		t.Errorf("output = %q", output)
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		print func(string)
		mark  string
	}{
		{"success", PrintSuccess, "✓"},
		{"error", PrintError, "✗"},
		{"warning", PrintWarning, "⚠"},
		{"info", PrintInfo, "•"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			buf := capture(t)

			// Act
			tt.print("Operation completed")

			// Assert
			want := tt.mark + " Operation completed\n"
			if buf.String() != want {
				t.Errorf("output = %q, want %q", buf.String(), want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\nb\n", 2); got != "  a\n  b\n" {
		t.Errorf("Indent() = %q", got)
	}
}

func TestFormatEndpoint(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	if got := FormatEndpoint("127.0.0.1:9876"); got != "127.0.0.1:9876" {
		t.Errorf("FormatEndpoint() = %q", got)
	}
}
