// Package ui provides formatted output utilities for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Color functions for consistent styling.
var (
	Green  = color.New(color.FgGreen).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc() // Dimmed text (more readable than gray)
	Bold   = color.New(color.Bold).SprintFunc()
)

// Output is the destination for UI output.
// Defaults to os.Stdout but can be overridden for testing.
var Output io.Writer = os.Stdout

// FormatEndpoint formats endpoint with blue color.
func FormatEndpoint(endpoint string) string {
	return Blue(endpoint)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// StatusBadge returns a colored status indicator with label.
func StatusBadge(state string) string {
	switch state {
	case "running":
		return Green("● Running")
	case "streaming":
		return Green("● Streaming")
	case "starting":
		return Yellow("◐ Starting")
	case "stale":
		return Yellow("◌ Stale PID")
	case "stopped":
		return Red("○ Stopped")
	default:
		return Red("○ Not Running")
	}
}

// ServerStatus holds daemon status for display.
type ServerStatus struct {
	State       string // running, stale, or anything else for not running
	Addr        string
	PID         int
	Version     string
	Uptime      time.Duration
	Connections int
	Busy        int
	AllowExec   bool
	Previews    int
	LogPath     string
}

// PrintStatus prints daemon status in a formatted style.
func PrintStatus(s ServerStatus) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Status:"), StatusBadge(s.State))

	if s.Addr != "" {
		fmt.Fprintf(Output, "%s %s\n", Bold("Endpoint:"), FormatEndpoint(s.Addr))
	}
	if s.PID > 0 {
		fmt.Fprintf(Output, "%s %d\n", Bold("PID:"), s.PID)
	}
	if s.State == "running" {
		if s.Version != "" {
			fmt.Fprintf(Output, "%s %s\n", Bold("Version:"), s.Version)
		}
		fmt.Fprintf(Output, "%s %s\n", Bold("Uptime:"), s.Uptime.Truncate(time.Second))
		fmt.Fprintf(Output, "%s %d %s\n", Bold("Connections:"), s.Connections, Dim(fmt.Sprintf("(%d busy)", s.Busy)))
		fmt.Fprintf(Output, "%s %s\n", Bold("Code execution:"), enabled(s.AllowExec))
		fmt.Fprintf(Output, "%s %d\n", Bold("Live previews:"), s.Previews)
	}

	fmt.Fprintf(Output, "%s %s\n", Bold("Logs:"), s.LogPath)
}

func enabled(on bool) string {
	if on {
		return Yellow("enabled")
	}
	return Dim("disabled")
}

// ObjectRow is one scene object for display.
type ObjectRow struct {
	Name     string
	Type     string
	Location [3]float64
}

// SceneDetails contains scene information for display.
type SceneDetails struct {
	Name      string
	Objects   []ObjectRow
	Materials int
	Frame     int
}

// PrintScene prints scene information with one line per object.
func PrintScene(s SceneDetails) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Scene:"), Cyan(s.Name))
	fmt.Fprintf(Output, "%s %d\n", Bold("Frame:"), s.Frame)
	fmt.Fprintf(Output, "%s %d\n", Bold("Materials:"), s.Materials)
	fmt.Fprintf(Output, "%s %d\n", Bold("Objects:"), len(s.Objects))
	if len(s.Objects) == 0 {
		fmt.Fprintf(Output, "  %s\n", Dim("(none)"))
		return
	}
	width := 0
	for _, o := range s.Objects {
		width = max(width, len(o.Name))
	}
	for _, o := range s.Objects {
		fmt.Fprintf(Output, "  %s %s %s\n",
			Cyan(fmt.Sprintf("%-*s", width, o.Name)),
			Yellow(fmt.Sprintf("%-6s", o.Type)),
			Dim(fmt.Sprintf("(%.2f, %.2f, %.2f)", o.Location[0], o.Location[1], o.Location[2])),
		)
	}
}

// MetricsDetails contains a scene metrics snapshot for display.
type MetricsDetails struct {
	Scene       string
	FPS         float64
	Frame       int
	FrameStart  int
	FrameEnd    int
	Objects     int
	Meshes      int
	Lights      int
	Cameras     int
	Empties     int
	Polygons    int
	Vertices    int
	Edges       int
	Materials   int
	MemoryBytes int64
}

// PrintMetrics prints a metrics snapshot.
func PrintMetrics(m MetricsDetails) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Scene:"), Cyan(m.Scene))
	fmt.Fprintf(Output, "%s %d %s\n", Bold("Frame:"), m.Frame, Dim(fmt.Sprintf("[%d-%d] @ %g fps", m.FrameStart, m.FrameEnd, m.FPS)))
	fmt.Fprintf(Output, "%s %d %s\n", Bold("Objects:"), m.Objects,
		Dim(fmt.Sprintf("(%d meshes, %d lights, %d cameras, %d empties)", m.Meshes, m.Lights, m.Cameras, m.Empties)))
	fmt.Fprintf(Output, "%s %d polygons, %d vertices, %d edges\n", Bold("Geometry:"), m.Polygons, m.Vertices, m.Edges)
	fmt.Fprintf(Output, "%s %d\n", Bold("Materials:"), m.Materials)
	fmt.Fprintf(Output, "%s %s\n", Bold("Memory:"), FormatBytes(m.MemoryBytes))
}

// PreviewRow is one live preview session for display.
type PreviewRow struct {
	Port          int
	Transport     string
	State         string
	FPS           float64
	Width         int
	Height        int
	Format        string
	Clients       int
	FramesSent    uint64
	FramesDropped uint64
}

// PrintPreviewList prints the live preview sessions.
func PrintPreviewList(rows []PreviewRow) {
	fmt.Fprintln(Output, Bold("📡 Live previews"))
	if len(rows) == 0 {
		fmt.Fprintf(Output, "  %s\n", Dim("(none)"))
		return
	}
	for _, r := range rows {
		fmt.Fprintf(Output, "  %s %s %s %s\n",
			Cyan(fmt.Sprintf(":%d", r.Port)),
			StatusBadge(r.State),
			fmt.Sprintf("%s %dx%d %s @ %g fps", r.Transport, r.Width, r.Height, r.Format, r.FPS),
			Dim(fmt.Sprintf("clients=%d sent=%d dropped=%d", r.Clients, r.FramesSent, r.FramesDropped)),
		)
	}
}

// PrintKeyValues prints a map-like result as aligned "key: value" lines in
// the given key order.
func PrintKeyValues(keys []string, values map[string]any) {
	width := 0
	for _, k := range keys {
		if _, ok := values[k]; ok {
			width = max(width, len(k))
		}
	}
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		fmt.Fprintf(Output, "%s %v\n", Bold(fmt.Sprintf("%-*s", width+1, k+":")), v)
	}
}

// PrintSuccess prints a success message with green checkmark.
func PrintSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", Green("✓"), message)
}

// PrintError prints an error message with red X.
func PrintError(message string) {
	fmt.Fprintf(Output, "%s %s\n", Red("✗"), message)
}

// PrintWarning prints a warning message with yellow exclamation.
func PrintWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", Yellow("⚠"), message)
}

// PrintInfo prints an info message with blue dot.
func PrintInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", Blue("•"), message)
}

// Indent prefixes every line of s with n spaces.
func Indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n") + "\n"
}
