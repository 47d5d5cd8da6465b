package main

import (
	"testing"
	"time"

	"github.com/d2verb/scenebridge/internal/daemon"
	"github.com/d2verb/scenebridge/internal/dispatch"
	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/host"
	"github.com/d2verb/scenebridge/internal/metrics"
	"github.com/d2verb/scenebridge/internal/preview"
)

func TestSceneView(t *testing.T) {
	// Arrange
	info := dispatch.SceneInfo{
		Name:           "Scene",
		ObjectCount:    1,
		Objects:        []dispatch.ObjectSummary{{Name: "Cube", Type: host.TypeCube, Location: host.Vec3{1, 2, 3}}},
		MaterialsCount: 2,
		FrameCurrent:   7,
	}

	// Act
	v := sceneView(info)

	// Assert
	if v.Name != "Scene" || v.Materials != 2 || v.Frame != 7 || len(v.Objects) != 1 {
		t.Fatalf("view = %+v", v)
	}
	if v.Objects[0].Type != "CUBE" || v.Objects[0].Location != [3]float64{1, 2, 3} {
		t.Errorf("object row = %+v", v.Objects[0])
	}
}

func TestMetricsView(t *testing.T) {
	// Arrange
	m := metrics.SceneMetrics{
		Scene:       "Scene",
		ObjectCount: 3,
		Objects:     metrics.ObjectCounts{Total: 3, Meshes: 1, Lights: 1, Cameras: 1},
		Polygons:    6,
		MemoryBytes: 4096,
	}

	// Act
	v := metricsView(m)

	// Assert
	if v.Objects != 3 || v.Meshes != 1 || v.Cameras != 1 || v.Polygons != 6 || v.MemoryBytes != 4096 {
		t.Errorf("view = %+v", v)
	}
}

func TestPreviewRows(t *testing.T) {
	// Arrange
	sessions := []preview.Info{{
		Port: 9877, Transport: preview.TransportWebSocket, State: preview.StateStreaming,
		FPS: 10, Width: 640, Height: 360, Format: frame.FormatJPEG, Clients: 2, FramesSent: 5,
	}}

	// Act
	rows := previewRows(sessions)

	// Assert
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	r := rows[0]
	if r.Transport != "websocket" || r.State != "streaming" || r.Format != "JPEG" || r.Clients != 2 {
		t.Errorf("row = %+v", r)
	}
}

func TestServerStatusView(t *testing.T) {
	// Arrange
	st := daemon.ServerStatus{
		Version:           "1.0",
		PID:               10,
		Addr:              "127.0.0.1:9876",
		UptimeSeconds:     61.5,
		ActiveConnections: 2,
		BusyConnections:   1,
		Previews:          []preview.Info{{Port: 1}},
	}

	// Act
	v := serverStatusView(st, "/tmp/log")

	// Assert
	if v.State != "running" || v.Uptime != 61500*time.Millisecond || v.Previews != 1 || v.LogPath != "/tmp/log" {
		t.Errorf("view = %+v", v)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{"JPEG": "jpg", "png": "png", "TIFF": "tiff", "webp": "webp"}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
