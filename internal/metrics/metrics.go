// Package metrics collects scene statistics from the host.
package metrics

import (
	"context"
	"time"

	"github.com/d2verb/scenebridge/internal/host"
)

// ObjectCounts breaks the object total down by kind.
type ObjectCounts struct {
	Total   int `json:"total"`
	Meshes  int `json:"meshes"`
	Lights  int `json:"lights"`
	Cameras int `json:"cameras"`
	Empties int `json:"empties"`
	Other   int `json:"other"`
}

// Memory reports host memory use in bytes.
type Memory struct {
	Total  int64 `json:"total"`
	Meshes int64 `json:"meshes"`
	Images int64 `json:"images"`
}

// SceneMetrics is an immutable snapshot of the scene, computed per request.
type SceneMetrics struct {
	Scene        string       `json:"scene"`
	FPS          float64      `json:"fps"`
	FrameCurrent int          `json:"frame_current"`
	FrameStart   int          `json:"frame_start"`
	FrameEnd     int          `json:"frame_end"`
	ObjectCount  int          `json:"objectCount"`
	Objects      ObjectCounts `json:"objects"`
	Polygons     int          `json:"polygons"`
	Vertices     int          `json:"vertices"`
	Edges        int          `json:"edges"`
	Materials    int          `json:"materials"`
	Memory       Memory       `json:"memory"`
	MemoryBytes  int64        `json:"memoryBytes"`
	CollectedAt  time.Time    `json:"collected_at"`
}

// Collector gathers SceneMetrics through the host executor.
type Collector struct {
	exec *host.Executor
	now  func() time.Time
}

// New creates a collector.
func New(exec *host.Executor) *Collector {
	return &Collector{exec: exec, now: time.Now}
}

// Collect takes a fresh snapshot. Both host reads happen in a single executor
// task, so the snapshot is consistent with respect to other commands.
func (c *Collector) Collect(ctx context.Context) (*SceneMetrics, error) {
	var (
		objs  []host.Object
		stats host.SceneStats
	)
	err := c.exec.Do(ctx, "collect_scene_metrics", func(ctx context.Context, h host.Host) error {
		var err error
		if objs, err = h.EnumerateObjects(ctx); err != nil {
			return err
		}
		stats, err = h.CollectSceneStats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return build(objs, stats, c.now()), nil
}

func build(objs []host.Object, stats host.SceneStats, now time.Time) *SceneMetrics {
	m := &SceneMetrics{
		Scene:        stats.SceneName,
		FPS:          stats.FPS,
		FrameCurrent: stats.FrameCurrent,
		FrameStart:   stats.FrameStart,
		FrameEnd:     stats.FrameEnd,
		Materials:    stats.Materials,
		Memory: Memory{
			Total:  stats.MemoryTotal,
			Meshes: stats.MemoryMeshes,
			Images: stats.MemoryImages,
		},
		MemoryBytes: stats.MemoryTotal,
		CollectedAt: stats.CollectedAt,
	}
	if m.CollectedAt.IsZero() {
		m.CollectedAt = now
	}

	for _, o := range objs {
		m.Objects.Total++
		switch {
		case o.Type == host.TypeLight:
			m.Objects.Lights++
		case o.Type == host.TypeCamera:
			m.Objects.Cameras++
		case o.Type == host.TypeEmpty:
			m.Objects.Empties++
		case o.Type.IsMesh():
			m.Objects.Meshes++
		default:
			m.Objects.Other++
		}
		m.Polygons += o.Polygons
		m.Vertices += o.Vertices
		m.Edges += o.Edges
	}
	m.ObjectCount = m.Objects.Total
	return m
}
