package main

import (
	"github.com/d2verb/scenebridge/internal/metrics"
	"github.com/d2verb/scenebridge/internal/protocol"
	"github.com/d2verb/scenebridge/internal/ui"
)

type MetricsCmd struct{}

func (c *MetricsCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := send(cl, protocol.NewCommand(protocol.CmdGetSceneMetrics, nil))
	if err != nil {
		return err
	}
	if g.JSON {
		return printJSON(resp.Result)
	}

	var m metrics.SceneMetrics
	if err := resp.DecodeResult(&m); err != nil {
		return err
	}
	ui.PrintMetrics(metricsView(m))
	return nil
}

func metricsView(m metrics.SceneMetrics) ui.MetricsDetails {
	return ui.MetricsDetails{
		Scene:       m.Scene,
		FPS:         m.FPS,
		Frame:       m.FrameCurrent,
		FrameStart:  m.FrameStart,
		FrameEnd:    m.FrameEnd,
		Objects:     m.ObjectCount,
		Meshes:      m.Objects.Meshes,
		Lights:      m.Objects.Lights,
		Cameras:     m.Objects.Cameras,
		Empties:     m.Objects.Empties,
		Polygons:    m.Polygons,
		Vertices:    m.Vertices,
		Edges:       m.Edges,
		Materials:   m.Materials,
		MemoryBytes: m.MemoryBytes,
	}
}
