package main

import (
	"github.com/d2verb/scenebridge/internal/dispatch"
	"github.com/d2verb/scenebridge/internal/protocol"
	"github.com/d2verb/scenebridge/internal/ui"
)

type SceneCmd struct{}

func (c *SceneCmd) Run(g *Globals) error {
	cl, err := g.newClient()
	if err != nil {
		return err
	}
	resp, err := send(cl, protocol.NewCommand(protocol.CmdGetSceneInfo, nil))
	if err != nil {
		return err
	}
	if g.JSON {
		return printJSON(resp.Result)
	}

	var info dispatch.SceneInfo
	if err := resp.DecodeResult(&info); err != nil {
		return err
	}
	ui.PrintScene(sceneView(info))
	return nil
}

func sceneView(info dispatch.SceneInfo) ui.SceneDetails {
	rows := make([]ui.ObjectRow, 0, len(info.Objects))
	for _, o := range info.Objects {
		rows = append(rows, ui.ObjectRow{
			Name:     o.Name,
			Type:     string(o.Type),
			Location: [3]float64(o.Location),
		})
	}
	return ui.SceneDetails{
		Name:      info.Name,
		Objects:   rows,
		Materials: info.MaterialsCount,
		Frame:     info.FrameCurrent,
	}
}
