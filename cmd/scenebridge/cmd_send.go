package main

import (
	"github.com/d2verb/scenebridge/internal/protocol"
)

type SendCmd struct {
	Type   string   `arg:"" help:"Command type (e.g. get_scene_info)" predictor:"command-type"`
	Params string   `arg:"" optional:"" help:"Params as a JSON object"`
	Set    []string `short:"p" name:"param" help:"Param as key=value; the value is parsed as JSON when possible"`
}

func (c *SendCmd) Run(g *Globals) error {
	params, err := parseParams(c.Params, c.Set)
	if err != nil {
		return err
	}
	cl, err := g.newClient()
	if err != nil {
		return err
	}

	resp, err := cl.Send(protocol.NewCommand(c.Type, params))
	if err != nil {
		return errDaemonNotRunning(cl.Addr())
	}
	if err := printJSON(resp); err != nil {
		return err
	}
	if !resp.OK() {
		return &ExitError{Code: errCommandFailed(resp).Code}
	}
	return nil
}
