package main

import (
	"fmt"
	"os"

	"github.com/d2verb/scenebridge/internal/config"
	"github.com/d2verb/scenebridge/internal/editor"
	"github.com/d2verb/scenebridge/internal/ui"
)

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
	Path ConfigPathCmd `cmd:"" help:"Print the config file path"`
	Edit ConfigEditCmd `cmd:"" help:"Open the config file in $EDITOR"`
	Init ConfigInitCmd `cmd:"" help:"Write a config file with the defaults"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if g.JSON {
		return printJSON(cfg)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Output, string(data))
	return nil
}

type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(g *Globals) error {
	path, err := g.configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Output, path)
	return nil
}

type ConfigEditCmd struct{}

func (c *ConfigEditCmd) Run(g *Globals) error {
	path, err := g.configPath()
	if err != nil {
		return err
	}
	defaults, err := config.DefaultConfig().Marshal()
	if err != nil {
		return err
	}
	if _, err := editor.Seed(path, defaults); err != nil {
		return err
	}

	ed, err := editor.Find()
	if err != nil {
		return err
	}
	if err := editor.Open(ed, path); err != nil {
		return err
	}

	if _, err := config.Load(path); err != nil {
		ui.PrintWarning(fmt.Sprintf("Config has errors: %v", err))
		return &ExitError{Code: exitError}
	}
	ui.PrintSuccess("Config is valid")
	return nil
}

type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing config file"`
}

func (c *ConfigInitCmd) Run(g *Globals) error {
	path, err := g.configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Wrote %s", path))
	return nil
}
