package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"
)

var (
	version = "dev"
	commit  = "none"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `help:"Config file (default: ~/.scenebridge/config.yaml)" type:"path" env:"SCENEBRIDGE_CONFIG"`
	Addr   string `help:"Control server address (host:port), overrides the config file" env:"SCENEBRIDGE_ADDR"`
	JSON   bool   `help:"Print raw JSON results"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Start the scene server"`
	Stop    StopCmd    `cmd:"" help:"Stop the background server"`
	Status  StatusCmd  `cmd:"" help:"Show server status"`
	Scene   SceneCmd   `cmd:"" help:"Show the objects in the scene"`
	Send    SendCmd    `cmd:"" help:"Send a raw command and print the response"`
	Metrics MetricsCmd `cmd:"" help:"Show scene metrics"`
	Capture CaptureCmd `cmd:"" help:"Capture the viewport to an image file"`
	Preview PreviewCmd `cmd:"" help:"Manage live viewport previews"`
	Cfg     ConfigCmd  `cmd:"" name:"config" help:"Inspect or edit the configuration"`
	Logs    LogsCmd    `cmd:"" help:"Show server logs"`

	Completion kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
	Version    VersionCmd                   `cmd:"" help:"Show version"`
}

func main() {
	cli := CLI{}
	parser := kong.Must(&cli,
		kong.Name("scenebridge"),
		kong.Description("Remote control and live preview for a 3D scene"),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	kongplete.Complete(parser,
		kongplete.WithPredictor("command-type", newCommandTypePredictor()),
		kongplete.WithPredictor("format", newFormatPredictor()),
		kongplete.WithPredictor("transport", newTransportPredictor()),
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(); err != nil {
		os.Exit(handleError(err))
	}
}

// handleError prints err and returns the process exit code.
func handleError(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(os.Stderr, exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}
