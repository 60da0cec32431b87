package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "./data/config.yaml"

func main() {
	app := &cli.App{
		Name:  "gridflow",
		Usage: "Receive grid telemetry over UDP, dispatch it by priority and fan it out",
		Commands: []*cli.Command{
			runCmd(),
			validateCmd(),
			statsCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("gridflow failed", "error", err)
		os.Exit(1)
	}
}

func configFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   defaultConfigPath,
		Usage:   usage,
		EnvVars: []string{"GRIDFLOW_CONFIG"},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func printf(c *cli.Context, format string, args ...any) {
	_, _ = fmt.Fprintf(c.App.Writer, format, args...)
}
