package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/matheusbucater/trab-final-str-modulo3/pkg/gridflow"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the runtime using the provided config",
		Flags: []cli.Flag{
			configFlag("Path to the configuration file"),
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override listener.port",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := gridflow.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if c.IsSet("port") {
				cfg.Listener.Port = c.Int("port")
			}

			flow, err := gridflow.ConfFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			return flow.Run(ctx)
		},
	}
}

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Load and validate a config file without starting the runtime",
		Flags: []cli.Flag{
			configFlag("Path to the configuration file to validate"),
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			cfg, err := gridflow.LoadConfig(path)
			if err != nil {
				return err
			}
			printf(c, "config %s looks good: udp %s, metrics %s, store %s\n",
				path, cfg.Listener.Address(), cfg.Metrics.Addr, storeKind(cfg))
			return nil
		},
	}
}

func storeKind(cfg *gridflow.Config) string {
	if cfg.Timescale.ConnString == "" {
		return "none"
	}
	return "timescaledb table " + cfg.Timescale.Table
}
