package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
)

var forgetCmd = &cli.Command{
	Name:      "forget",
	Usage:     "Forget the last seen version so the next poll notifies again",
	ArgsUsage: "<category/pkgname>",
	Action:    forgetCommand,
}

func forgetCommand(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: dcwatch forget <category/pkgname>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, ok := cfg.Find(name); !ok {
		return fmt.Errorf("watch %s is not configured", name)
	}

	h, err := host.New(host.WithLogger(log.Default()))
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.Service(name).Values().DeleteValue(sensor.LastVersionKey); err != nil {
		return fmt.Errorf("forgetting %s: %w", name, err)
	}

	fmt.Printf("✓ Forgot the last version of %s\n", name)
	return nil
}
