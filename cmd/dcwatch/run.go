package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/log"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Poll the configured apps on a schedule and dispatch new version events",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "schedule",
			Aliases: []string{"s"},
			Usage:   "Cron spec overriding the configured schedule",
		},
	},
	Action: runCommand,
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s := cmd.String("schedule"); s != "" {
		cfg.Schedule = s
	}

	d, cleanup, err := newDispatcher(ctx, cfg.Dispatch)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := host.New(
		host.WithLogger(log.Default()),
		host.WithEmitter(d),
		host.WithSchedule(cfg.Schedule),
	)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := registerWatches(ctx, h, cfg, cfg.Watches); err != nil {
		return err
	}

	return h.Start(ctx)
}
