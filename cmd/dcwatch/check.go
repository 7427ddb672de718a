package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/dispatch"
	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/log"
)

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "Run a single poll cycle and print new version events",
	ArgsUsage: "[category/pkgname...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "notify",
			Usage: "Also deliver events to the configured dispatch targets",
		},
	},
	Action: checkCommand,
}

func checkCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	watches, err := selectWatches(cfg, cmd.Args().Slice())
	if err != nil {
		return err
	}

	var emitter *dispatch.Dispatcher
	if cmd.Bool("notify") {
		dc := cfg.Dispatch
		dc.Stdout = true
		d, cleanup, err := newDispatcher(ctx, dc)
		if err != nil {
			return err
		}
		defer cleanup()
		emitter = d
	} else {
		emitter = dispatch.New(
			dispatch.WithLogger(log.Named("dispatch")),
			dispatch.WithSink(dispatch.NewLogSink(os.Stdout)),
		)
	}

	h, err := host.New(host.WithLogger(log.Default()), host.WithEmitter(emitter))
	if err != nil {
		return err
	}
	defer h.Close()

	if err := registerWatches(ctx, h, cfg, watches); err != nil {
		return err
	}
	defer h.Stop()

	return h.PollAll(ctx)
}
