package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/internal/config"
)

func main() {
	app := &cli.Command{
		Name:  "dcwatch",
		Usage: "Watch dcstore apps and get notified about new versions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
				Value:   config.DefaultPath(),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Debug level",
			},
		},
		Commands: []*cli.Command{
			runCmd,
			checkCmd,
			statusCmd,
			addCmd,
			forgetCmd,
			registerCmd,
			versionCmd,
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
