package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/internal/config"
)

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "Add an app to the watch list",
	ArgsUsage: "<category> <pkgname>",
	Action:    addCommand,
}

func addCommand(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: dcwatch add <category> <pkgname>")
	}
	w := config.Watch{
		Category: cmd.Args().Get(0),
		Pkgname:  cmd.Args().Get(1),
	}

	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if _, ok := cfg.Find(w.Name()); ok {
		fmt.Printf("%s is already watched\n", w.Name())
		return nil
	}

	cfg.Watches = append(cfg.Watches, w)
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Printf("✓ Watching %s\n", w.Name())
	return nil
}
