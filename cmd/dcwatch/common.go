package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/dispatch"
	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/client"
	"github.com/rubiojr/dcwatch/internal/config"
	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
)

// loadConfig reads the config file and applies the log level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	return cfg, nil
}

// newDispatcher builds the sinks selected in cfg. The returned func
// disconnects the WhatsApp session, if any.
func newDispatcher(ctx context.Context, cfg config.DispatchConfig) (*dispatch.Dispatcher, func(), error) {
	opts := []dispatch.Option{dispatch.WithLogger(log.Named("dispatch"))}
	cleanup := func() {}

	if cfg.Stdout {
		opts = append(opts, dispatch.WithSink(dispatch.NewLogSink(os.Stdout)))
	}

	if len(cfg.WhatsApp) > 0 {
		recipients, err := parseRecipients(cfg.WhatsApp)
		if err != nil {
			return nil, nil, err
		}
		c, err := client.GetClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("error getting client: %w", err)
		}
		cleanup = c.Disconnect
		opts = append(opts, dispatch.WithSink(dispatch.NewWhatsAppSink(c, recipients...)))
	}

	return dispatch.New(opts...), cleanup, nil
}

// registerWatches creates one sensor per watch and registers it with h.
// The first sensor failing setup aborts and shuts down the ones already
// registered.
func registerWatches(ctx context.Context, h *host.Host, cfg *config.Config, watches []config.Watch) error {
	for _, w := range watches {
		s, err := sensor.New(sensor.Config{
			BaseURL:  cfg.URL(w),
			Category: w.Category,
			Pkgname:  w.Pkgname,
		}, sensor.WithService(h.Service(w.Name())))
		if err == nil {
			err = h.Register(ctx, s)
		}
		if err != nil {
			h.Stop()
			return fmt.Errorf("watch %s: %w", w.Name(), err)
		}
	}
	return nil
}

// selectWatches returns the watches named in args, or all of them.
func selectWatches(cfg *config.Config, args []string) ([]config.Watch, error) {
	if len(args) == 0 {
		return cfg.Watches, nil
	}
	var watches []config.Watch
	for _, name := range args {
		w, ok := cfg.Find(name)
		if !ok {
			return nil, fmt.Errorf("watch %s is not configured", name)
		}
		watches = append(watches, w)
	}
	return watches, nil
}
