package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/client"
	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)

	versionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

var statusCmd = &cli.Command{
	Name:    "status",
	Aliases: []string{"st"},
	Usage:   "Show the last seen version of every watched app",
	Action:  statusCommand,
}

func statusCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	h, err := host.New(host.WithLogger(log.Default()))
	if err != nil {
		return err
	}
	defer h.Close()

	if len(cfg.Watches) == 0 {
		fmt.Println(dimStyle.Render("No apps watched. Add one with 'dcwatch add <category> <pkgname>'"))
	}

	for _, w := range cfg.Watches {
		svc := h.Service(w.Name())
		fmt.Println(renderWatch(w.Name(), cfg.URL(w), svc))
	}

	registered, err := client.IsRegistered(ctx)
	if err != nil {
		return fmt.Errorf("failed to check registration status: %w", err)
	}
	if registered {
		fmt.Println("✓ WhatsApp session is registered")
	} else if len(cfg.Dispatch.WhatsApp) > 0 {
		fmt.Println("✗ No WhatsApp session found, run 'dcwatch register' to authenticate")
	}

	return nil
}

func renderWatch(name, baseURL string, svc sensor.Service) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Catalog", baseURL)

	version := dimStyle.Render("never seen")
	if v, ok, err := svc.Values().GetValue(sensor.LastVersionKey); err != nil {
		version = dimStyle.Render("unavailable: " + err.Error())
	} else if ok {
		version = versionStyle.Render(v)
	}
	row("Version", version)

	if data, err := svc.Cache().Get([]byte(sensor.MetadataKey)); err == nil {
		var md sensor.Metadata
		if json.Unmarshal(data, &md) == nil {
			for _, f := range []string{"Name", "Update", "Size", "Website"} {
				if v, ok := md[f]; ok && v != nil {
					row(f, fmt.Sprint(v))
				}
			}
		}
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
