package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/dcwatch/internal/client"
)

var registerCmd = &cli.Command{
	Name:   "register",
	Usage:  "Link a WhatsApp account to deliver notifications by scanning a QR code",
	Action: registerCommand,
}

func registerCommand(ctx context.Context, cmd *cli.Command) error {
	registered, err := client.IsRegistered(ctx)
	if err != nil {
		return fmt.Errorf("failed to check registration status: %w", err)
	}

	if registered {
		fmt.Println("✓ Already registered with WhatsApp")
		fmt.Println("Use 'dcwatch status' to check your registration status")
		return nil
	}

	c, err := client.NewClientForRegistration(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize client for registration: %w", err)
	}
	defer c.Disconnect()

	if err := c.Register(ctx); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Println("\nRegistration completed successfully!")
	fmt.Println("When WhatsApp on your phone shows that the registration is finished,")
	fmt.Println("press Ctrl+C to exit this command.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	return nil
}
