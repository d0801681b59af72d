// Package cli implements the gpiolog command line.
package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the gpiolog root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpiolog",
		Short: "GPIO data logger",
		Long: `Log GPIO pin and LED state samples to SQLite and browse them.

The bridge owns the live database on the board. The viewer copies that
database out of the bridge's container on every request and serves a
dashboard with stats, CSV export and clear. Settings come from GPIOLOG_*
environment variables; flags override them.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewBridgeCommand())
	cmd.AddCommand(NewViewerCommand())
	cmd.AddCommand(NewExportCommand())

	return cmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, derived
// from the command's context when it has one.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
