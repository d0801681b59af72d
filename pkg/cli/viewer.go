package cli

import (
	"github.com/spf13/cobra"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/server"
)

// ViewerOptions holds flags for the viewer command.
type ViewerOptions struct {
	ExporterOptions
	Port      string
	BridgeURL string
	LedgerDir string
}

// NewViewerCommand creates the viewer command.
func NewViewerCommand() *cobra.Command {
	opts := &ViewerOptions{}

	cmd := &cobra.Command{
		Use:   "viewer",
		Short: "Serve the web dashboard over fresh snapshots",
		Long: `Serve the GPIO dashboard and JSON API.

Every data, stats and CSV request first copies the live database out of the
bridge's container to the snapshot path, then reads the copy.

Example:
  gpiolog viewer --port 5000
  gpiolog viewer --source /var/lib/gpiolog/database.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := viewerConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return server.RunViewer(ctx, cfg)
		},
	}

	addExporterFlags(cmd, &opts.ExporterOptions)
	cmd.Flags().StringVarP(&opts.Port, "port", "p", config.DefaultPort, "HTTP port")
	cmd.Flags().StringVar(&opts.BridgeURL, "bridge-url", config.DefaultBridgeURL, "bridge RPC base URL")
	cmd.Flags().StringVar(&opts.LedgerDir, "ledger-dir", "", "export ledger directory (default ~/.gpiolog/ledger)")

	return cmd
}

// viewerConfig loads the environment and applies the flags that were set.
func viewerConfig(cmd *cobra.Command, opts *ViewerOptions) (config.Viewer, error) {
	cfg, err := config.LoadViewer()
	if err != nil {
		return config.Viewer{}, err
	}

	applyExporterFlags(cmd, &opts.ExporterOptions, &cfg.Exporter)
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.Port
	}
	if flags.Changed("bridge-url") {
		cfg.BridgeURL = opts.BridgeURL
	}
	if flags.Changed("ledger-dir") {
		cfg.LedgerDir = opts.LedgerDir
	}

	return cfg, nil
}
