package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/server"
)

// BridgeOptions holds flags for the bridge command.
type BridgeOptions struct {
	Database string
	Mode     string
	Interval time.Duration
	Addr     string
}

// NewBridgeCommand creates the bridge command.
func NewBridgeCommand() *cobra.Command {
	opts := &BridgeOptions{}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the bridge that owns the live sample log",
		Long: `Run the bridge process that owns the live gpio_log table.

In remote mode the controller logs samples by calling log_data over the
bridge RPC. In timer mode the bridge logs an alternating 0/1 sample itself
on a fixed interval.

Example:
  gpiolog bridge --mode remote --db /home/arduino/app/database.db
  gpiolog bridge --mode timer --interval 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bridgeConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return server.RunBridge(ctx, cfg)
		},
	}

	addBridgeFlags(cmd, opts)
	return cmd
}

func addBridgeFlags(cmd *cobra.Command, opts *BridgeOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", config.DefaultDBPath, "path to the live SQLite database")
	cmd.Flags().StringVar(&opts.Mode, "mode", config.ModeRemote, "producer mode (remote|timer)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", config.DefaultTickInterval, "timer mode sampling interval")
	cmd.Flags().StringVar(&opts.Addr, "addr", config.DefaultBridgeAddr, "bridge RPC listen address")
}

// bridgeConfig loads the environment and applies the flags that were set.
func bridgeConfig(cmd *cobra.Command, opts *BridgeOptions) (config.Bridge, error) {
	cfg, err := config.LoadBridge()
	if err != nil {
		return config.Bridge{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.Mode
	}
	if flags.Changed("interval") {
		cfg.TickInterval = opts.Interval
	}
	if flags.Changed("addr") {
		cfg.Addr = opts.Addr
	}

	return cfg, cfg.Validate()
}
