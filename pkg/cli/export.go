package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/snapshot"
	"github.com/nicktill/gpiolog/pkg/store"
)

// ExporterOptions holds the snapshot flags shared by export and viewer.
type ExporterOptions struct {
	Output     string
	Container  string
	SearchRoot string
	DBName     string
	Source     string
	Docker     string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExporterOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the live database to the host once",
		Long: `Copy the live database out of the bridge's container and report how
many entries it holds.

The single running container is found with docker ps, the database inside
it with find, and the bytes are copied with cat. An existing snapshot is only
replaced once the copy has completed.

Example:
  gpiolog export
  gpiolog export -o ./gpio_data.db --container arduino`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	addExporterFlags(cmd, opts)
	return cmd
}

func runExport(cmd *cobra.Command, opts *ExporterOptions) error {
	cfg, err := config.LoadExporter()
	if err != nil {
		return err
	}
	applyExporterFlags(cmd, opts, &cfg)

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== GPIO Data Exporter ===")

	result, err := snapshot.New(snapshot.NewLocator(cfg, snapshot.ExecRunner{})).Export(ctx, cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if result.Container != "" {
		fmt.Fprintf(out, "Container: %s\n", result.Container)
	}
	fmt.Fprintf(out, "Database: %s\n", result.SourcePath)
	fmt.Fprintf(out, "Copied %d bytes in %v (xxhash %s)\n", result.Bytes, result.Duration.Round(time.Millisecond), result.Checksum)

	snap, err := store.OpenSnapshot(result.Destination)
	if err != nil {
		return err
	}
	defer snap.Close()
	total, err := snap.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Total entries: %d\n", total)
	fmt.Fprintf(out, "Saved to: %s\n", result.Destination)
	return nil
}

func addExporterFlags(cmd *cobra.Command, opts *ExporterOptions) {
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "snapshot path (default ~/Desktop/gpio_data.db)")
	cmd.Flags().StringVar(&opts.Container, "container", "", "only consider containers whose name matches")
	cmd.Flags().StringVar(&opts.SearchRoot, "search-root", config.DefaultSearchRoot, "directory searched inside the container")
	cmd.Flags().StringVar(&opts.DBName, "db-name", config.DefaultDBName, "database file name searched for")
	cmd.Flags().StringVar(&opts.Source, "source", "", "copy from this host path instead of a container")
	cmd.Flags().StringVar(&opts.Docker, "docker", config.DefaultDockerBin, "docker-compatible CLI to run")
}

func applyExporterFlags(cmd *cobra.Command, opts *ExporterOptions, cfg *config.Exporter) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.SnapshotPath = opts.Output
	}
	if flags.Changed("container") {
		cfg.Container = opts.Container
	}
	if flags.Changed("search-root") {
		cfg.SearchRoot = opts.SearchRoot
	}
	if flags.Changed("db-name") {
		cfg.DBName = opts.DBName
	}
	if flags.Changed("source") {
		cfg.SourcePath = opts.Source
	}
	if flags.Changed("docker") {
		cfg.DockerBin = opts.Docker
	}
}
