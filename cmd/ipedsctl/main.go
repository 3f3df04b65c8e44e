// Command ipedsctl inspects and converts IPEDS wide enrollment files
// without starting the web server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"ipedspulse/internal/config"
	"ipedspulse/internal/infrastructure"
	"ipedspulse/pkg/contracts"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configFile  string
	datasetFile string
	verbose     bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ipedsctl",
		Short: "Inspect and convert IPEDS enrollment files",
		Long: `ipedsctl reads the wide IPEDS enrollment file (one row per institution,
one column per metric and year), reshapes it into institution-year records
and reports on it.

The dataset location and reshape settings come from the same YAML file and
IPEDS_* environment variables as the web server.`,
		Version:       contracts.GetFullVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = infrastructure.CloseLogFile()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.datasetFile, "file", "f", "", "wide enrollment file (.csv or .xlsx); overrides the configured path")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newReshapeCmd(opts),
		newValidateCmd(opts),
		newSummaryCmd(opts),
	)
	return root
}

// load resolves configuration and builds a logger that writes to stderr so
// stdout stays machine readable.
func (o *globalOptions) load(cmd *cobra.Command) error {
	path := o.configFile
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.datasetFile != "" {
		cfg.Dataset.Path = o.datasetFile
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.cfg = cfg
	o.logger = logger.With(slog.String("command", cmd.Name()))
	return nil
}

// datasetPath returns the wide file to read.
func (o *globalOptions) datasetPath() string {
	return o.cfg.ResolvedPaths().ResolveDatasetFile()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
