package main

import (
	"fmt"
	"os"

	"lexpay/config"
	"lexpay/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCommand() *cobra.Command {
	var configFile string
	a := &app{}

	root := &cobra.Command{
		Use:           "lexpay",
		Short:         "Payment orchestration for the legal document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		a.cfg = cfg
		// Logs go to stderr so command output on stdout stays parseable.
		a.log = logger.NewWithWriter(cfg.Log.Level, cfg.Log.Pretty, cmd.ErrOrStderr())
		return nil
	}

	root.AddCommand(serveCommand(a))
	root.AddCommand(migrateCommand(a))
	root.AddCommand(watchCommand(a))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lexpay: %v\n", err)
		os.Exit(1)
	}
}
