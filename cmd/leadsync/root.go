package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/Priya8975/leadsync/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Output     string
}

var validOutputs = []string{"table", "json", "yaml"}

// NewRootCommand creates the leadsync command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "leadsync",
		Short: "Incremental lead event sync from Directus into Postgres",
		Long: `leadsync copies lead events from the Directus events collection into
Postgres staging and daily unique-lead tables, one timeboxed run at a time.

Each run resumes from the stored cursor and reports a resume token when it
stops before catching up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validOutputs, opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, validOutputs)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./leadsync.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "table", "output format: table, json, yaml")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCursorCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// load reads configuration and builds a logger writing to w.
func (o *RootOptions) load(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logging.NewLogger(w), nil
}
