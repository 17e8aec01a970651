package main

import (
	"context"
	"os"

	"github.com/Priya8975/leadsync/internal/config"
	"github.com/Priya8975/leadsync/internal/store"
	"github.com/spf13/cobra"
)

// NewCursorCommand creates the cursor command group.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect the stored sync cursor",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored cursor and its resume token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := rootOpts.load(os.Stderr)
			if err != nil {
				return err
			}
			if err := cfg.Require(config.KeyDatabaseURL); err != nil {
				return err
			}

			ctx := context.Background()
			pg, err := store.NewPostgres(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pg.Close()

			cursor, err := store.NewCursorStore(pg, cfg.Sync.CursorID).Read(ctx)
			if err != nil {
				return err
			}
			return printCursor(cmd.OutOrStdout(), rootOpts.Output, cfg.Sync.CursorID, cursor)
		},
	})

	return cmd
}
