package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cbzxl/internal/config"
	"cbzxl/internal/ledger"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Ledger maintenance",
	}
	dbCmd.AddCommand(newDBGCCommand(ctx))
	dbCmd.AddCommand(newDBResetCommand(ctx))
	return dbCmd
}

func newDBGCCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gc [library-root]",
		Short: "Drop ledger rows whose archives no longer exist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.Paths.Root
			if len(args) > 0 {
				if root, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}

			store, err := ledger.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			removed, err := store.GarbageCollect(cmd.Context(), root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale ledger rows\n", removed)
			return nil
		},
	}
}

func newDBResetCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget all recorded conversions",
		Long: "Clears the entire ledger so the next run reprocesses every " +
			"archive. Converted archives are not restored; this only resets " +
			"the bookkeeping.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("refusing to clear %s without --force", cfg.DatabasePath())
			}

			store, err := ledger.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			removed, err := store.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d ledger rows\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm clearing the ledger")
	return cmd
}
