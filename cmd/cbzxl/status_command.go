package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cbzxl/internal/config"
	"cbzxl/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [library-root]",
		Short: "Check the environment before a run",
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

			checks := preflight.RunAll(cmd.Context(), cfg, root)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s\n", cfg.DatabasePath())
			fmt.Fprintln(out, renderPreflight(checks))
			if !preflight.AllPassed(checks) {
				return fmt.Errorf("environment not ready")
			}
			return nil
		},
	}
}
