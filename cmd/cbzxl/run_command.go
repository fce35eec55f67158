package main

import (
	"github.com/spf13/cobra"
)

// newRunCommand is the explicit spelling of the default action, for
// scripts that prefer `cbzxl run` over the bare command.
func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := newRunFlags()

	cmd := &cobra.Command{
		Use:   "run [library-root]",
		Short: "Convert archives under the library root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			return runConvert(cmd, ctx, flags, root)
		},
	}
	flags.register(cmd)
	return cmd
}
