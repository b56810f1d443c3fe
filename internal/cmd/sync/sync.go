package sync

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "sync",
		Short: "Manages incremental incident report syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newInvokeCommand())
	cmd.AddCommand(newStartCommand())
	return cmd
}
