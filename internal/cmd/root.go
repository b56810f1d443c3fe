package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cursorcmd "github.com/seclytics/sirsync/internal/cmd/cursor"
	synccmd "github.com/seclytics/sirsync/internal/cmd/sync"
)

func NewRootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "sirsync",
		Short: "Moves incident reports from the record-management system into the incident portal",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(synccmd.NewCommand())
	cmd.AddCommand(cursorcmd.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
