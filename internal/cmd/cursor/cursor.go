// Package cursor holds the operational commands for inspecting and
// force-setting the sync cursor. Setting the cursor backwards makes the next
// run re-fetch and re-deliver records; use with care.
package cursor

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/config"
	"github.com/seclytics/sirsync/internal/cursor"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "cursor",
		Short: "Inspects or overrides the sync cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newSetCommand())
	return cmd
}

func openStore(ctx context.Context, configPath string, logger *zap.Logger) (cursor.Store, string, func(), error) {
	c, err := config.NewSIRSyncFromFile(configPath)
	if err != nil {
		return nil, "", nil, err
	}

	store, cleanup, err := config.InitializeCursorStore(ctx, c, logger)
	if err != nil {
		return nil, "", nil, err
	}

	key := c.Sync.Cursor.Key
	if key == "" {
		key = cursor.DefaultKey
	}
	return store, key, cleanup, nil
}

func newGetCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Prints the stored cursor value",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			store, key, cleanup, err := openStore(cmd.Context(), configPath, logger.Named("cursor.get"))
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			value, found, err := store.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("(no cursor stored)")
				return nil
			}

			fmt.Println(value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newSetCommand() *cobra.Command {
	var configPath string
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Overrides the stored cursor value",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			if _, err := cursor.Parse(value); err != nil {
				return err
			}

			store, key, cleanup, err := openStore(cmd.Context(), configPath, logger.Named("cursor.set"))
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			if err := store.Put(cmd.Context(), key, value); err != nil {
				return err
			}

			fmt.Println(value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&value, "value", "v", "", `Cursor value, "<id>" or "<id>@<RFC3339>"`)
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("value")
	return cmd
}
