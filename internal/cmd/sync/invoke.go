package sync

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/config"
)

func newInvokeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Runs one sync: fetch new reports, transform, deliver, advance the cursor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("sirsync.sync.invoke")
			l.Info("starting sync!")

			c, err := config.NewSIRSyncFromFile(configPath)
			if err != nil {
				return err
			}

			// the bundle password stays out of config files in most
			// deployments
			if pw := viper.GetString("pkcs12_password"); pw != "" {
				c.Sync.Credential.PKCS12Password = pw
			}

			s, cleanup, err := config.InitializeSyncer(ctx, c, l)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := s.Run(ctx)
			if err != nil {
				return err
			}

			bs, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(bs))

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIRSYNC")

	return cmd
}
