package sync

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/config"
	"github.com/seclytics/sirsync/internal/syncer"
)

func newStartCommand() *cobra.Command {
	var configPath string
	var addr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Runs the sync on an interval and serves run status over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("sirsync.sync.start")
			l.Info("starting scheduled sync!",
				zap.Duration("interval", interval),
				zap.String("addr", addr),
			)

			c, err := config.NewSIRSyncFromFile(configPath)
			if err != nil {
				return err
			}

			if pw := viper.GetString("pkcs12_password"); pw != "" {
				c.Sync.Credential.PKCS12Password = pw
			}

			s, cleanup, err := config.InitializeSyncer(ctx, c, l)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := syncer.NewServer(l.Named("server"))
			srv.RegisterSyncer(s)

			go func() {
				if err := srv.Start(ctx, addr); err != nil {
					l.Error("status server error", zap.Error(err))
				}
			}()

			// one run immediately, then on the interval; runs never
			// overlap because the loop is single-threaded
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if _, err := s.Run(ctx); err != nil {
					l.Error("sync run failed", zap.Error(err))
				}

				select {
				case <-ctx.Done():
					l.Info("stopping scheduled sync")
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Status server listen address")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "Time between sync runs")
	cmd.MarkFlagRequired("config")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIRSYNC")

	return cmd
}
