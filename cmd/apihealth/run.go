package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check every endpoint once",
		Long: "run performs a single pass and exits. It exits non-zero only if the endpoint\n" +
			"configuration can't be loaded; failed notifications or state writes are logged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, logger, err := setup(cmd, v)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			sum, err := a.Runner.RunOnce(ctx)

			if url := a.Config.PushgatewayURL; url != "" {
				pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if perr := a.Metrics.Push(pctx, url, "apihealth_run"); perr != nil {
					logger.Warn("metrics_push_failed", zap.Error(perr))
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d endpoints, %d up, %d down, %d changed, %d notified\n",
				sum.RunID, sum.Endpoints, sum.Up, sum.Down, sum.Changed, sum.Notified)
			return nil
		},
	}
}
