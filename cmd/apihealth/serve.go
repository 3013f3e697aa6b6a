package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/httpapi"
	apimw "github.com/hamed0406/apihealth/internal/httpapi/middleware"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API; passes run on POST /api/run",
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

			api := httpapi.NewServer(logger, a.Runner, a.Endpoints, a.States, a.Metrics, httpapi.Options{
				Keys:           apimw.Keys{Public: a.Config.PublicAPIKeys, Admin: a.Config.AdminAPIKeys},
				AllowedOrigins: a.Config.AllowedOrigins,
				RateLimitRPM:   a.Config.RateLimitRPM,
				RateLimitBurst: a.Config.RateLimitBurst,
			})
			srv := &http.Server{
				Addr:              a.Config.Addr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("api_listen", zap.String("addr", a.Config.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("api_shutdown")
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}
