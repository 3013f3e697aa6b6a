package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/app"
	"github.com/hamed0406/apihealth/internal/config"
	"github.com/hamed0406/apihealth/internal/logging"
)

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "apihealth",
		Short: "API health monitor",
		Long: "apihealth probes a set of HTTP endpoints, stores the last known state of each\n" +
			"and sends a notification whenever an endpoint goes UP or DOWN.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML, TOML or JSON settings file")
	if err := config.BindFlags(cmd, v); err != nil {
		panic(err)
	}

	cmd.AddCommand(newRunCmd(v), newServeCmd(v), newPreflightCmd(v))
	return cmd
}

// setup loads settings, opens the log and wires the app.
func setup(cmd *cobra.Command, v *viper.Viper) (*app.App, *zap.Logger, error) {
	cfg := config.Load(v)
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogStderr)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("app_init_failed", zap.Error(err))
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}
