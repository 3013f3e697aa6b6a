package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/hamed0406/apihealth/internal/config"
)

func newPreflightCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the configuration without contacting any backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return preflight(cmd, config.Load(v))
		},
	}
}

func preflight(cmd *cobra.Command, cfg config.Config) error {
	ok := func(msg string) { fmt.Fprintln(cmd.OutOrStdout(), "✔", msg) }
	warn := func(msg string) { fmt.Fprintln(cmd.ErrOrStderr(), "⚠", msg) }

	ok("config_backend=" + cfg.ConfigBackend)
	ok("state_backend=" + cfg.StateBackend)
	if cfg.NeedsAWS() {
		ok("aws_region=" + cfg.AWSRegion)
	}
	for _, w := range cfg.Warnings() {
		warn(w)
	}

	err := cfg.Validate()
	for _, e := range multierr.Errors(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "✖", e)
	}
	if err != nil {
		return err
	}
	ok("preflight passed")
	return nil
}
