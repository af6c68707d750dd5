package main

import (
	"github.com/spf13/cobra"

	"mixlingo/internal/serverrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var runPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return serverrun.Run(cmd.Context(), cfg, serverrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Preflight:   runPreflight,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging (source locations)")
	cmd.Flags().BoolVar(&runPreflight, "preflight", false, "Probe directories and configured capabilities before binding")
	return cmd
}
