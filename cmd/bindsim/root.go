package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/controllers/logging"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "bindsim",
		Short: "bindsim replays activation scripts against subcontroller scenes.",
		Long: `bindsim builds entities and their controllers and subcontrollers ` +
			`from a YAML scene, replays the scene's activation script and ` +
			`reports which components ended up bound.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := logging.ConfigFromEnv(".env")
			if logLevel != "" {
				cfg.Level = logLevel
			}
			cfg.Output = cmd.ErrOrStderr()

			logging.Init(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}
