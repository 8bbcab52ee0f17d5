package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFile string
	var configFile string

	app := newAppContext(&envFile, &configFile)

	rootCmd := &cobra.Command{
		Use:           "vod-station",
		Short:         "Video catalog aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load KEY=value lines into the environment first")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (overrides VOD_STATION_CONFIG)")

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newCollectCommand(app))
	rootCmd.AddCommand(newReelsCommand(app))
	rootCmd.AddCommand(newSourcesCommand(app))
	rootCmd.AddCommand(newProbeCommand(app))
	rootCmd.AddCommand(newStatusCommand(app))
	rootCmd.AddCommand(newCheckCommand(app))

	return rootCmd
}
