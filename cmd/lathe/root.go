package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "lathe",
		Short:         "Scene-split parallel video encoding",
		Long: `lathe splits a video into scene-aligned chunks, encodes them in
parallel through external encoders, optionally searches per-chunk
quantizers toward a perceptual quality target, and concatenates the
results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newEncodeCommand(&configFlag))
	rootCmd.AddCommand(newPlanCommand(&configFlag))
	rootCmd.AddCommand(newStatusCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
