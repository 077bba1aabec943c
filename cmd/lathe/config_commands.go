package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lathe/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# loaded from %s\n", path)
			} else {
				fmt.Fprintf(out, "# defaults (no config file at %s)\n", path)
			}
			fmt.Fprintf(out, "encoder = %s\n", cfg.Encode.Encoder)
			fmt.Fprintf(out, "workers = %d\n", cfg.Encode.Workers)
			fmt.Fprintf(out, "chunk_order = %s\n", cfg.Encode.ChunkOrder)
			fmt.Fprintf(out, "min_scene_len = %d\n", cfg.Scenes.MinSceneLen)
			fmt.Fprintf(out, "extra_split = %d\n", cfg.Scenes.ExtraSplit)
			if cfg.TargetQualityEnabled() {
				fmt.Fprintf(out, "target_quality = %.2f (%s)\n", cfg.TargetQuality.Target, cfg.TargetQuality.Metric)
			} else {
				fmt.Fprintln(out, "target_quality = disabled")
			}
			return nil
		},
	}
}
