package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lathe/internal/logging"
	"lathe/internal/workflow"
)

func newEncodeCommand(configFlag *string) *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a video through scene-split parallel workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			if flags.input == "" {
				return errors.New("encode: --input is required")
			}
			if flags.output == "" {
				return errors.New("encode: --output is required")
			}

			runner, err := workflow.New(workflow.Options{
				Config: cfg,
				Input:  flags.input,
				Output: flags.output,
				Resume: flags.resume,
			})
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				OutputPaths: []string{
					"stderr",
					filepath.Join(runner.TempDir(), "lathe.log"),
					filepath.Join(cfg.Paths.LogDir, "lathe.log"),
				},
			})
			if err != nil {
				return err
			}
			runner.SetLogger(logger)

			progress := newEncodeProgress()
			defer progress.finish()
			runner.SetOnPlan(progress.start)
			runner.SetOnEvent(progress.handle)

			// Termination by signal flushes the journal and preserves the
			// working directory; the next --resume run continues.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runner.Run(ctx)
		},
	}

	flags.register(cmd)
	return cmd
}
