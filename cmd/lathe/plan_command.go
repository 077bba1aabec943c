package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"lathe/internal/chunk"
	"lathe/internal/encoder"
	"lathe/internal/fileutil"
	"lathe/internal/media/ffprobe"
	"lathe/internal/scenes"
	"lathe/internal/services/scenedetect"
)

// newPlanCommand runs the probe and plan phases only and prints the chunk
// table, persisting the scene plan for a later encode run.
func newPlanCommand(configFlag *string) *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Detect scenes and print the chunk plan without encoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			if flags.input == "" {
				return errors.New("plan: --input is required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			enc, err := encoder.Parse(cfg.Encode.Encoder)
			if err != nil {
				return err
			}

			result, err := ffprobe.Inspect(ctx, "", flags.input)
			if err != nil {
				return err
			}
			info, err := result.Video()
			if err != nil {
				return err
			}
			if info.FrameCount <= 0 {
				if info.FrameCount, err = ffprobe.CountFrames(ctx, "", flags.input); err != nil {
					return err
				}
			}

			var zones []scenes.Zone
			if cfg.Scenes.ZonesFile != "" {
				if zones, err = scenes.ParseZonesFile(cfg.Scenes.ZonesFile, info.FrameCount, enc); err != nil {
					return err
				}
			}

			detected, err := scenedetect.Detect(ctx, flags.input, scenedetect.Options{
				MinSceneLen:     cfg.Scenes.MinSceneLen,
				DownscaleHeight: cfg.Scenes.DownscaleHeight,
				PixelFormat:     cfg.Scenes.DetectPixelFormat,
			})
			if err != nil {
				return err
			}

			plan, err := scenes.Plan(scenes.PlanInput{
				FrameCount:     info.FrameCount,
				DetectedCuts:   detected.SceneChanges,
				ForceKeyframes: cfg.Scenes.ForceKeyframes,
				Zones:          zones,
				MinSceneLen:    cfg.Scenes.MinSceneLen,
				ExtraSplit:     cfg.Scenes.ExtraSplit,
			})
			if err != nil {
				return err
			}

			sceneFile := cfg.Scenes.ScenesFile
			if sceneFile == "" {
				tempDir := cfg.Paths.Temp
				if tempDir == "" {
					tempDir = filepath.Join(".", "."+fileutil.InputHash(flags.input)+"_lathe")
				}
				if err := fileutil.EnsureDir(tempDir); err != nil {
					return err
				}
				sceneFile = filepath.Join(tempDir, scenes.FileName)
			}
			if err := scenes.WriteFile(sceneFile, plan, info.FrameCount); err != nil {
				return err
			}

			videoParams := cfg.Encode.VideoParams
			if len(videoParams) == 0 {
				videoParams = enc.DefaultArgs()
			}
			chunks := chunk.FromScenes(plan, enc, videoParams, cfg.Encode.Passes, "", info.FrameRate)
			renderPlanTable(cmd, chunks)
			fmt.Fprintf(cmd.OutOrStdout(), "%d frames, %d chunks, plan written to %s\n",
				info.FrameCount, len(chunks), sceneFile)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func renderPlanTable(cmd *cobra.Command, chunks []*chunk.Chunk) {
	writer := table.NewWriter()
	writer.SetOutputMirror(cmd.OutOrStdout())
	writer.AppendHeader(table.Row{"#", "Start", "End", "Frames", "Encoder", "Zone"})
	for _, c := range chunks {
		zoned := ""
		if c.ForcedQ != nil {
			zoned = fmt.Sprintf("q=%d", *c.ForcedQ)
		}
		writer.AppendRow(table.Row{c.Index, c.Start, c.End, c.Frames(), string(c.Encoder), zoned})
	}
	writer.Render()
}
