package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"lathe/internal/runstate"
)

// newStatusCommand reads the run-state database inside a working directory
// and renders per-chunk progress.
func newStatusCommand(configFlag *string) *cobra.Command {
	var tempFlag string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a run's chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tempFlag == "" {
				return errors.New("status: --temp is required (the run's working directory)")
			}

			store, err := runstate.Open(tempFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			run, err := store.LatestRun(ctx)
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			summary, err := store.Summarize(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s)\n", run.ID, run.Status)
			fmt.Fprintf(out, "input:  %s\n", run.InputPath)
			fmt.Fprintf(out, "output: %s\n", run.OutputPath)
			fmt.Fprintf(out, "encoder %s, %d workers, %d frames\n", run.Encoder, run.Workers, run.FrameCount)
			fmt.Fprintf(out, "chunks: %d done, %d encoding, %d probing, %d pending, %d failed (of %d)\n",
				summary.Done, summary.InEncode, summary.InProbe, summary.Pending, summary.Failed, summary.Total)

			if !verbose {
				return nil
			}

			rows, err := store.Chunks(ctx, run.ID)
			if err != nil {
				return err
			}
			writer := table.NewWriter()
			writer.SetOutputMirror(out)
			writer.AppendHeader(table.Row{"#", "Frames", "State", "Tries", "Q", "Seconds"})
			for _, row := range rows {
				q := ""
				if row.ChosenQ != nil {
					q = fmt.Sprintf("%d", *row.ChosenQ)
				}
				seconds := ""
				if row.EncodeSeconds != nil {
					seconds = fmt.Sprintf("%.1f", *row.EncodeSeconds)
				}
				writer.AppendRow(table.Row{
					row.ChunkIndex, row.EndFrame - row.StartFrame, string(row.State),
					row.Tries, q, seconds,
				})
			}
			writer.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&tempFlag, "temp", "", "Run working directory")
	cmd.Flags().BoolVar(&verbose, "chunks", false, "List every chunk")
	return cmd
}
