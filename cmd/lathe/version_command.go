package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"lathe/internal/encoder"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func newVersionCommand() *cobra.Command {
	var tools bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the lathe version and detected encoders",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lathe %s\n", version)
			if !tools {
				return nil
			}
			for _, enc := range encoder.All() {
				if _, err := exec.LookPath(enc.Binary()); err != nil {
					fmt.Fprintf(out, "  %-8s %-14s missing\n", enc, enc.Binary())
					continue
				}
				fmt.Fprintf(out, "  %-8s %-14s found\n", enc, enc.Binary())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tools, "tools", false, "Probe for encoder binaries")
	return cmd
}
