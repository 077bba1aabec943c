// Package audio runs the background audio task: an ffmpeg copy or encode of
// the source's audio streams into a side file that concat muxes back in.
package audio

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"lathe/internal/logging"
	"lathe/internal/services"
)

// FileName is the audio track file inside the working directory.
const FileName = "audio.mkv"

// Task describes one audio extraction.
type Task struct {
	FFmpegBin string
	Input     string
	TempDir   string
	// Params is the ffmpeg audio codec parameter list; empty means stream
	// copy.
	Params []string
	Logger *slog.Logger
}

// OutputPath returns where the task writes the audio track.
func (t *Task) OutputPath() string {
	return filepath.Join(t.TempDir, FileName)
}

// Run extracts the audio. It runs concurrently with video encoding and only
// reads the source file.
func (t *Task) Run(ctx context.Context) error {
	ffmpegBin := t.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	params := t.Params
	if len(params) == 0 {
		params = []string{"-c:a", "copy"}
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-i", t.Input, "-map", "0:a", "-vn", "-sn", "-dn"}
	args = append(args, params...)
	args = append(args, t.OutputPath())

	if t.Logger != nil {
		logging.WithComponent(t.Logger, "audio").Info("audio task started",
			logging.String("output", t.OutputPath()))
	}

	cmd := exec.CommandContext(ctx, ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrEncoderRun, "audio", "extract",
			strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
