package scenedetect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"lathe/internal/services"
)

// Binary is the scene detector executable name.
const Binary = "av-scenechange"

// Result is the detector's parsed JSON output.
type Result struct {
	SceneChanges []int `json:"scene_changes"`
	FrameCount   int   `json:"frame_count"`
}

// Options tune the detection run.
type Options struct {
	FFmpegBinary    string
	MinSceneLen     int
	DownscaleHeight int
	PixelFormat     string
	// SourceCmd overrides the default ffmpeg decode leg with a caller-built
	// y4m producer (script inputs use vspipe).
	SourceCmd *exec.Cmd
}

// Detect decodes input with ffmpeg and pipes y4m into av-scenechange,
// returning the detected cut list. Both subprocesses are reaped on every
// exit path.
func Detect(ctx context.Context, input string, opts Options) (Result, error) {
	ffmpegBin := opts.FFmpegBinary
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}

	ffmpegArgs := []string{"-hide_banner", "-loglevel", "error", "-i", input, "-map", "0:V:0"}
	var filters []string
	if opts.DownscaleHeight > 0 {
		filters = append(filters, fmt.Sprintf("scale=-2:%d", opts.DownscaleHeight))
	}
	if len(filters) > 0 {
		ffmpegArgs = append(ffmpegArgs, "-vf", strings.Join(filters, ","))
	}
	if opts.PixelFormat != "" {
		ffmpegArgs = append(ffmpegArgs, "-pix_fmt", opts.PixelFormat)
	}
	ffmpegArgs = append(ffmpegArgs, "-strict", "-1", "-f", "yuv4mpegpipe", "-")

	detectArgs := []string{"-s", "0"}
	if opts.MinSceneLen > 0 {
		detectArgs = append(detectArgs, "--min-scenecut-distance", strconv.Itoa(opts.MinSceneLen))
	}
	detectArgs = append(detectArgs, "-")

	source := opts.SourceCmd
	if source == nil {
		source = exec.CommandContext(ctx, ffmpegBin, ffmpegArgs...)
	}
	detector := exec.CommandContext(ctx, Binary, detectArgs...)

	pipe, err := source.StdoutPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrInvalidInput, "plan", "scene detect", "create pipe", err)
	}
	detector.Stdin = pipe

	var stdout, detectErr, sourceErr bytes.Buffer
	detector.Stdout = &stdout
	detector.Stderr = &detectErr
	source.Stderr = &sourceErr

	if err := source.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrToolMissing, "plan", "scene detect", "start ffmpeg", err)
	}
	if err := detector.Start(); err != nil {
		_ = source.Process.Kill()
		_ = source.Wait()
		return Result{}, services.Wrap(services.ErrToolMissing, "plan", "scene detect", "start "+Binary, err)
	}

	detectorErr := detector.Wait()
	sourceWaitErr := source.Wait()

	if detectorErr != nil {
		return Result{}, services.Wrap(services.ErrInvalidInput, "plan", "scene detect",
			fmt.Sprintf("detector failed: %s", strings.TrimSpace(detectErr.String())), detectorErr)
	}
	if sourceWaitErr != nil {
		return Result{}, services.Wrap(services.ErrInvalidInput, "plan", "scene detect",
			fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(sourceErr.String())), sourceWaitErr)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, services.Wrap(services.ErrInvalidInput, "plan", "scene detect", "parse detector output", err)
	}
	return result, nil
}
