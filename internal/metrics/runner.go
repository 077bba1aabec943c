package metrics

import (
	"context"
	"fmt"
	"os/exec"
)

// Options configures a scoring run.
type Options struct {
	Metric    Metric
	FFmpegBin string
	// Model is the libvmaf model path; empty means DefaultVMAFModel.
	Model string
	// Res is the scoring resolution "WxH"; empty scores at probe resolution.
	Res string
	// Filter is an extra ffmpeg filter applied to the reference before
	// scoring.
	Filter      string
	Threads     int
	ProbingRate int
	// Inputs feeds the script-runtime metrics, which read the reference
	// directly instead of consuming the pipe.
	Inputs CompareInputs
}

// Score computes the per-frame score stream for probePath against the
// reference frames produced by refCmd's stdout. Artifacts (score logs,
// comparison scripts) are written into workDir. Both subprocesses are reaped
// on every exit path.
func Score(ctx context.Context, opts Options, refCmd *exec.Cmd, probePath, workDir string) ([]float64, error) {
	switch opts.Metric {
	case VMAF:
		return scoreVMAF(ctx, opts, refCmd, probePath, workDir)
	case XPSNR:
		if opts.ProbingRate <= 1 {
			return scoreXPSNR(ctx, opts, refCmd, probePath, workDir)
		}
		return scoreScriptRuntime(ctx, opts, refCmd, probePath, workDir)
	case SSIMULACRA2, ButteraugliInf, Butteraugli3:
		return scoreScriptRuntime(ctx, opts, refCmd, probePath, workDir)
	}
	return nil, fmt.Errorf("metric %q has no runner", opts.Metric)
}
