package metrics

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"lathe/internal/fileutil"
	"lathe/internal/services"
)

// ScriptRuntimeBinary drives the script-runtime metrics (SSIMULACRA2,
// Butteraugli, sub-sampled XPSNR).
const ScriptRuntimeBinary = "python3"

// CompareInputs pins the frame window the generated comparison script reads
// from the reference. The worker fills this in for script-runtime metrics;
// ffmpeg-filter metrics ignore it because they consume the reference pipe.
type CompareInputs struct {
	Reference  string
	StartFrame int
	EndFrame   int
}

// scoreScriptRuntime writes a comparison script and runs it under the
// script runtime. The script indexes both clips with the lsmash plugin,
// computes the metric per frame, and prints one score per line; the
// reference pipe is not needed because the runtime reads the source
// directly at the recorded frame offsets.
func scoreScriptRuntime(ctx context.Context, opts Options, refCmd *exec.Cmd, probePath, workDir string) ([]float64, error) {
	// The reference pipe is unused on this path.
	if refCmd != nil && refCmd.Process != nil {
		_ = refCmd.Process.Kill()
		_ = refCmd.Wait()
	}
	if opts.Inputs.Reference == "" {
		return nil, services.Wrap(services.ErrMetric, "probe", "score",
			fmt.Sprintf("metric %s needs reference inputs", opts.Metric), nil)
	}

	scriptPath := filepath.Join(workDir, filepath.Base(probePath)+".compare.py")
	script := buildCompareScript(opts, probePath)
	if err := fileutil.WriteFileAtomic(scriptPath, []byte(script), 0o644); err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "write compare script", err)
	}

	cmd := exec.CommandContext(ctx, ScriptRuntimeBinary, scriptPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score",
			strings.TrimSpace(stderr.String()), err)
	}

	var scores []float64
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		value, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, services.Wrap(services.ErrMetric, "probe", "score",
				fmt.Sprintf("unparseable score line %q", line), err)
		}
		scores = append(scores, value)
	}
	if len(scores) == 0 {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "script produced no scores", nil)
	}
	return scores, nil
}

func buildCompareScript(opts Options, probePath string) string {
	in := opts.Inputs
	rate := opts.ProbingRate
	if rate < 1 {
		rate = 1
	}

	var metricExpr, propName string
	switch opts.Metric {
	case SSIMULACRA2:
		metricExpr = "core.vship.SSIMULACRA2(ref, dis)"
		propName = "_SSIMULACRA2"
	case ButteraugliInf:
		metricExpr = "core.vship.BUTTERAUGLI(ref, dis)"
		propName = "_BUTTERAUGLI_INFNorm"
	case Butteraugli3:
		metricExpr = "core.vship.BUTTERAUGLI(ref, dis)"
		propName = "_BUTTERAUGLI_3Norm"
	case XPSNR:
		metricExpr = "core.vszip.XPSNR(ref, dis)"
		propName = "_XPSNR"
	}

	var b strings.Builder
	b.WriteString("import vapoursynth as vs\n")
	b.WriteString("core = vs.core\n")
	fmt.Fprintf(&b, "ref = core.lsmas.LWLibavSource(source=%q)\n", in.Reference)
	fmt.Fprintf(&b, "ref = ref[%d:%d]\n", in.StartFrame, in.EndFrame)
	if rate > 1 {
		fmt.Fprintf(&b, "ref = ref[::%d]\n", rate)
	}
	fmt.Fprintf(&b, "dis = core.lsmas.LWLibavSource(source=%q)\n", probePath)
	fmt.Fprintf(&b, "scored = %s\n", metricExpr)
	b.WriteString("for frame in scored.frames():\n")
	fmt.Fprintf(&b, "    print(frame.props[%q])\n", propName)
	return b.String()
}
