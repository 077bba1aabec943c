package targetquality

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lathe/internal/chunk"
	"lathe/internal/encoder"
	"lathe/internal/fileutil"
	"lathe/internal/framesource"
	"lathe/internal/metrics"
	"lathe/internal/services"
)

// ProbeRunner is the production Prober: it encodes the chunk's frames at the
// requested quantizer with the encoder's fast probe settings, scores the
// result with the metric tool, and aggregates the per-frame scores.
type ProbeRunner struct {
	Source       *framesource.Source
	Metric       metrics.Metric
	Statistic    metrics.Statistic
	ProbingRate  int
	ProbingSpeed encoder.ProbingSpeed
	ProbeSlow    bool
	FFmpegBin    string
	VMAFModel    string
	ScoreRes     string
	ScoreFilter  string
	Threads      int
	PixelFormat  string
}

// ProbePath names the probe bitstream for a quantizer inside the chunk's
// working directory.
func ProbePath(c *chunk.Chunk, q int) string {
	return filepath.Join(c.WorkDir, fmt.Sprintf("v_%d.ivf", q))
}

// Probe encodes and scores one probe.
func (r *ProbeRunner) Probe(ctx context.Context, c *chunk.Chunk, q int) (float64, error) {
	if err := fileutil.EnsureDir(c.WorkDir); err != nil {
		return 0, err
	}
	probePath := ProbePath(c, q)

	if err := r.encodeProbe(ctx, c, q, probePath); err != nil {
		return 0, err
	}

	refCmd, err := r.Source.PipeCmd(ctx, c)
	if err != nil {
		return 0, err
	}
	opts := metrics.Options{
		Metric:      r.Metric,
		FFmpegBin:   r.FFmpegBin,
		Model:       r.VMAFModel,
		Res:         r.ScoreRes,
		Filter:      r.ScoreFilter,
		Threads:     r.Threads,
		ProbingRate: r.ProbingRate,
		Inputs: metrics.CompareInputs{
			Reference:  r.Source.Input,
			StartFrame: c.Start,
			EndFrame:   c.End,
		},
	}
	frameScores, err := metrics.Score(ctx, opts, refCmd, probePath, c.WorkDir)
	if err != nil {
		return 0, err
	}

	statistic := r.Statistic.Resolve(r.Metric, r.ProbingRate)
	score, err := statistic.Aggregate(r.Metric, frameScores)
	if err != nil {
		return 0, services.Wrap(services.ErrMetric, "probe", "aggregate", string(r.Metric), err)
	}
	return score, nil
}

// encodeProbe runs source -> (optional sub-sample leg) -> encoder and waits
// for the chain. Probes are always one-pass.
func (r *ProbeRunner) encodeProbe(ctx context.Context, c *chunk.Chunk, q int, probePath string) error {
	var params []string
	if r.ProbeSlow {
		params = c.Encoder.ProbeSlowArgs(c.Args, q)
	} else {
		threads := r.Threads
		if threads <= 0 {
			threads = 4
		}
		params = c.Encoder.ProbeArgs(q, r.ProbingSpeed, threads)
	}
	argv := c.Encoder.OnePass(params, probePath)

	sourceCmd, err := r.Source.PipeCmd(ctx, c)
	if err != nil {
		return err
	}

	encCmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var middle *exec.Cmd
	if r.ProbingRate > 1 {
		ffmpegBin := r.FFmpegBin
		if ffmpegBin == "" {
			ffmpegBin = "ffmpeg"
		}
		middleArgs := []string{"-loglevel", "error", "-i", "-",
			"-vf", fmt.Sprintf("select=not(mod(n\\,%d)),setpts=N/FRAME_RATE/TB", r.ProbingRate)}
		if r.PixelFormat != "" {
			middleArgs = append(middleArgs, "-pix_fmt", r.PixelFormat)
		}
		middleArgs = append(middleArgs, "-strict", "-1", "-f", "yuv4mpegpipe", "-")
		middle = exec.CommandContext(ctx, ffmpegBin, middleArgs...)
	}

	var sourceErr, middleErr, encErr bytes.Buffer
	sourceCmd.Stderr = &sourceErr
	encCmd.Stderr = &encErr

	sourceOut, err := sourceCmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrFrameSource, "probe", "encode", "create source pipe", err)
	}

	started := []*exec.Cmd{}
	killStarted := func() {
		for _, cmd := range started {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
		for _, cmd := range started {
			_ = cmd.Wait()
		}
	}

	if middle != nil {
		middle.Stdin = sourceOut
		middle.Stderr = &middleErr
		middleOut, err := middle.StdoutPipe()
		if err != nil {
			return services.Wrap(services.ErrFrameSource, "probe", "encode", "create sub-sample pipe", err)
		}
		encCmd.Stdin = middleOut
	} else {
		encCmd.Stdin = sourceOut
	}

	if err := sourceCmd.Start(); err != nil {
		return services.Wrap(services.ErrFrameSource, "probe", "encode", "start frame source", err)
	}
	started = append(started, sourceCmd)
	if middle != nil {
		if err := middle.Start(); err != nil {
			killStarted()
			return services.Wrap(services.ErrFrameSource, "probe", "encode", "start sub-sampler", err)
		}
		started = append(started, middle)
	}
	if err := encCmd.Start(); err != nil {
		killStarted()
		return services.Wrap(services.ErrEncoderRun, "probe", "encode", "start encoder", err)
	}

	encWaitErr := encCmd.Wait()
	if middle != nil {
		_ = middle.Wait()
	}
	sourceWaitErr := sourceCmd.Wait()

	if encWaitErr != nil {
		return services.Wrap(services.ErrEncoderRun, "probe", "encode",
			strings.TrimSpace(encErr.String()), encWaitErr)
	}
	if sourceWaitErr != nil {
		return services.Wrap(services.ErrFrameSource, "probe", "encode",
			strings.TrimSpace(sourceErr.String()), sourceWaitErr)
	}
	return nil
}

// CleanupProbes removes the probe artifacts after a chunk finishes
// successfully. Failed chunks keep theirs for debugging.
func CleanupProbes(c *chunk.Chunk) {
	entries, err := os.ReadDir(c.WorkDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "v_") || strings.HasSuffix(name, ".json") ||
			strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".compare.py") {
			_ = os.Remove(filepath.Join(c.WorkDir, name))
		}
	}
}
