package metrics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"lathe/internal/services"
)

// scoreVMAF pipes the reference stream into ffmpeg's libvmaf filter against
// the decoded probe and parses the per-frame JSON log.
func scoreVMAF(ctx context.Context, opts Options, refCmd *exec.Cmd, probePath, workDir string) ([]float64, error) {
	logPath := filepath.Join(workDir, filepath.Base(probePath)+".vmaf.json")

	model := opts.Model
	if model == "" {
		model = DefaultVMAFModel
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = 1
	}

	var refChain []string
	if opts.ProbingRate > 1 {
		refChain = append(refChain, fmt.Sprintf("select=not(mod(n\\,%d))", opts.ProbingRate))
	}
	if opts.Filter != "" {
		refChain = append(refChain, opts.Filter)
	}
	disChain := []string{"setpts=PTS-STARTPTS"}
	refChain = append(refChain, "setpts=PTS-STARTPTS")
	if opts.Res != "" {
		scale := "scale=" + strings.Replace(opts.Res, "x", ":", 1) + ":flags=bicubic"
		disChain = append(disChain, scale)
		refChain = append(refChain, scale)
	}

	graph := fmt.Sprintf("[0:v]%s[dis];[1:v]%s[ref];[dis][ref]libvmaf=log_fmt=json:log_path=%s:model_path=%s:n_threads=%d",
		strings.Join(disChain, ","), strings.Join(refChain, ","), logPath, model, threads)

	args := []string{"-loglevel", "error", "-y",
		"-i", probePath,
		"-i", "-",
		"-filter_complex", graph,
		"-f", "null", "-",
	}
	if err := runComparePipeline(ctx, opts, refCmd, args); err != nil {
		return nil, err
	}
	return parseVMAFLog(logPath)
}

// scoreXPSNR runs ffmpeg's xpsnr filter and parses its stats file. Only
// usable at full probing rate; sub-sampled runs go through the script
// runtime instead because the filter cannot skip reference frames.
func scoreXPSNR(ctx context.Context, opts Options, refCmd *exec.Cmd, probePath, workDir string) ([]float64, error) {
	logPath := filepath.Join(workDir, filepath.Base(probePath)+".xpsnr.log")

	refChain := []string{"setpts=PTS-STARTPTS"}
	if opts.Filter != "" {
		refChain = append([]string{opts.Filter}, refChain...)
	}
	graph := fmt.Sprintf("[0:v]setpts=PTS-STARTPTS[dis];[1:v]%s[ref];[dis][ref]xpsnr=stats_file=%s",
		strings.Join(refChain, ","), logPath)

	args := []string{"-loglevel", "error", "-y",
		"-i", probePath,
		"-i", "-",
		"-filter_complex", graph,
		"-f", "null", "-",
	}
	if err := runComparePipeline(ctx, opts, refCmd, args); err != nil {
		return nil, err
	}
	return parseXPSNRLog(logPath)
}

// runComparePipeline wires refCmd's stdout into the scoring ffmpeg's stdin
// and waits for both.
func runComparePipeline(ctx context.Context, opts Options, refCmd *exec.Cmd, ffmpegArgs []string) error {
	ffmpegBin := opts.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	scorer := exec.CommandContext(ctx, ffmpegBin, ffmpegArgs...)

	refOut, err := refCmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrMetric, "probe", "score", "create reference pipe", err)
	}
	scorer.Stdin = refOut

	var refErr, scorerErr bytes.Buffer
	refCmd.Stderr = &refErr
	scorer.Stderr = &scorerErr

	if err := refCmd.Start(); err != nil {
		return services.Wrap(services.ErrMetric, "probe", "score", "start reference source", err)
	}
	if err := scorer.Start(); err != nil {
		_ = refCmd.Process.Kill()
		_ = refCmd.Wait()
		return services.Wrap(services.ErrMetric, "probe", "score", "start scorer", err)
	}

	scorerWaitErr := scorer.Wait()
	refWaitErr := refCmd.Wait()

	if scorerWaitErr != nil {
		return services.Wrap(services.ErrMetric, "probe", "score",
			strings.TrimSpace(scorerErr.String()), scorerWaitErr)
	}
	if refWaitErr != nil {
		return services.Wrap(services.ErrFrameSource, "probe", "score reference",
			strings.TrimSpace(refErr.String()), refWaitErr)
	}
	return nil
}

type vmafLog struct {
	Frames []struct {
		Metrics map[string]float64 `json:"metrics"`
	} `json:"frames"`
}

func parseVMAFLog(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "read vmaf log", err)
	}
	var parsed vmafLog
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "parse vmaf log", err)
	}
	scores := make([]float64, 0, len(parsed.Frames))
	for _, frame := range parsed.Frames {
		scores = append(scores, frame.Metrics["vmaf"])
	}
	if len(scores) == 0 {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "vmaf log has no frames", nil)
	}
	return scores, nil
}

// parseXPSNRLog reads the filter's per-frame stats lines:
//
//	n:    1  XPSNR y: 34.7059  XPSNR u: 39.2539  XPSNR v: 41.0077
//
// and reduces the planes with the standard (4y+u+v)/6 weighting.
func parseXPSNRLog(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "read xpsnr log", err)
	}
	defer file.Close()

	var scores []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), "n:") {
			continue
		}
		y, yok := xpsnrPlane(line, "y:")
		u, uok := xpsnrPlane(line, "u:")
		v, vok := xpsnrPlane(line, "v:")
		switch {
		case yok && uok && vok:
			scores = append(scores, (4*y+u+v)/6)
		case yok:
			scores = append(scores, y)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "scan xpsnr log", err)
	}
	if len(scores) == 0 {
		return nil, services.Wrap(services.ErrMetric, "probe", "score", "xpsnr log has no frames", nil)
	}
	return scores, nil
}

func xpsnrPlane(line, label string) (float64, bool) {
	idx := strings.Index(line, label)
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(line[idx+len(label):])
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
