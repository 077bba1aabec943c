package framesource

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"lathe/internal/chunk"
	"lathe/internal/fileutil"
	"lathe/internal/media/ffprobe"
	"lathe/internal/services"
	"lathe/internal/services/vspipe"
)

// Method selects the frame-source backend.
type Method string

const (
	MethodLSmash     Method = "lsmash"
	MethodFFMS2      Method = "ffms2"
	MethodBestSource Method = "bestsource"
	MethodDGDecNV    Method = "dgdecnv"
	MethodSegment    Method = "segment"
	MethodSelect     Method = "select"
	MethodHybrid     Method = "hybrid"
)

// ParseMethod converts the CLI spelling into a Method. Empty means
// auto-select.
func ParseMethod(value string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return "", nil
	case "lsmash":
		return MethodLSmash, nil
	case "ffms2":
		return MethodFFMS2, nil
	case "bestsource":
		return MethodBestSource, nil
	case "dgdecnv":
		return MethodDGDecNV, nil
	case "segment":
		return MethodSegment, nil
	case "select":
		return MethodSelect, nil
	case "hybrid":
		return MethodHybrid, nil
	}
	return "", fmt.Errorf("unknown chunk method %q", value)
}

// AutoSelect picks the first available backend in preference order.
func AutoSelect(ctx context.Context) Method {
	candidates := []struct {
		method Method
		plugin vspipe.Plugin
	}{
		{MethodLSmash, vspipe.LSmash},
		{MethodFFMS2, vspipe.FFMS2},
		{MethodDGDecNV, vspipe.DGDecNV},
		{MethodBestSource, vspipe.BestSource},
	}
	for _, candidate := range candidates {
		if vspipe.PluginAvailable(ctx, candidate.plugin) {
			return candidate.method
		}
	}
	return MethodHybrid
}

func (m Method) scriptBacked() bool {
	switch m {
	case MethodLSmash, MethodFFMS2, MethodBestSource, MethodDGDecNV:
		return true
	}
	return false
}

func (m Method) plugin() vspipe.Plugin {
	switch m {
	case MethodLSmash:
		return vspipe.LSmash
	case MethodFFMS2:
		return vspipe.FFMS2
	case MethodBestSource:
		return vspipe.BestSource
	case MethodDGDecNV:
		return vspipe.DGDecNV
	}
	return ""
}

// Source provides chunk frame pipes and the planning-time frame count for
// one input file.
type Source struct {
	Method      Method
	Input       string
	TempDir     string
	PixelFormat string
	FFmpegBin   string
	// FrameRate converts keyframe indexes into seek timestamps for the
	// hybrid method.
	FrameRate float64

	script string

	kfOnce    sync.Once
	kfErr     error
	keyframes []int

	segmented bool
	segDir    string
}

// New builds a Source. Script-backed methods write their loader script into
// the working directory up front; the plugin builds its index lazily on
// first use.
func New(method Method, input, tempDir, pixelFormat string) (*Source, error) {
	s := &Source{
		Method:      method,
		Input:       input,
		TempDir:     tempDir,
		PixelFormat: pixelFormat,
		FFmpegBin:   "ffmpeg",
		segDir:      filepath.Join(tempDir, "segments"),
	}
	if method.scriptBacked() {
		script, err := vspipe.WriteSourceScript(tempDir, method.plugin(), input)
		if err != nil {
			return nil, services.Wrap(services.ErrFrameSource, "plan", "write source script", string(method), err)
		}
		s.script = script
	}
	return s, nil
}

// NewFromScript wraps a user-provided VapourSynth script instead of a video
// file.
func NewFromScript(script, tempDir, pixelFormat string) *Source {
	return &Source{
		Method:      MethodLSmash,
		Input:       script,
		TempDir:     tempDir,
		PixelFormat: pixelFormat,
		FFmpegBin:   "ffmpeg",
		script:      script,
	}
}

// FrameCount probes the total source frame count. For script-backed methods
// the first call also builds the index file.
func (s *Source) FrameCount(ctx context.Context) (int, error) {
	if s.script != "" {
		frames, err := vspipe.FrameCount(ctx, s.script)
		if err != nil {
			return 0, services.Wrap(services.ErrFrameSource, "probe", "frame count", string(s.Method), err)
		}
		return frames, nil
	}
	frames, err := ffprobe.CountFrames(ctx, "", s.Input)
	if err != nil {
		return 0, services.Wrap(services.ErrFrameSource, "probe", "frame count", string(s.Method), err)
	}
	return frames, nil
}

// PipeCmd builds the subprocess that writes the chunk's frames as y4m to its
// stdout. The caller owns the process and must reap it on every exit path.
func (s *Source) PipeCmd(ctx context.Context, c *chunk.Chunk) (*exec.Cmd, error) {
	if s.script != "" {
		return vspipe.PipeCmd(ctx, s.script, c.Start, c.End), nil
	}
	switch s.Method {
	case MethodSegment:
		if !s.segmented {
			return nil, services.Wrap(services.ErrFrameSource, "encode", "segment",
				"segment method used before Prepare", nil)
		}
		return s.ffmpegWholeFile(ctx, s.segmentPath(c.Index)), nil
	case MethodSelect:
		return s.ffmpegSelect(ctx, c.Start, c.End, 0), nil
	case MethodHybrid:
		kf, err := s.previousKeyframe(ctx, c.Start)
		if err != nil {
			return nil, err
		}
		return s.ffmpegSelect(ctx, c.Start, c.End, kf), nil
	}
	return nil, services.Wrap(services.ErrFrameSource, "encode", "pipe", fmt.Sprintf("method %q has no pipe", s.Method), nil)
}

// Prepare runs backend-specific plan-time work. Only the segment method has
// any: splitting the source into per-chunk intermediate files.
func (s *Source) Prepare(ctx context.Context, chunks []*chunk.Chunk) error {
	if s.Method != MethodSegment {
		return nil
	}
	if err := fileutil.EnsureDir(s.segDir); err != nil {
		return err
	}

	var frames []string
	for _, c := range chunks[1:] {
		frames = append(frames, fmt.Sprintf("%d", c.Start))
	}

	args := []string{"-hide_banner", "-y", "-loglevel", "error", "-i", s.Input,
		"-map", "0:V:0", "-an", "-c", "copy", "-avoid_negative_ts", "1", "-vsync", "0"}
	if len(frames) == 0 {
		args = append(args, s.segmentPath(0))
	} else {
		args = append(args, "-f", "segment", "-segment_frames", strings.Join(frames, ","),
			filepath.Join(s.segDir, "%05d.mkv"))
	}

	cmd := exec.CommandContext(ctx, s.FFmpegBin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrFrameSource, "plan", "segment",
			strings.TrimSpace(string(output)), err)
	}
	s.segmented = true
	return nil
}

func (s *Source) segmentPath(index int) string {
	return filepath.Join(s.segDir, fmt.Sprintf("%05d.mkv", index))
}

func (s *Source) ffmpegWholeFile(ctx context.Context, path string) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", path,
		"-pix_fmt", s.PixelFormat, "-strict", "-1", "-f", "yuv4mpegpipe", "-"}
	return exec.CommandContext(ctx, s.FFmpegBin, args...)
}

// ffmpegSelect decodes from the keyframe at kfStart (0 for the select
// method) and emits frames [start, end) of the source.
func (s *Source) ffmpegSelect(ctx context.Context, start, end, kfStart int) *exec.Cmd {
	fps := s.FrameRate
	if fps <= 0 {
		fps = 24
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	if kfStart > 0 {
		// Fast-seek to a keyframe so the decode is not quadratic; the
		// select window below is relative to the seek point.
		args = append(args, "-ss", fmt.Sprintf("%.6f", float64(kfStart)/fps))
	}
	relStart := start - kfStart
	relEnd := end - kfStart
	args = append(args, "-i", s.Input,
		"-vf", fmt.Sprintf("select=between(n\\,%d\\,%d),setpts=PTS-STARTPTS", relStart, relEnd-1),
		"-pix_fmt", s.PixelFormat,
		"-strict", "-1", "-f", "yuv4mpegpipe", "-")
	return exec.CommandContext(ctx, s.FFmpegBin, args...)
}
